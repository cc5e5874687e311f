package rsaverify

import (
	"crypto/rand"
	"crypto/rsa"
	"math/big"
	"testing"

	"github.com/SynaptekResearch/vboot-android/alg"
)

func newBigIntFromInt(n int) *big.Int { return big.NewInt(int64(n)) }

// marshalPublicKeyForTest encodes pub in the same 4-byte-exponent +
// big-endian-modulus layout ParsePublicKey expects, padding the modulus
// out to its algorithm's full byte width.
func marshalPublicKeyForTest(pub *PublicKey) []byte {
	out := make([]byte, pub.Algorithm.ProcessedPubKeyLen())
	eBytes := pub.E.Bytes()
	copy(out[4-len(eBytes):4], eBytes)
	modBytes := pub.N.Bytes()
	copy(out[len(out)-len(modBytes):], modBytes)
	return out
}

// signForTest builds a signature the way the original vboot signer's
// SignatureBuf does (hash -> prepend DigestInfo -> RSA-encrypt with the
// private key), but calls straight into crypto/rsa instead of shelling
// out to a key file. It exists purely to build fixtures for these tests;
// production code never signs anything (signing is out of scope).
func signForTest(t *testing.T, priv *rsa.PrivateKey, id alg.ID, data []byte) []byte {
	t.Helper()
	hashAlg := hashFor(id)
	d := digest(id, data)
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, hashAlg, d)
	if err != nil {
		t.Fatalf("signForTest: %v", err)
	}
	return sig
}

func testKey(t *testing.T, id alg.ID) (*rsa.PrivateKey, *PublicKey) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, id.ModulusBits())
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	pub := &PublicKey{Algorithm: id, E: newBigIntFromInt(priv.E), N: priv.N}
	return priv, pub
}

func TestVerifyDataRoundTrip(t *testing.T) {
	for _, id := range []alg.ID{alg.RSA1024SHA1, alg.RSA1024SHA256, alg.RSA1024SHA512} {
		id := id
		t.Run(idName(id), func(t *testing.T) {
			priv, pub := testKey(t, id)
			data := []byte("the quick brown fox jumps over the lazy dog, repeatedly, to pad this out")
			sig := signForTest(t, priv, id, data)

			if err := VerifyData(DefaultBackend, data, uint64(len(data)), sig, pub); err != nil {
				t.Fatalf("VerifyData: %v", err)
			}

			corrupt := append([]byte(nil), sig...)
			corrupt[0] ^= 0xFF
			if err := VerifyData(DefaultBackend, data, uint64(len(data)), corrupt, pub); err == nil {
				t.Fatal("corrupted signature should fail verification")
			}
		})
	}
}

func TestVerifyDataWrongSigSize(t *testing.T) {
	_, pub := testKey(t, alg.RSA1024SHA256)
	err := VerifyData(DefaultBackend, []byte("data"), 4, make([]byte, 10), pub)
	if err != ErrWrongSigSize {
		t.Fatalf("err = %v, want ErrWrongSigSize", err)
	}
}

func TestVerifyDataSizeExceedsBuffer(t *testing.T) {
	_, pub := testKey(t, alg.RSA1024SHA256)
	sig := make([]byte, alg.RSA1024SHA256.SigLen())
	err := VerifyData(DefaultBackend, []byte("data"), 100, sig, pub)
	if err != ErrDataTooShort {
		t.Fatalf("err = %v, want ErrDataTooShort", err)
	}
}

func TestVerifyDigestRoundTrip(t *testing.T) {
	id := alg.RSA1024SHA256
	priv, pub := testKey(t, id)
	data := []byte("digest round trip fixture")
	d := digest(id, data)
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, hashFor(id), d)
	if err != nil {
		t.Fatalf("SignPKCS1v15: %v", err)
	}
	if err := VerifyDigest(DefaultBackend, d, sig, pub); err != nil {
		t.Fatalf("VerifyDigest: %v", err)
	}

	tamperedDigest := append([]byte(nil), d...)
	tamperedDigest[0] ^= 1
	if err := VerifyDigest(DefaultBackend, tamperedDigest, sig, pub); err == nil {
		t.Fatal("tampered digest should fail verification")
	}
}

func TestParsePublicKeyRoundTrip(t *testing.T) {
	id := alg.RSA2048SHA256
	_, pub := testKey(t, id)
	payload := marshalPublicKeyForTest(pub)
	if len(payload) != id.ProcessedPubKeyLen() {
		t.Fatalf("payload length = %d, want %d", len(payload), id.ProcessedPubKeyLen())
	}
	got, err := ParsePublicKey(id, payload)
	if err != nil {
		t.Fatalf("ParsePublicKey: %v", err)
	}
	if got.N.Cmp(pub.N) != 0 || got.E.Cmp(pub.E) != 0 {
		t.Fatal("round-tripped key does not match original")
	}
}

func TestParsePublicKeyWrongLength(t *testing.T) {
	if _, err := ParsePublicKey(alg.RSA2048SHA256, make([]byte, 5)); err == nil {
		t.Fatal("expected error for wrong-length payload")
	}
}

func idName(id alg.ID) string {
	switch id {
	case alg.RSA1024SHA1:
		return "RSA1024SHA1"
	case alg.RSA1024SHA256:
		return "RSA1024SHA256"
	case alg.RSA1024SHA512:
		return "RSA1024SHA512"
	default:
		return "unknown"
	}
}
