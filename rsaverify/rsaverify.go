// Package rsaverify adapts the RSA-PKCS#1-v1.5 modular-exponentiation
// primitive to the two entry points the rest of the verifier needs:
// verify a signature over raw data (hash it first) or over an
// already-computed digest. It is the only place in this module that
// touches RSA.
//
// The external primitive itself -- out of scope per the spec, which
// treats RSAVerifyBinary as a contract, not something this module
// implements -- is reached through the RSABackend interface, following
// the teacher's pattern of wrapping an external signature library (BLS,
// there) behind a small named-backend interface rather than calling it
// directly from business logic.
package rsaverify

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"math/big"

	"github.com/SynaptekResearch/vboot-android/alg"
)

// ErrWrongSigSize is returned when a signature's declared size does not
// match the algorithm's expected length.
var ErrWrongSigSize = errors.New("rsaverify: wrong signature size for algorithm")

// ErrDataTooShort is returned when a signature claims to cover more bytes
// than the caller's buffer actually contains.
var ErrDataTooShort = errors.New("rsaverify: signed data size exceeds buffer")

// PublicKey is an RSA public key in the "processed" form this module
// uses: an exponent and modulus, sized according to alg.ID.ProcessedPubKeyLen.
// See alg.ID.ProcessedPubKeyLen for why this differs from the source's
// Montgomery-form processed key.
type PublicKey struct {
	Algorithm alg.ID
	E         *big.Int
	N         *big.Int
}

// ParsePublicKey decodes a processed public key payload -- a 4-byte
// big-endian exponent followed by the big-endian modulus -- for the given
// algorithm. The payload must be exactly alg.ID.ProcessedPubKeyLen() bytes;
// the caller (package vboot) is responsible for checking that before
// calling this, since that check is part of the structural validation the
// spec requires to happen before any cryptographic work.
func ParsePublicKey(id alg.ID, payload []byte) (*PublicKey, error) {
	want := id.ProcessedPubKeyLen()
	if len(payload) != want {
		return nil, errors.New("rsaverify: public key payload has wrong length")
	}
	e := new(big.Int).SetBytes(payload[:4])
	n := new(big.Int).SetBytes(payload[4:])
	return &PublicKey{Algorithm: id, E: e, N: n}, nil
}

// RSABackend performs the raw PKCS#1-v1.5 verification: given a public
// key, the digest algorithm, the digest bytes, and the signature, decide
// whether the signature is valid. Implementations must run the final
// comparison in constant time.
type RSABackend interface {
	VerifyPKCS1v15(pub *PublicKey, hashAlg crypto.Hash, digest, sig []byte) bool
}

// stdlibBackend implements RSABackend atop crypto/rsa, the standard
// library's PKCS#1-v1.5 verifier (itself constant-time in the padding
// comparison).
type stdlibBackend struct{}

// DefaultBackend is the RSABackend used when the caller does not supply
// one: crypto/rsa.VerifyPKCS1v15.
var DefaultBackend RSABackend = stdlibBackend{}

func (stdlibBackend) VerifyPKCS1v15(pub *PublicKey, hashAlg crypto.Hash, digest, sig []byte) bool {
	rsaPub := &rsa.PublicKey{N: pub.N, E: int(pub.E.Int64())}
	return rsa.VerifyPKCS1v15(rsaPub, hashAlg, digest, sig) == nil
}

func hashFor(id alg.ID) crypto.Hash {
	switch id.DigestLen() {
	case 20:
		return crypto.SHA1
	case 32:
		return crypto.SHA256
	case 64:
		return crypto.SHA512
	default:
		return 0
	}
}

func digest(id alg.ID, data []byte) []byte {
	switch id.DigestLen() {
	case 20:
		h := sha1.Sum(data)
		return h[:]
	case 32:
		h := sha256.Sum256(data)
		return h[:]
	case 64:
		h := sha512.Sum512(data)
		return h[:]
	default:
		return nil
	}
}

// VerifyData hashes data[:dataSize] with the algorithm's digest function
// and checks sig against it under key, using backend for the underlying
// PKCS#1-v1.5 check. It is an error for sigSize to disagree with the
// algorithm's declared signature length, or for dataSize to exceed
// len(data) -- both are structural faults the caller (package vboot)
// should already have ruled out, but VerifyData checks them again as its
// own boundary, per the spec's "data_size is what is hashed, data_len is
// only the size of the buffer the caller is willing to let the primitive
// read" contract.
func VerifyData(backend RSABackend, data []byte, dataSize uint64, sigPayload []byte, key *PublicKey) error {
	if uint64(len(sigPayload)) != uint64(key.Algorithm.SigLen()) {
		return ErrWrongSigSize
	}
	if dataSize > uint64(len(data)) {
		return ErrDataTooShort
	}
	hashAlg := hashFor(key.Algorithm)
	d := digest(key.Algorithm, data[:dataSize])
	if !backend.VerifyPKCS1v15(key, hashAlg, d, sigPayload) {
		return errors.New("rsaverify: signature verification failed")
	}
	return nil
}

// VerifyDigest checks sig against a caller-supplied digest under key,
// using backend. The caller is responsible for having computed digest
// with the algorithm's own hash function; VerifyDigest does not
// recompute or validate digest's length against key.Algorithm.DigestLen.
func VerifyDigest(backend RSABackend, digestBytes []byte, sigPayload []byte, key *PublicKey) error {
	if uint64(len(sigPayload)) != uint64(key.Algorithm.SigLen()) {
		return ErrWrongSigSize
	}
	hashAlg := hashFor(key.Algorithm)
	if !backend.VerifyPKCS1v15(key, hashAlg, digestBytes, sigPayload) {
		return errors.New("rsaverify: signature verification failed")
	}
	return nil
}
