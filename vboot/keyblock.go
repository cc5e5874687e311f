package vboot

import (
	"crypto/sha512"
	"encoding/binary"
	"errors"

	"github.com/SynaptekResearch/vboot-android/bounds"
	"github.com/SynaptekResearch/vboot-android/log"
	"github.com/SynaptekResearch/vboot-android/rsaverify"
)

var errInvalidAlgorithm = errors.New("vboot: data key has invalid algorithm")

// KeyBlockMagic is the fixed 8-byte tag every key block must start with.
const KeyBlockMagic = "CHROMEOS"

// KeyBlockHeaderVersionMajor is the only major header version this
// verifier accepts; minor-version differences are forward-compatible and
// do not cause rejection.
const KeyBlockHeaderVersionMajor = 2

// KeyBlockHeaderSize is sizeof(VbKeyBlockHeader): the fixed-layout region
// before any sub-object payload, i.e. magic + two version fields + size +
// checksum + signature + data_key.
const KeyBlockHeaderSize = 8 + 8 + 8 + 8 + SignatureHeaderSize + SignatureHeaderSize + PublicKeyHeaderSize

const (
	keyBlockOffHeaderVersionMajor = 8
	keyBlockOffHeaderVersionMinor = 16
	keyBlockOffKeyBlockSize       = 24
	keyBlockOffChecksum           = 32
	keyBlockOffSignature          = 32 + SignatureHeaderSize
	keyBlockOffDataKey            = 32 + 2*SignatureHeaderSize
)

// KeyBlock is a parsed view over a VbKeyBlockHeader sitting at the start
// of a caller-owned buffer.
type KeyBlock struct {
	buf                []byte
	HeaderVersionMajor uint64
	HeaderVersionMinor uint64
	KeyBlockSize       uint64
	Checksum           Signature
	KeyBlockSignature  Signature
	DataKey            PublicKey
}

var keyBlockLog = log.Default().Module("vboot.keyblock")

// VerifyKeyBlock implements spec section 4.4: it parses and validates a
// key block, either against a caller-supplied root-of-trust public key
// (keyed mode) or, if rootKeyBuf is nil, by checking its embedded SHA-512
// checksum (hash / inspection mode). A failure at any step returns
// immediately with the first category that fired; no further checks run.
//
// rootKeyBuf, when present, holds a standalone VbPublicKey (header +
// payload) exactly as it would appear on disk -- VerifyKeyBlock performs
// the same algorithm/size validation on it that the source's
// PublicKeyToRSA does, so an unusable trust root is reported as
// StatusPublicKeyInvalid rather than panicking or being trusted blindly.
//
// On StatusSuccess, the returned KeyBlock's DataKey is guaranteed to lie
// within both the key block and the signed prefix (Checksum/KeyBlockSignature.DataSize),
// so it is safe for the caller to trust as the key that must have signed
// whatever comes next in the boot chain.
func VerifyKeyBlock(buf []byte, rootKeyBuf []byte) (KeyBlock, Status) {
	return verifyKeyBlockWithBackend(buf, rootKeyBuf, rsaverify.DefaultBackend)
}

func verifyKeyBlockWithBackend(buf []byte, rootKeyBuf []byte, backend rsaverify.RSABackend) (KeyBlock, Status) {
	if len(buf) < 8 {
		keyBlockLog.Debug("buffer too small for magic")
		return KeyBlock{}, StatusKeyBlockInvalid
	}
	if !bounds.ConstantTimeCompare(buf[:8], []byte(KeyBlockMagic)) {
		keyBlockLog.Debug("bad magic")
		return KeyBlock{}, StatusKeyBlockInvalid
	}

	hdr, err := bounds.Subslice(buf, 0, 0, KeyBlockHeaderSize)
	if err != nil {
		keyBlockLog.Debug("buffer too small for key block header")
		return KeyBlock{}, StatusKeyBlockInvalid
	}

	major := binary.LittleEndian.Uint64(hdr[keyBlockOffHeaderVersionMajor : keyBlockOffHeaderVersionMajor+8])
	minor := binary.LittleEndian.Uint64(hdr[keyBlockOffHeaderVersionMinor : keyBlockOffHeaderVersionMinor+8])
	if major != KeyBlockHeaderVersionMajor {
		keyBlockLog.Debug("incompatible header version", "major", major)
		return KeyBlock{}, StatusKeyBlockInvalid
	}

	blockSize := binary.LittleEndian.Uint64(hdr[keyBlockOffKeyBlockSize : keyBlockOffKeyBlockSize+8])
	if uint64(len(buf)) < blockSize {
		keyBlockLog.Debug("not enough data for key block", "declared", blockSize, "have", len(buf))
		return KeyBlock{}, StatusKeyBlockInvalid
	}

	checksum, ok := parseSignature(buf, keyBlockOffChecksum)
	if !ok {
		return KeyBlock{}, StatusKeyBlockInvalid
	}
	sig, ok := parseSignature(buf, keyBlockOffSignature)
	if !ok {
		return KeyBlock{}, StatusKeyBlockInvalid
	}
	dataKey, ok := parsePublicKey(buf, keyBlockOffDataKey)
	if !ok {
		return KeyBlock{}, StatusKeyBlockInvalid
	}

	block := KeyBlock{
		buf:                buf,
		HeaderVersionMajor: major,
		HeaderVersionMinor: minor,
		KeyBlockSize:       blockSize,
		Checksum:           checksum,
		KeyBlockSignature:  sig,
		DataKey:            dataKey,
	}

	var signedPrefix Signature
	if rootKeyBuf != nil {
		if !sig.Inside(blockSize) {
			keyBlockLog.Debug("key block signature off end of block")
			return KeyBlock{}, StatusKeyBlockInvalid
		}
		rootKey, pkStatus := parseRootPublicKey(rootKeyBuf)
		if pkStatus != StatusSuccess {
			keyBlockLog.Debug("root key invalid", "status", pkStatus)
			return KeyBlock{}, pkStatus
		}
		if blockSize < sig.DataSize {
			keyBlockLog.Debug("signature data_size calculated past end of block")
			return KeyBlock{}, StatusKeyBlockInvalid
		}
		sigPayload, err := sig.Payload(buf)
		if err != nil {
			return KeyBlock{}, StatusKeyBlockInvalid
		}
		if err := rsaverify.VerifyData(backend, buf, sig.DataSize, sigPayload, rootKey); err != nil {
			keyBlockLog.Debug("key block signature verification failed", "err", err)
			return KeyBlock{}, StatusKeyBlockSignature
		}
		signedPrefix = sig
	} else {
		if !checksum.Inside(blockSize) {
			keyBlockLog.Debug("key block hash off end of block")
			return KeyBlock{}, StatusKeyBlockInvalid
		}
		if checksum.SigSize != sha512.Size {
			keyBlockLog.Debug("wrong hash size for key block")
			return KeyBlock{}, StatusKeyBlockInvalid
		}
		checksumPayload, err := checksum.Payload(buf)
		if err != nil {
			return KeyBlock{}, StatusKeyBlockInvalid
		}
		if checksum.DataSize > uint64(len(buf)) {
			keyBlockLog.Debug("checksum data_size exceeds buffer")
			return KeyBlock{}, StatusKeyBlockInvalid
		}
		computed := sha512.Sum512(buf[:checksum.DataSize])
		if !bounds.ConstantTimeCompare(computed[:], checksumPayload) {
			keyBlockLog.Debug("key block hash mismatch")
			return KeyBlock{}, StatusKeyBlockHash
		}
		signedPrefix = checksum
	}

	if signedPrefix.DataSize < KeyBlockHeaderSize {
		keyBlockLog.Debug("didn't sign enough data")
		return KeyBlock{}, StatusKeyBlockInvalid
	}

	if !dataKey.Inside(blockSize) {
		keyBlockLog.Debug("data key off end of key block")
		return KeyBlock{}, StatusKeyBlockInvalid
	}
	if !dataKey.Inside(signedPrefix.DataSize) {
		keyBlockLog.Debug("data key off end of signed data")
		return KeyBlock{}, StatusKeyBlockInvalid
	}

	return block, StatusSuccess
}

// parseRootPublicKey converts a standalone VbPublicKey blob (as supplied
// by a caller for keyed-mode key block verification) into an RSA key
// usable by rsaverify, performing the same checks as the source's
// PublicKeyToRSA: the algorithm must be in the table, and the payload
// must be exactly that algorithm's processed-key length.
func parseRootPublicKey(buf []byte) (*rsaverify.PublicKey, Status) {
	pk, ok := parsePublicKey(buf, 0)
	if !ok {
		return nil, StatusPublicKeyInvalid
	}
	if !pk.Algorithm.Valid() {
		return nil, StatusPublicKeyInvalid
	}
	if pk.KeySize != uint64(pk.Algorithm.ProcessedPubKeyLen()) {
		return nil, StatusPublicKeyInvalid
	}
	payload, err := pk.Payload(buf)
	if err != nil {
		return nil, StatusPublicKeyInvalid
	}
	rsaKey, err := rsaverify.ParsePublicKey(pk.Algorithm, payload)
	if err != nil {
		return nil, StatusPublicKeyInvalid
	}
	return rsaKey, StatusSuccess
}

// DataKeyKey parses the key block's embedded data key into a
// *rsaverify.PublicKey usable by the preamble verifiers. It is only
// meaningful on a KeyBlock returned with StatusSuccess from VerifyKeyBlock,
// since that is what guarantees DataKey is inside the signed prefix.
func (b KeyBlock) DataKeyKey() (*rsaverify.PublicKey, error) {
	if !b.DataKey.Algorithm.Valid() {
		return nil, errInvalidAlgorithm
	}
	payload, err := b.DataKey.Payload(b.buf)
	if err != nil {
		return nil, err
	}
	return rsaverify.ParsePublicKey(b.DataKey.Algorithm, payload)
}
