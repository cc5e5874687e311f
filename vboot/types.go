package vboot

import (
	"encoding/binary"

	"github.com/SynaptekResearch/vboot-android/alg"
	"github.com/SynaptekResearch/vboot-android/bounds"
)

// SignatureHeaderSize is the on-disk size, in bytes, of a VbSignature
// header: three little-endian uint64 fields.
const SignatureHeaderSize = 24

// PublicKeyHeaderSize is the on-disk size, in bytes, of a VbPublicKey
// header: four little-endian uint64 fields.
const PublicKeyHeaderSize = 32

// Signature is a view of a VbSignature header sitting at byte offset Base
// within some parent buffer. SigOffset/SigSize describe where the
// signature payload lives relative to Base; DataSize is how many bytes,
// starting at the parent's own base, this signature was computed over.
type Signature struct {
	Base      uint64
	SigOffset uint64
	SigSize   uint64
	DataSize  uint64
}

// parseSignature reads a VbSignature header from buf at byte offset base.
// It only checks that the fixed-size header itself fits in buf; it makes
// no claim about the payload range, which callers must separately check
// with Inside before calling Payload.
func parseSignature(buf []byte, base uint64) (Signature, bool) {
	hdr, err := bounds.Subslice(buf, base, 0, SignatureHeaderSize)
	if err != nil {
		return Signature{}, false
	}
	return Signature{
		Base:      base,
		SigOffset: binary.LittleEndian.Uint64(hdr[0:8]),
		SigSize:   binary.LittleEndian.Uint64(hdr[8:16]),
		DataSize:  binary.LittleEndian.Uint64(hdr[16:24]),
	}, true
}

// Inside reports whether this signature's header and payload both lie
// entirely within the first parentSize bytes of the buffer it was parsed
// from.
func (s Signature) Inside(parentSize uint64) bool {
	return bounds.MemberInside(parentSize, s.Base, SignatureHeaderSize, s.SigOffset, s.SigSize)
}

// Payload returns the signature payload bytes. Callers must have already
// confirmed Inside(parentSize) for the relevant parentSize; Payload itself
// re-checks via Subslice and returns an error rather than panicking if
// that invariant was skipped.
func (s Signature) Payload(buf []byte) ([]byte, error) {
	return bounds.Subslice(buf, s.Base, s.SigOffset, s.SigSize)
}

// PublicKey is a view of a VbPublicKey header sitting at byte offset Base
// within some parent buffer.
type PublicKey struct {
	Base       uint64
	KeyOffset  uint64
	KeySize    uint64
	Algorithm  alg.ID
	KeyVersion uint64
}

// parsePublicKey reads a VbPublicKey header from buf at byte offset base.
func parsePublicKey(buf []byte, base uint64) (PublicKey, bool) {
	hdr, err := bounds.Subslice(buf, base, 0, PublicKeyHeaderSize)
	if err != nil {
		return PublicKey{}, false
	}
	return PublicKey{
		Base:       base,
		KeyOffset:  binary.LittleEndian.Uint64(hdr[0:8]),
		KeySize:    binary.LittleEndian.Uint64(hdr[8:16]),
		Algorithm:  alg.ID(binary.LittleEndian.Uint64(hdr[16:24])),
		KeyVersion: binary.LittleEndian.Uint64(hdr[24:32]),
	}, true
}

// Inside reports whether this key's header and payload both lie entirely
// within the first parentSize bytes of the buffer it was parsed from.
func (k PublicKey) Inside(parentSize uint64) bool {
	return bounds.MemberInside(parentSize, k.Base, PublicKeyHeaderSize, k.KeyOffset, k.KeySize)
}

// Payload returns the public key payload bytes. See Signature.Payload for
// the precondition.
func (k PublicKey) Payload(buf []byte) ([]byte, error) {
	return bounds.Subslice(buf, k.Base, k.KeyOffset, k.KeySize)
}
