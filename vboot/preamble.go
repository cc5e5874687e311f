package vboot

import (
	"encoding/binary"

	"github.com/SynaptekResearch/vboot-android/bounds"
	"github.com/SynaptekResearch/vboot-android/log"
	"github.com/SynaptekResearch/vboot-android/rsaverify"
)

// FirmwarePreambleHeaderVersionMajor is the only major header version the
// firmware preamble verifier accepts.
const FirmwarePreambleHeaderVersionMajor = 2

// KernelPreambleHeaderVersionMajor is the only major header version the
// kernel preamble verifier accepts.
const KernelPreambleHeaderVersionMajor = 2

// FirmwarePreambleHeaderSize is sizeof(VbFirmwarePreambleHeader): two
// version fields + preamble_size + firmware_version + kernel_subkey +
// body_signature + preamble_signature.
const FirmwarePreambleHeaderSize = 8 + 8 + 8 + 8 + PublicKeyHeaderSize + SignatureHeaderSize + SignatureHeaderSize

const (
	fwPreambleOffVersionMajor = 0
	fwPreambleOffVersionMinor = 8
	fwPreambleOffPreambleSize = 16
	fwPreambleOffFirmwareVer  = 24
	fwPreambleOffKernelSubkey = 32
	fwPreambleOffBodySig      = 32 + PublicKeyHeaderSize
	fwPreambleOffPreambleSig  = 32 + PublicKeyHeaderSize + SignatureHeaderSize
)

// KernelPreambleHeaderSize is sizeof(VbKernelPreambleHeader): two version
// fields + preamble_size + kernel_version + body_load_address +
// bootloader_address + bootloader_size + body_signature +
// preamble_signature.
const KernelPreambleHeaderSize = 8*7 + SignatureHeaderSize + SignatureHeaderSize

const (
	kPreambleOffVersionMajor   = 0
	kPreambleOffVersionMinor   = 8
	kPreambleOffPreambleSize   = 16
	kPreambleOffKernelVersion  = 24
	kPreambleOffBodyLoadAddr   = 32
	kPreambleOffBootloaderAddr = 40
	kPreambleOffBootloaderSize = 48
	kPreambleOffBodySig        = 56
	kPreambleOffPreambleSig    = 56 + SignatureHeaderSize
)

// FirmwarePreamble is a parsed view over a VbFirmwarePreambleHeader
// sitting at the start of a caller-owned buffer.
type FirmwarePreamble struct {
	HeaderVersionMajor uint64
	HeaderVersionMinor uint64
	PreambleSize       uint64
	FirmwareVersion    uint64
	KernelSubkey       PublicKey
	BodySignature      Signature
	PreambleSignature  Signature
}

// KernelPreamble is a parsed view over a VbKernelPreambleHeader sitting at
// the start of a caller-owned buffer.
type KernelPreamble struct {
	HeaderVersionMajor uint64
	HeaderVersionMinor uint64
	PreambleSize       uint64
	KernelVersion      uint64
	BodyLoadAddress    uint64
	BootloaderAddress  uint64
	BootloaderSize     uint64
	BodySignature      Signature
	PreambleSignature  Signature
}

var preambleLog = log.Default().Module("vboot.preamble")

// VerifyFirmwarePreamble implements spec section 4.5: it parses and
// validates a firmware preamble against dataKey (the RSA key extracted
// from an already-verified key block's DataKey field). A failure at any
// step returns immediately with the first category that fired.
//
// kernel_subkey and body_signature are bounds-checked against the whole
// preamble, not the signed prefix -- this is an intentional asymmetry
// with the key block's data_key check, preserved from the source for
// compatibility; see DESIGN.md for why it is not
// strengthened here.
func VerifyFirmwarePreamble(buf []byte, dataKey *rsaverify.PublicKey) (FirmwarePreamble, Status) {
	return verifyFirmwarePreambleWithBackend(buf, dataKey, rsaverify.DefaultBackend)
}

func verifyFirmwarePreambleWithBackend(buf []byte, dataKey *rsaverify.PublicKey, backend rsaverify.RSABackend) (FirmwarePreamble, Status) {
	hdr, err := bounds.Subslice(buf, 0, 0, FirmwarePreambleHeaderSize)
	if err != nil {
		preambleLog.Debug("buffer too small for firmware preamble header")
		return FirmwarePreamble{}, StatusPreambleInvalid
	}

	major := binary.LittleEndian.Uint64(hdr[fwPreambleOffVersionMajor : fwPreambleOffVersionMajor+8])
	minor := binary.LittleEndian.Uint64(hdr[fwPreambleOffVersionMinor : fwPreambleOffVersionMinor+8])
	if major != FirmwarePreambleHeaderVersionMajor {
		preambleLog.Debug("incompatible firmware preamble version", "major", major)
		return FirmwarePreamble{}, StatusPreambleInvalid
	}

	preambleSize := binary.LittleEndian.Uint64(hdr[fwPreambleOffPreambleSize : fwPreambleOffPreambleSize+8])
	if uint64(len(buf)) < preambleSize {
		preambleLog.Debug("not enough data for firmware preamble")
		return FirmwarePreamble{}, StatusPreambleInvalid
	}
	firmwareVersion := binary.LittleEndian.Uint64(hdr[fwPreambleOffFirmwareVer : fwPreambleOffFirmwareVer+8])

	kernelSubkey, ok := parsePublicKey(buf, fwPreambleOffKernelSubkey)
	if !ok {
		return FirmwarePreamble{}, StatusPreambleInvalid
	}
	bodySig, ok := parseSignature(buf, fwPreambleOffBodySig)
	if !ok {
		return FirmwarePreamble{}, StatusPreambleInvalid
	}
	preambleSig, ok := parseSignature(buf, fwPreambleOffPreambleSig)
	if !ok {
		return FirmwarePreamble{}, StatusPreambleInvalid
	}

	if !preambleSig.Inside(preambleSize) {
		preambleLog.Debug("preamble signature off end of preamble")
		return FirmwarePreamble{}, StatusPreambleInvalid
	}
	if preambleSize < preambleSig.DataSize {
		preambleLog.Debug("signature data_size calculated past end of preamble")
		return FirmwarePreamble{}, StatusPreambleInvalid
	}
	sigPayload, err := preambleSig.Payload(buf)
	if err != nil {
		return FirmwarePreamble{}, StatusPreambleInvalid
	}
	if err := rsaverify.VerifyData(backend, buf, preambleSig.DataSize, sigPayload, dataKey); err != nil {
		preambleLog.Debug("firmware preamble signature verification failed", "err", err)
		return FirmwarePreamble{}, StatusPreambleSignature
	}

	if preambleSig.DataSize < FirmwarePreambleHeaderSize {
		preambleLog.Debug("didn't sign enough data")
		return FirmwarePreamble{}, StatusPreambleInvalid
	}

	if !bodySig.Inside(preambleSize) {
		preambleLog.Debug("firmware body signature off end of preamble")
		return FirmwarePreamble{}, StatusPreambleInvalid
	}
	if !kernelSubkey.Inside(preambleSize) {
		preambleLog.Debug("kernel subkey off end of preamble")
		return FirmwarePreamble{}, StatusPreambleInvalid
	}

	return FirmwarePreamble{
		HeaderVersionMajor: major,
		HeaderVersionMinor: minor,
		PreambleSize:       preambleSize,
		FirmwareVersion:    firmwareVersion,
		KernelSubkey:       kernelSubkey,
		BodySignature:      bodySig,
		PreambleSignature:  preambleSig,
	}, StatusSuccess
}

// VerifyKernelPreamble implements spec section 4.6: identical in shape to
// VerifyFirmwarePreamble, but there is no kernel_subkey sub-object to
// bound, the version constant differs, and -- unlike the source, which
// omits it (flagged in the spec as a likely oversight) -- this
// reimplementation includes the preamble_size >= signature.data_size
// check before attempting verification.
func VerifyKernelPreamble(buf []byte, dataKey *rsaverify.PublicKey) (KernelPreamble, Status) {
	return verifyKernelPreambleWithBackend(buf, dataKey, rsaverify.DefaultBackend)
}

func verifyKernelPreambleWithBackend(buf []byte, dataKey *rsaverify.PublicKey, backend rsaverify.RSABackend) (KernelPreamble, Status) {
	hdr, err := bounds.Subslice(buf, 0, 0, KernelPreambleHeaderSize)
	if err != nil {
		preambleLog.Debug("buffer too small for kernel preamble header")
		return KernelPreamble{}, StatusPreambleInvalid
	}

	major := binary.LittleEndian.Uint64(hdr[kPreambleOffVersionMajor : kPreambleOffVersionMajor+8])
	minor := binary.LittleEndian.Uint64(hdr[kPreambleOffVersionMinor : kPreambleOffVersionMinor+8])
	if major != KernelPreambleHeaderVersionMajor {
		preambleLog.Debug("incompatible kernel preamble version", "major", major)
		return KernelPreamble{}, StatusPreambleInvalid
	}

	preambleSize := binary.LittleEndian.Uint64(hdr[kPreambleOffPreambleSize : kPreambleOffPreambleSize+8])
	if uint64(len(buf)) < preambleSize {
		preambleLog.Debug("not enough data for kernel preamble")
		return KernelPreamble{}, StatusPreambleInvalid
	}

	kernelVersion := binary.LittleEndian.Uint64(hdr[kPreambleOffKernelVersion : kPreambleOffKernelVersion+8])
	bodyLoadAddr := binary.LittleEndian.Uint64(hdr[kPreambleOffBodyLoadAddr : kPreambleOffBodyLoadAddr+8])
	bootloaderAddr := binary.LittleEndian.Uint64(hdr[kPreambleOffBootloaderAddr : kPreambleOffBootloaderAddr+8])
	bootloaderSize := binary.LittleEndian.Uint64(hdr[kPreambleOffBootloaderSize : kPreambleOffBootloaderSize+8])

	bodySig, ok := parseSignature(buf, kPreambleOffBodySig)
	if !ok {
		return KernelPreamble{}, StatusPreambleInvalid
	}
	preambleSig, ok := parseSignature(buf, kPreambleOffPreambleSig)
	if !ok {
		return KernelPreamble{}, StatusPreambleInvalid
	}

	if !preambleSig.Inside(preambleSize) {
		preambleLog.Debug("preamble signature off end of preamble")
		return KernelPreamble{}, StatusPreambleInvalid
	}
	// Added defensively: the source's kernel-preamble path omits this
	// check (present in the firmware path), which the spec flags as a
	// likely oversight rather than a deliberate asymmetry.
	if preambleSize < preambleSig.DataSize {
		preambleLog.Debug("signature data_size calculated past end of preamble")
		return KernelPreamble{}, StatusPreambleInvalid
	}
	sigPayload, err := preambleSig.Payload(buf)
	if err != nil {
		return KernelPreamble{}, StatusPreambleInvalid
	}
	if err := rsaverify.VerifyData(backend, buf, preambleSig.DataSize, sigPayload, dataKey); err != nil {
		preambleLog.Debug("kernel preamble signature verification failed", "err", err)
		return KernelPreamble{}, StatusPreambleSignature
	}

	if preambleSig.DataSize < KernelPreambleHeaderSize {
		preambleLog.Debug("didn't sign enough data")
		return KernelPreamble{}, StatusPreambleInvalid
	}

	if !bodySig.Inside(preambleSize) {
		preambleLog.Debug("kernel body signature off end of preamble")
		return KernelPreamble{}, StatusPreambleInvalid
	}

	return KernelPreamble{
		HeaderVersionMajor: major,
		HeaderVersionMinor: minor,
		PreambleSize:       preambleSize,
		KernelVersion:      kernelVersion,
		BodyLoadAddress:    bodyLoadAddr,
		BootloaderAddress:  bootloaderAddr,
		BootloaderSize:     bootloaderSize,
		BodySignature:      bodySig,
		PreambleSignature:  preambleSig,
	}, StatusSuccess
}
