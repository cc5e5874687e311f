package alg

import (
	"bytes"
	"testing"
)

func TestValid(t *testing.T) {
	for id := RSA1024SHA1; id <= RSA8192SHA512; id++ {
		if !id.Valid() {
			t.Errorf("ID(%d) should be valid", id)
		}
	}
	if NumAlgorithms.Valid() {
		t.Error("NumAlgorithms should not be valid")
	}
	if ID(9999).Valid() {
		t.Error("out-of-range ID should not be valid")
	}
}

func TestModulusBitsAndSigLen(t *testing.T) {
	cases := []struct {
		id   ID
		bits int
	}{
		{RSA1024SHA1, 1024},
		{RSA1024SHA256, 1024},
		{RSA1024SHA512, 1024},
		{RSA2048SHA1, 2048},
		{RSA2048SHA256, 2048},
		{RSA2048SHA512, 2048},
		{RSA4096SHA1, 4096},
		{RSA4096SHA256, 4096},
		{RSA4096SHA512, 4096},
		{RSA8192SHA1, 8192},
		{RSA8192SHA256, 8192},
		{RSA8192SHA512, 8192},
	}
	for _, c := range cases {
		if got := c.id.ModulusBits(); got != c.bits {
			t.Errorf("ModulusBits(%d) = %d, want %d", c.id, got, c.bits)
		}
		if got := c.id.SigLen(); got != c.bits/8 {
			t.Errorf("SigLen(%d) = %d, want %d", c.id, got, c.bits/8)
		}
	}
}

func TestDigestLen(t *testing.T) {
	cases := []struct {
		id  ID
		len int
	}{
		{RSA1024SHA1, 20}, {RSA2048SHA1, 20}, {RSA4096SHA1, 20}, {RSA8192SHA1, 20},
		{RSA1024SHA256, 32}, {RSA2048SHA256, 32}, {RSA4096SHA256, 32}, {RSA8192SHA256, 32},
		{RSA1024SHA512, 64}, {RSA2048SHA512, 64}, {RSA4096SHA512, 64}, {RSA8192SHA512, 64},
	}
	for _, c := range cases {
		if got := c.id.DigestLen(); got != c.len {
			t.Errorf("DigestLen(%d) = %d, want %d", c.id, got, c.len)
		}
	}
}

func TestProcessedPubKeyLen(t *testing.T) {
	cases := []struct {
		id  ID
		len int
	}{
		{RSA1024SHA256, 4 + 1024/8},
		{RSA2048SHA256, 4 + 2048/8},
		{RSA4096SHA256, 4 + 4096/8},
		{RSA8192SHA256, 4 + 8192/8},
	}
	for _, c := range cases {
		if got := c.id.ProcessedPubKeyLen(); got != c.len {
			t.Errorf("ProcessedPubKeyLen(%d) = %d, want %d", c.id, got, c.len)
		}
	}
}

func TestDigestInfo(t *testing.T) {
	// DigestInfo prefixes are shared across modulus sizes for a given
	// digest, and distinct across digests.
	sha1Info := RSA1024SHA1.DigestInfo()
	sha256Info := RSA1024SHA256.DigestInfo()
	sha512Info := RSA1024SHA512.DigestInfo()

	if !bytes.Equal(sha1Info, RSA8192SHA1.DigestInfo()) {
		t.Error("SHA1 DigestInfo should not vary with modulus size")
	}
	if !bytes.Equal(sha256Info, RSA4096SHA256.DigestInfo()) {
		t.Error("SHA256 DigestInfo should not vary with modulus size")
	}
	if bytes.Equal(sha1Info, sha256Info) || bytes.Equal(sha256Info, sha512Info) || bytes.Equal(sha1Info, sha512Info) {
		t.Error("distinct digest algorithms must have distinct DigestInfo prefixes")
	}

	// Lengths per RFC 8017 appendix B.1.
	if len(sha1Info) != 15 {
		t.Errorf("len(sha1Info) = %d, want 15", len(sha1Info))
	}
	if len(sha256Info) != 19 {
		t.Errorf("len(sha256Info) = %d, want 19", len(sha256Info))
	}
	if len(sha512Info) != 19 {
		t.Errorf("len(sha512Info) = %d, want 19", len(sha512Info))
	}
}

func TestInvalidIDPanics(t *testing.T) {
	cases := []struct {
		name string
		fn   func()
	}{
		{"ModulusBits", func() { NumAlgorithms.ModulusBits() }},
		{"SigLen", func() { NumAlgorithms.SigLen() }},
		{"DigestLen", func() { ID(9999).DigestLen() }},
		{"DigestInfo", func() { ID(9999).DigestInfo() }},
		{"ProcessedPubKeyLen", func() { NumAlgorithms.ProcessedPubKeyLen() }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Errorf("%s on an invalid ID should panic", c.name)
				}
			}()
			c.fn()
		})
	}
}
