// Package bounds implements the containment arithmetic that every
// sub-object reference in a verified-boot structure must pass before its
// bytes are touched: given a parent byte range and a candidate member
// (its own header size plus a declared payload offset/size, all drawn
// from untrusted bytes), decide whether the member's header and payload
// both lie entirely inside the parent, using overflow-checked arithmetic.
//
// The source computes a sub-object's address by adding an untrusted
// offset to a struct pointer and only checks the result afterwards
// (OffsetOf + VerifyMemberInside). This package inverts that: the only
// way to reach a sub-object's bytes is through Subslice, which performs
// the check and the slice in one step and fails closed. MemberInside is
// kept as a direct, allocation-free predicate for call sites that need a
// yes/no answer without the slice itself.
package bounds

import (
	"crypto/subtle"
	"errors"
)

// ErrOutOfRange is returned by Subslice when the requested range does not
// lie entirely within the parent buffer.
var ErrOutOfRange = errors.New("bounds: range outside parent")

// MemberInside reports whether a member's header and trailing payload both
// lie entirely within [0, parentSize), where memberBase is the member's
// offset from the start of the parent (parentBase subtracted out by the
// caller — see Subslice for the pointer-free equivalent).
//
// All four of the following must hold; overflow in any addition is
// treated as "outside":
//
//  1. memberBase <= parentSize
//  2. memberBase + memberHeaderSize <= parentSize
//  3. memberBase + payloadOffset <= parentSize
//  4. memberBase + payloadOffset + payloadSize <= parentSize
//
// No assumption is made about the relative order of memberHeaderSize and
// payloadOffset: a payload may overlap its own header's bytes. It cannot
// start before the header, since payloadOffset is unsigned and is added to
// memberBase.
// The producer is free to lay out payloads anywhere in the container; the
// only thing this predicate guarantees is that nothing escapes it.
func MemberInside(parentSize, memberBase, memberHeaderSize, payloadOffset, payloadSize uint64) bool {
	if memberBase > parentSize {
		return false
	}
	end, ok := addOk(memberBase, memberHeaderSize)
	if !ok || end > parentSize {
		return false
	}
	end, ok = addOk(memberBase, payloadOffset)
	if !ok || end > parentSize {
		return false
	}
	end, ok = addOk(end, payloadSize)
	if !ok || end > parentSize {
		return false
	}
	return true
}

func addOk(a, b uint64) (uint64, bool) {
	sum := a + b
	return sum, sum >= a
}

// Subslice returns the byte range [base+offset, base+offset+size) of buf,
// after checking that base >= 0, the range does not overflow, and the
// range lies entirely within len(buf). It rejects offset/size combinations
// that would require base to exceed len(buf) even before adding offset.
//
// This is the sole sanctioned way to turn an untrusted (offset, size) pair
// into bytes in this module: every sub-object accessor in package vboot
// goes through it, so there is exactly one place that can get the
// arithmetic wrong.
func Subslice(buf []byte, base, offset, size uint64) ([]byte, error) {
	if base > uint64(len(buf)) {
		return nil, ErrOutOfRange
	}
	start, ok := addOk(base, offset)
	if !ok || start > uint64(len(buf)) {
		return nil, ErrOutOfRange
	}
	end, ok := addOk(start, size)
	if !ok || end > uint64(len(buf)) {
		return nil, ErrOutOfRange
	}
	return buf[start:end], nil
}

// ConstantTimeCompare reports whether a and b are equal, in time
// independent of where they first differ (it is NOT independent of
// len(a) vs len(b), so callers should compare known-length fields).
func ConstantTimeCompare(a, b []byte) bool {
	return len(a) == len(b) && subtle.ConstantTimeCompare(a, b) == 1
}
