package fwpm

import "github.com/google/uuid"

// RawKey is an object key as the engine stores it: 16 bytes in the
// engine's mixed-endian GUID layout. The first three fields (4, 2 and 2
// bytes) are little-endian; the final 8 bytes are big-endian, unlike the
// uniformly big-endian RFC 4122 encoding used by uuid.UUID.
type RawKey [16]byte

// KeyFromUUID converts a UUID into the engine's wire key layout.
func KeyFromUUID(id uuid.UUID) RawKey {
	var k RawKey
	copy(k[:], id[:])
	swapKeyFields(&k)
	return k
}

// UUIDFromKey converts an engine wire key back into a UUID.
func UUIDFromKey(k RawKey) uuid.UUID {
	swapKeyFields(&k)
	var id uuid.UUID
	copy(id[:], k[:])
	return id
}

// IsZero reports whether the key is all zeroes, the engine's "absent" value.
func (k RawKey) IsZero() bool {
	return k == RawKey{}
}

// String renders the key as its hyphenated UUID form.
func (k RawKey) String() string {
	return UUIDFromKey(k).String()
}

// swapKeyFields toggles between RFC 4122 and engine byte order in place.
// The transform is its own inverse.
func swapKeyFields(k *RawKey) {
	k[0], k[3] = k[3], k[0]
	k[1], k[2] = k[2], k[1]
	k[4], k[5] = k[5], k[4]
	k[6], k[7] = k[7], k[6]
}
