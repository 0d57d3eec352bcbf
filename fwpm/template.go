package fwpm

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// FilterEnumTemplate narrows a filter enumeration. Zero-valued fields do
// not constrain the result. Templates are immutable values; each
// enumeration call marshals its template into a fresh wire buffer whose
// lifetime ends with that call.
type FilterEnumTemplate struct {
	// LayerKey restricts the enumeration to filters in one layer.
	LayerKey uuid.UUID

	// ProviderKey restricts the enumeration to filters installed by one
	// provider.
	ProviderKey uuid.UUID

	// ActionMask restricts the enumeration to filters whose action shares
	// at least one bit with the mask. Zero means any action.
	ActionMask uint32
}

// Wire layout: layer key (16, engine order), provider key (16, engine
// order), action mask (4, little-endian).
const filterTemplateSize = 36

// marshal renders the template in the engine's wire layout. A nil template
// marshals to nil, the engine's "no filter" value.
func (t *FilterEnumTemplate) marshal() []byte {
	if t == nil {
		return nil
	}
	buf := make([]byte, filterTemplateSize)
	layer := KeyFromUUID(t.LayerKey)
	provider := KeyFromUUID(t.ProviderKey)
	copy(buf[0:16], layer[:])
	copy(buf[16:32], provider[:])
	binary.LittleEndian.PutUint32(buf[32:36], t.ActionMask)
	return buf
}

// ParseFilterEnumTemplate decodes a marshaled template. Transports use it
// to interpret the buffer passed to CreateEnumHandle. A nil or empty
// buffer decodes to a nil template.
func ParseFilterEnumTemplate(buf []byte) (*FilterEnumTemplate, error) {
	if len(buf) == 0 {
		return nil, nil
	}
	if len(buf) != filterTemplateSize {
		return nil, fmt.Errorf("filter template: expected %d bytes, got %d", filterTemplateSize, len(buf))
	}
	var layer, provider RawKey
	copy(layer[:], buf[0:16])
	copy(provider[:], buf[16:32])
	return &FilterEnumTemplate{
		LayerKey:    UUIDFromKey(layer),
		ProviderKey: UUIDFromKey(provider),
		ActionMask:  binary.LittleEndian.Uint32(buf[32:36]),
	}, nil
}

// Matches reports whether a raw filter record satisfies the template.
// A nil template matches everything.
func (t *FilterEnumTemplate) Matches(f RawFilter) bool {
	if t == nil {
		return true
	}
	if t.LayerKey != (uuid.UUID{}) && f.Layer != KeyFromUUID(t.LayerKey) {
		return false
	}
	if t.ProviderKey != (uuid.UUID{}) {
		if f.Provider == nil || *f.Provider != KeyFromUUID(t.ProviderKey) {
			return false
		}
	}
	if t.ActionMask != 0 && f.Action&t.ActionMask == 0 {
		return false
	}
	return true
}
