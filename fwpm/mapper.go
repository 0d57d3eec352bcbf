package fwpm

import "github.com/google/uuid"

// Mappers project one raw wire record into its typed entity. They are pure
// copies: a malformed record is a transport contract violation, not a
// condition mapped entities recover from. The session reference lets the
// entity serve later security-descriptor queries; entities never own the
// session.

func mapProvider(r RawProvider, s *Session) Provider {
	return Provider{
		Key:         UUIDFromKey(r.Key),
		Name:        r.Name,
		Description: r.Description,
		Flags:       r.Flags,
		ServiceName: r.ServiceName,
		session:     s,
	}
}

func mapLayer(r RawLayer, s *Session) Layer {
	return Layer{
		Key:                UUIDFromKey(r.Key),
		ID:                 r.ID,
		Name:               r.Name,
		Description:        r.Description,
		Flags:              r.Flags,
		DefaultSubLayerKey: UUIDFromKey(r.DefaultSubLayer),
		session:            s,
	}
}

func mapSubLayer(r RawSubLayer, s *Session) SubLayer {
	return SubLayer{
		Key:         UUIDFromKey(r.Key),
		Name:        r.Name,
		Description: r.Description,
		Flags:       r.Flags,
		Weight:      r.Weight,
		ProviderKey: optionalKey(r.Provider),
		session:     s,
	}
}

func mapCallout(r RawCallout, s *Session) Callout {
	return Callout{
		Key:             UUIDFromKey(r.Key),
		ID:              r.ID,
		Name:            r.Name,
		Description:     r.Description,
		Flags:           r.Flags,
		ProviderKey:     optionalKey(r.Provider),
		ApplicableLayer: UUIDFromKey(r.ApplicableLayer),
		session:         s,
	}
}

func mapFilter(r RawFilter, s *Session) Filter {
	return Filter{
		Key:         UUIDFromKey(r.Key),
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Flags:       r.Flags,
		LayerKey:    UUIDFromKey(r.Layer),
		SubLayerKey: UUIDFromKey(r.SubLayer),
		ProviderKey: optionalKey(r.Provider),
		Weight:      r.Weight,
		Action:      ActionType(r.Action),
		CalloutKey:  UUIDFromKey(r.Callout),
		session:     s,
	}
}

func optionalKey(k *RawKey) *uuid.UUID {
	if k == nil {
		return nil
	}
	id := UUIDFromKey(*k)
	return &id
}
