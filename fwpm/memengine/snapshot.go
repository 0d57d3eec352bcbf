package memengine

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"

	"github.com/wfpkit/wfpkit/fwpm"
)

// Snapshot is the TOML document format for an exported policy store, used
// by wfpctl to inspect policy offline. Keys are hyphenated GUID strings.
type Snapshot struct {
	Providers []SnapshotProvider `toml:"provider"`
	Layers    []SnapshotLayer    `toml:"layer"`
	SubLayers []SnapshotSubLayer `toml:"sublayer"`
	Callouts  []SnapshotCallout  `toml:"callout"`
	Filters   []SnapshotFilter   `toml:"filter"`
}

type SnapshotProvider struct {
	Key         string `toml:"key"`
	Name        string `toml:"name"`
	Description string `toml:"description"`
	Flags       uint32 `toml:"flags"`
	ServiceName string `toml:"service_name"`
}

type SnapshotLayer struct {
	Key             string `toml:"key"`
	ID              uint16 `toml:"id"`
	Name            string `toml:"name"`
	Description     string `toml:"description"`
	Flags           uint32 `toml:"flags"`
	DefaultSubLayer string `toml:"default_sublayer"`
}

type SnapshotSubLayer struct {
	Key         string `toml:"key"`
	Name        string `toml:"name"`
	Description string `toml:"description"`
	Flags       uint32 `toml:"flags"`
	Weight      uint16 `toml:"weight"`
	Provider    string `toml:"provider"`
}

type SnapshotCallout struct {
	Key             string `toml:"key"`
	ID              uint32 `toml:"id"`
	Name            string `toml:"name"`
	Description     string `toml:"description"`
	Flags           uint32 `toml:"flags"`
	Provider        string `toml:"provider"`
	ApplicableLayer string `toml:"applicable_layer"`
}

type SnapshotFilter struct {
	Key         string `toml:"key"`
	ID          uint64 `toml:"id"`
	Name        string `toml:"name"`
	Description string `toml:"description"`
	Flags       uint32 `toml:"flags"`
	Layer       string `toml:"layer"`
	SubLayer    string `toml:"sublayer"`
	Provider    string `toml:"provider"`
	Weight      uint64 `toml:"weight"`
	Action      string `toml:"action"` // block, permit, callout_terminating, ...
	Callout     string `toml:"callout"`
}

// LoadSnapshot reads a TOML snapshot file into a fresh engine.
func LoadSnapshot(path string) (*Engine, error) {
	var snap Snapshot
	if _, err := toml.DecodeFile(path, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return FromSnapshot(&snap)
}

// FromSnapshot populates a fresh engine from a decoded snapshot.
func FromSnapshot(snap *Snapshot) (*Engine, error) {
	e := New()

	for i, p := range snap.Providers {
		key, err := parseKey(p.Key, "provider", i)
		if err != nil {
			return nil, err
		}
		e.AddProvider(fwpm.Provider{
			Key:         key,
			Name:        p.Name,
			Description: p.Description,
			Flags:       p.Flags,
			ServiceName: p.ServiceName,
		})
	}

	for i, l := range snap.Layers {
		key, err := parseKey(l.Key, "layer", i)
		if err != nil {
			return nil, err
		}
		def, err := parseOptionalKey(l.DefaultSubLayer, "layer", i)
		if err != nil {
			return nil, err
		}
		layer := fwpm.Layer{
			Key:         key,
			ID:          l.ID,
			Name:        l.Name,
			Description: l.Description,
			Flags:       l.Flags,
		}
		if def != nil {
			layer.DefaultSubLayerKey = *def
		}
		e.AddLayer(layer)
	}

	for i, sl := range snap.SubLayers {
		key, err := parseKey(sl.Key, "sublayer", i)
		if err != nil {
			return nil, err
		}
		provider, err := parseOptionalKey(sl.Provider, "sublayer", i)
		if err != nil {
			return nil, err
		}
		e.AddSubLayer(fwpm.SubLayer{
			Key:         key,
			Name:        sl.Name,
			Description: sl.Description,
			Flags:       sl.Flags,
			Weight:      sl.Weight,
			ProviderKey: provider,
		})
	}

	for i, co := range snap.Callouts {
		key, err := parseKey(co.Key, "callout", i)
		if err != nil {
			return nil, err
		}
		provider, err := parseOptionalKey(co.Provider, "callout", i)
		if err != nil {
			return nil, err
		}
		layer, err := parseOptionalKey(co.ApplicableLayer, "callout", i)
		if err != nil {
			return nil, err
		}
		callout := fwpm.Callout{
			Key:         key,
			ID:          co.ID,
			Name:        co.Name,
			Description: co.Description,
			Flags:       co.Flags,
			ProviderKey: provider,
		}
		if layer != nil {
			callout.ApplicableLayer = *layer
		}
		e.AddCallout(callout)
	}

	for i, f := range snap.Filters {
		key, err := parseKey(f.Key, "filter", i)
		if err != nil {
			return nil, err
		}
		layer, err := parseOptionalKey(f.Layer, "filter", i)
		if err != nil {
			return nil, err
		}
		subLayer, err := parseOptionalKey(f.SubLayer, "filter", i)
		if err != nil {
			return nil, err
		}
		provider, err := parseOptionalKey(f.Provider, "filter", i)
		if err != nil {
			return nil, err
		}
		callout, err := parseOptionalKey(f.Callout, "filter", i)
		if err != nil {
			return nil, err
		}
		action, err := parseAction(f.Action)
		if err != nil {
			return nil, fmt.Errorf("filter %d: %w", i, err)
		}
		filter := fwpm.Filter{
			Key:         key,
			ID:          f.ID,
			Name:        f.Name,
			Description: f.Description,
			Flags:       f.Flags,
			ProviderKey: provider,
			Weight:      f.Weight,
			Action:      action,
		}
		if layer != nil {
			filter.LayerKey = *layer
		}
		if subLayer != nil {
			filter.SubLayerKey = *subLayer
		}
		if callout != nil {
			filter.CalloutKey = *callout
		}
		e.AddFilter(filter)
	}

	return e, nil
}

func parseKey(s, kind string, i int) (uuid.UUID, error) {
	key, err := uuid.Parse(s)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("%s %d: bad key %q: %w", kind, i, s, err)
	}
	return key, nil
}

func parseOptionalKey(s, kind string, i int) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	key, err := uuid.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("%s %d: bad key %q: %w", kind, i, s, err)
	}
	return &key, nil
}

func parseAction(s string) (fwpm.ActionType, error) {
	switch s {
	case "", "permit":
		return fwpm.ActionPermit, nil
	case "block":
		return fwpm.ActionBlock, nil
	case "callout_terminating":
		return fwpm.ActionCalloutTerminating, nil
	case "callout_inspection":
		return fwpm.ActionCalloutInspection, nil
	case "callout_unknown":
		return fwpm.ActionCalloutUnknown, nil
	default:
		return 0, fmt.Errorf("unknown action %q", s)
	}
}
