// Package memengine is an in-memory implementation of the fwpm.Transport
// interface: a complete, self-contained policy engine store with paged
// enumeration handles, template filtering and per-object security
// descriptors. It backs the test suite and wfpctl's offline snapshot mode.
package memengine

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/wfpkit/wfpkit/fwpm"
)

// Counters is a snapshot of the engine's call accounting.
type Counters struct {
	OpenCalls            int
	EnumHandlesCreated   int
	EnumHandlesDestroyed int
	EnumBatches          int
	PagesFreed           int
	ObjectsFreed         int
	BuffersFreed         int
	SecurityCalls        int
}

// Engine is an in-memory policy engine. The zero value is not usable; use
// New. Fault fields may be set between operations to make the next
// matching call fail with the given code; they stay in effect until
// cleared.
type Engine struct {
	mu sync.Mutex

	providers *store[fwpm.RawProvider]
	layers    *store[fwpm.RawLayer]
	subLayers *store[fwpm.RawSubLayer]
	callouts  *store[fwpm.RawCallout]
	filters   *store[fwpm.RawFilter]

	layerIDs     map[uint16]fwpm.RawKey
	calloutIDs   map[uint32]fwpm.RawKey
	filterIDs    map[uint64]fwpm.RawKey
	nextFilterID uint64

	objectSecurity map[fwpm.RawKey]*Security
	engineSecurity *Security

	providerOps fwpm.ProviderOps
	layerOps    fwpm.LayerOps
	subLayerOps fwpm.SubLayerOps
	calloutOps  fwpm.CalloutOps
	filterOps   fwpm.FilterOps

	counters Counters
	lastMask fwpm.InfoMask

	// Fault injection.
	OpenCode       fwpm.NativeCode // fail Open
	CreateEnumCode fwpm.NativeCode // fail CreateEnumHandle
	EnumFailBatch  int             // 1-based batch index within an enumeration to fail
	EnumFailCode   fwpm.NativeCode // code for EnumFailBatch (defaults to generic not-found-free failure)
	GetCode        fwpm.NativeCode // fail GetByKey / GetByID
	SecurityCode   fwpm.NativeCode // fail security info calls
}

var _ fwpm.Transport = (*Engine)(nil)

// New returns an empty engine.
func New() *Engine {
	e := &Engine{
		providers: newStore[fwpm.RawProvider](fwpm.CodeProviderNotFound,
			func(r fwpm.RawProvider) fwpm.RawKey { return r.Key }),
		layers: newStore[fwpm.RawLayer](fwpm.CodeLayerNotFound,
			func(r fwpm.RawLayer) fwpm.RawKey { return r.Key }),
		subLayers: newStore[fwpm.RawSubLayer](fwpm.CodeSubLayerNotFound,
			func(r fwpm.RawSubLayer) fwpm.RawKey { return r.Key }),
		callouts: newStore[fwpm.RawCallout](fwpm.CodeCalloutNotFound,
			func(r fwpm.RawCallout) fwpm.RawKey { return r.Key }),
		filters: newStore[fwpm.RawFilter](fwpm.CodeFilterNotFound,
			func(r fwpm.RawFilter) fwpm.RawKey { return r.Key }),
		layerIDs:       make(map[uint16]fwpm.RawKey),
		calloutIDs:     make(map[uint32]fwpm.RawKey),
		filterIDs:      make(map[uint64]fwpm.RawKey),
		objectSecurity: make(map[fwpm.RawKey]*Security),
	}
	e.providerOps = &ops[fwpm.RawProvider]{e: e, st: e.providers, cursors: map[fwpm.EnumHandle]*cursor[fwpm.RawProvider]{}}
	e.layerOps = layerOps{&ops[fwpm.RawLayer]{e: e, st: e.layers, cursors: map[fwpm.EnumHandle]*cursor[fwpm.RawLayer]{}}}
	e.subLayerOps = &ops[fwpm.RawSubLayer]{e: e, st: e.subLayers, cursors: map[fwpm.EnumHandle]*cursor[fwpm.RawSubLayer]{}}
	e.calloutOps = calloutOps{&ops[fwpm.RawCallout]{e: e, st: e.callouts, cursors: map[fwpm.EnumHandle]*cursor[fwpm.RawCallout]{}}}
	e.filterOps = filterOps{&ops[fwpm.RawFilter]{
		e:       e,
		st:      e.filters,
		cursors: map[fwpm.EnumHandle]*cursor[fwpm.RawFilter]{},
		match: func(t *fwpm.FilterEnumTemplate, r fwpm.RawFilter) bool {
			return t.Matches(r)
		},
	}}
	return e
}

// AddProvider installs or replaces a provider.
func (e *Engine) AddProvider(p fwpm.Provider) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.providers.put(fwpm.RawProvider{
		Key:         fwpm.KeyFromUUID(p.Key),
		Flags:       p.Flags,
		Name:        p.Name,
		Description: p.Description,
		ServiceName: p.ServiceName,
	})
}

// AddLayer installs or replaces a layer. The caller supplies the runtime ID.
func (e *Engine) AddLayer(l fwpm.Layer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := fwpm.KeyFromUUID(l.Key)
	e.layers.put(fwpm.RawLayer{
		Key:             key,
		ID:              l.ID,
		Flags:           l.Flags,
		Name:            l.Name,
		Description:     l.Description,
		DefaultSubLayer: fwpm.KeyFromUUID(l.DefaultSubLayerKey),
	})
	e.layerIDs[l.ID] = key
}

// AddSubLayer installs or replaces a sub-layer.
func (e *Engine) AddSubLayer(sl fwpm.SubLayer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subLayers.put(fwpm.RawSubLayer{
		Key:         fwpm.KeyFromUUID(sl.Key),
		Flags:       sl.Flags,
		Weight:      sl.Weight,
		Name:        sl.Name,
		Description: sl.Description,
		Provider:    rawOptional(sl.ProviderKey),
	})
}

// AddCallout installs or replaces a callout. The caller supplies the
// runtime ID.
func (e *Engine) AddCallout(co fwpm.Callout) {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := fwpm.KeyFromUUID(co.Key)
	e.callouts.put(fwpm.RawCallout{
		Key:             key,
		ID:              co.ID,
		Flags:           co.Flags,
		Name:            co.Name,
		Description:     co.Description,
		Provider:        rawOptional(co.ProviderKey),
		ApplicableLayer: fwpm.KeyFromUUID(co.ApplicableLayer),
	})
	e.calloutIDs[co.ID] = key
}

// AddFilter installs or replaces a filter. A zero ID is replaced with the
// next engine-assigned runtime ID; the effective ID is returned.
func (e *Engine) AddFilter(f fwpm.Filter) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := f.ID
	if id == 0 {
		e.nextFilterID++
		id = e.nextFilterID
	}
	key := fwpm.KeyFromUUID(f.Key)
	e.filters.put(fwpm.RawFilter{
		Key:         key,
		ID:          id,
		Flags:       f.Flags,
		Name:        f.Name,
		Description: f.Description,
		Layer:       fwpm.KeyFromUUID(f.LayerKey),
		SubLayer:    fwpm.KeyFromUUID(f.SubLayerKey),
		Provider:    rawOptional(f.ProviderKey),
		Weight:      f.Weight,
		Action:      uint32(f.Action),
		Callout:     fwpm.KeyFromUUID(f.CalloutKey),
	})
	e.filterIDs[id] = key
	return id
}

// SetObjectSecurity attaches a security descriptor source to one object.
func (e *Engine) SetObjectSecurity(key uuid.UUID, sec *Security) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.objectSecurity[fwpm.KeyFromUUID(key)] = sec
}

// SetEngineSecurity attaches the engine's own security descriptor source.
func (e *Engine) SetEngineSecurity(sec *Security) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.engineSecurity = sec
}

// Counters returns a snapshot of the call accounting.
func (e *Engine) Counters() Counters {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counters
}

// LastSecurityMask reports the mask most recently seen by a security call.
func (e *Engine) LastSecurityMask() fwpm.InfoMask {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastMask
}

// Open implements fwpm.Transport. Auth parameters are accepted and ignored;
// the in-memory engine trusts every caller.
func (e *Engine) Open(ctx context.Context, server string, auth fwpm.AuthKind, creds *fwpm.Credentials) (fwpm.Conn, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.counters.OpenCalls++
	if e.OpenCode != fwpm.CodeSuccess {
		return nil, e.OpenCode
	}
	return &conn{e: e}, nil
}

type conn struct {
	e *Engine
}

func (c *conn) Close() error                { return nil }
func (c *conn) Providers() fwpm.ProviderOps { return c.e.providerOps }
func (c *conn) Layers() fwpm.LayerOps       { return c.e.layerOps }
func (c *conn) SubLayers() fwpm.SubLayerOps { return c.e.subLayerOps }
func (c *conn) Callouts() fwpm.CalloutOps   { return c.e.calloutOps }
func (c *conn) Filters() fwpm.FilterOps     { return c.e.filterOps }

func (c *conn) SecurityInfo(ctx context.Context, mask fwpm.InfoMask) (*fwpm.Buffer, error) {
	e := c.e
	e.mu.Lock()
	defer e.mu.Unlock()
	e.counters.SecurityCalls++
	e.lastMask = mask
	if e.SecurityCode != fwpm.CodeSuccess {
		return nil, e.SecurityCode
	}
	raw, err := marshalDescriptor(e.engineSecurity, mask)
	if err != nil {
		return nil, fwpm.CodeInvalidParameter
	}
	return fwpm.NewBuffer(raw, e.countBufferFree), nil
}

func (e *Engine) countBufferFree() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.counters.BuffersFreed++
}

func (e *Engine) countPageFree() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.counters.PagesFreed++
}

func (e *Engine) countObjectFree() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.counters.ObjectsFreed++
}

func rawOptional(id *uuid.UUID) *fwpm.RawKey {
	if id == nil {
		return nil
	}
	k := fwpm.KeyFromUUID(*id)
	return &k
}
