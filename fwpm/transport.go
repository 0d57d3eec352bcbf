package fwpm

import "context"

// EnumHandle identifies an in-progress paged enumeration on the engine
// side. Handles are created by CreateEnumHandle and must be destroyed
// exactly once with DestroyEnumHandle.
type EnumHandle uint64

// Buffer is a region of engine-allocated memory holding one marshaled
// result. Free must be called exactly once when the caller is done; the
// contents are invalid afterwards.
type Buffer struct {
	data []byte
	free func()
}

// NewBuffer wraps engine-owned bytes with their release action. Transports
// backed by ordinary Go memory may pass a nil release.
func NewBuffer(data []byte, free func()) *Buffer {
	return &Buffer{data: data, free: free}
}

// Bytes returns the buffer contents. Invalid after Free.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Free releases the buffer back to the engine.
func (b *Buffer) Free() {
	if b.free != nil {
		b.free()
		b.free = nil
	}
	b.data = nil
}

// Page is one enumeration batch: raw records backed by a single
// engine-allocated region released as a unit.
type Page[R any] struct {
	Records []R
	free    func()
}

// NewPage wraps one batch of raw records with its release action.
func NewPage[R any](records []R, free func()) *Page[R] {
	return &Page[R]{Records: records, free: free}
}

// Free releases the batch. Records are invalid afterwards.
func (p *Page[R]) Free() {
	if p.free != nil {
		p.free()
		p.free = nil
	}
	p.Records = nil
}

// Object is a single raw record backed by an engine-allocated region.
type Object[R any] struct {
	Record R
	free   func()
}

// NewObject wraps one raw record with its release action.
func NewObject[R any](record R, free func()) *Object[R] {
	return &Object[R]{Record: record, free: free}
}

// Free releases the record's backing region.
func (o *Object[R]) Free() {
	if o.free != nil {
		o.free()
		o.free = nil
	}
}

// ObjectOps is the call family the engine exposes for one object kind:
// paged enumeration plus by-key retrieval and per-object security queries.
// Failures carry a NativeCode, either directly or wrapped.
type ObjectOps[R any] interface {
	// CreateEnumHandle opens an enumeration, optionally narrowed by a
	// marshaled template. A nil template enumerates everything.
	CreateEnumHandle(ctx context.Context, template []byte) (EnumHandle, error)

	// Enum returns up to count records for the handle. A short (possibly
	// empty) page signals the end of the enumeration.
	Enum(ctx context.Context, h EnumHandle, count int) (*Page[R], error)

	// DestroyEnumHandle closes the enumeration.
	DestroyEnumHandle(ctx context.Context, h EnumHandle) error

	// GetByKey retrieves one record by its GUID key.
	GetByKey(ctx context.Context, key RawKey) (*Object[R], error)

	// SecurityInfoByKey retrieves the marshaled security descriptor of one
	// object, restricted to the parts selected by mask.
	SecurityInfoByKey(ctx context.Context, key RawKey, mask InfoMask) (*Buffer, error)
}

// ProviderOps is the engine call family for providers.
type ProviderOps interface {
	ObjectOps[RawProvider]
}

// SubLayerOps is the engine call family for sub-layers.
type SubLayerOps interface {
	ObjectOps[RawSubLayer]
}

// LayerOps adds retrieval by the engine's runtime layer identifier.
type LayerOps interface {
	ObjectOps[RawLayer]
	GetByID(ctx context.Context, id uint16) (*Object[RawLayer], error)
}

// CalloutOps adds retrieval by the engine's runtime callout identifier.
type CalloutOps interface {
	ObjectOps[RawCallout]
	GetByID(ctx context.Context, id uint32) (*Object[RawCallout], error)
}

// FilterOps adds retrieval by the engine's runtime filter identifier.
type FilterOps interface {
	ObjectOps[RawFilter]
	GetByID(ctx context.Context, id uint64) (*Object[RawFilter], error)
}

// Conn is one open connection to the engine.
type Conn interface {
	// Close releases the connection. Further calls through the connection
	// fail with a native code of the transport's choosing.
	Close() error

	Providers() ProviderOps
	Layers() LayerOps
	SubLayers() SubLayerOps
	Callouts() CalloutOps
	Filters() FilterOps

	// SecurityInfo retrieves the engine's own security descriptor,
	// restricted to the parts selected by mask.
	SecurityInfo(ctx context.Context, mask InfoMask) (*Buffer, error)
}

// Transport establishes connections to a policy engine.
type Transport interface {
	Open(ctx context.Context, server string, auth AuthKind, creds *Credentials) (Conn, error)
}

// Raw records are object state in the engine's wire representation: GUID
// fields in engine byte order, strings already decoded by the transport.

// RawProvider is the wire form of a provider record.
type RawProvider struct {
	Key         RawKey
	Flags       uint32
	Name        string
	Description string
	ServiceName string
}

// RawLayer is the wire form of a layer record.
type RawLayer struct {
	Key             RawKey
	ID              uint16
	Flags           uint32
	Name            string
	Description     string
	DefaultSubLayer RawKey
}

// RawSubLayer is the wire form of a sub-layer record.
type RawSubLayer struct {
	Key         RawKey
	Flags       uint32
	Weight      uint16
	Name        string
	Description string
	Provider    *RawKey
}

// RawCallout is the wire form of a callout record.
type RawCallout struct {
	Key             RawKey
	ID              uint32
	Flags           uint32
	Name            string
	Description     string
	Provider        *RawKey
	ApplicableLayer RawKey
}

// RawFilter is the wire form of a filter record.
type RawFilter struct {
	Key         RawKey
	ID          uint64
	Flags       uint32
	Name        string
	Description string
	Layer       RawKey
	SubLayer    RawKey
	Provider    *RawKey
	Weight      uint64
	Action      uint32
	Callout     RawKey
}
