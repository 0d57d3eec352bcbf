package memengine

import (
	"context"

	"github.com/wfpkit/wfpkit/fwpm"
)

// store holds one object kind's records in insertion order with a key
// index, mirroring how the engine enumerates: stable order, GUID lookup.
type store[R any] struct {
	notFound fwpm.NativeCode
	keyOf    func(R) fwpm.RawKey
	recs     []R
	index    map[fwpm.RawKey]int
}

func newStore[R any](notFound fwpm.NativeCode, keyOf func(R) fwpm.RawKey) *store[R] {
	return &store[R]{
		notFound: notFound,
		keyOf:    keyOf,
		index:    make(map[fwpm.RawKey]int),
	}
}

// put inserts a record, replacing any record with the same key in place.
func (st *store[R]) put(r R) {
	key := st.keyOf(r)
	if i, ok := st.index[key]; ok {
		st.recs[i] = r
		return
	}
	st.index[key] = len(st.recs)
	st.recs = append(st.recs, r)
}

func (st *store[R]) get(key fwpm.RawKey) (R, bool) {
	if i, ok := st.index[key]; ok {
		return st.recs[i], true
	}
	var zero R
	return zero, false
}

// cursor is one open enumeration: a snapshot of the matching records taken
// at create time, consumed batch by batch.
type cursor[R any] struct {
	recs    []R
	pos     int
	batches int
}

// ops implements fwpm.ObjectOps[R] against one store. match is set only
// for kinds that accept an enumeration template.
type ops[R any] struct {
	e          *Engine
	st         *store[R]
	match      func(*fwpm.FilterEnumTemplate, R) bool
	cursors    map[fwpm.EnumHandle]*cursor[R]
	nextHandle fwpm.EnumHandle
}

func (o *ops[R]) CreateEnumHandle(ctx context.Context, template []byte) (fwpm.EnumHandle, error) {
	o.e.mu.Lock()
	defer o.e.mu.Unlock()
	if o.e.CreateEnumCode != fwpm.CodeSuccess {
		return 0, o.e.CreateEnumCode
	}

	var tmpl *fwpm.FilterEnumTemplate
	if len(template) > 0 {
		if o.match == nil {
			return 0, fwpm.CodeInvalidParameter
		}
		t, err := fwpm.ParseFilterEnumTemplate(template)
		if err != nil {
			return 0, fwpm.CodeInvalidParameter
		}
		tmpl = t
	}

	snapshot := make([]R, 0, len(o.st.recs))
	for _, r := range o.st.recs {
		if tmpl == nil || o.match == nil || o.match(tmpl, r) {
			snapshot = append(snapshot, r)
		}
	}

	o.nextHandle++
	h := o.nextHandle
	o.cursors[h] = &cursor[R]{recs: snapshot}
	o.e.counters.EnumHandlesCreated++
	return h, nil
}

func (o *ops[R]) Enum(ctx context.Context, h fwpm.EnumHandle, count int) (*fwpm.Page[R], error) {
	o.e.mu.Lock()
	defer o.e.mu.Unlock()
	cur, ok := o.cursors[h]
	if !ok {
		return nil, fwpm.CodeInvalidParameter
	}
	cur.batches++
	o.e.counters.EnumBatches++

	if o.e.EnumFailBatch > 0 && cur.batches == o.e.EnumFailBatch {
		code := o.e.EnumFailCode
		if code == fwpm.CodeSuccess {
			code = fwpm.CodeSessionAborted
		}
		return nil, code
	}

	n := min(count, len(cur.recs)-cur.pos)
	batch := make([]R, n)
	copy(batch, cur.recs[cur.pos:cur.pos+n])
	cur.pos += n
	return fwpm.NewPage(batch, o.e.countPageFree), nil
}

func (o *ops[R]) DestroyEnumHandle(ctx context.Context, h fwpm.EnumHandle) error {
	o.e.mu.Lock()
	defer o.e.mu.Unlock()
	if _, ok := o.cursors[h]; !ok {
		return fwpm.CodeInvalidParameter
	}
	delete(o.cursors, h)
	o.e.counters.EnumHandlesDestroyed++
	return nil
}

func (o *ops[R]) GetByKey(ctx context.Context, key fwpm.RawKey) (*fwpm.Object[R], error) {
	o.e.mu.Lock()
	defer o.e.mu.Unlock()
	return o.getLocked(key)
}

// getLocked serves by-key and by-id retrieval; the engine lock is held.
func (o *ops[R]) getLocked(key fwpm.RawKey) (*fwpm.Object[R], error) {
	if o.e.GetCode != fwpm.CodeSuccess {
		return nil, o.e.GetCode
	}
	r, ok := o.st.get(key)
	if !ok {
		return nil, o.st.notFound
	}
	return fwpm.NewObject(r, o.e.countObjectFree), nil
}

func (o *ops[R]) SecurityInfoByKey(ctx context.Context, key fwpm.RawKey, mask fwpm.InfoMask) (*fwpm.Buffer, error) {
	o.e.mu.Lock()
	defer o.e.mu.Unlock()
	o.e.counters.SecurityCalls++
	o.e.lastMask = mask
	if o.e.SecurityCode != fwpm.CodeSuccess {
		return nil, o.e.SecurityCode
	}
	if _, ok := o.st.get(key); !ok {
		return nil, o.st.notFound
	}
	raw, err := marshalDescriptor(o.e.objectSecurity[key], mask)
	if err != nil {
		return nil, fwpm.CodeInvalidParameter
	}
	return fwpm.NewBuffer(raw, o.e.countBufferFree), nil
}

// layerOps, calloutOps and filterOps add numeric-ID retrieval on top of
// the shared generic ops.

type layerOps struct {
	*ops[fwpm.RawLayer]
}

func (l layerOps) GetByID(ctx context.Context, id uint16) (*fwpm.Object[fwpm.RawLayer], error) {
	l.e.mu.Lock()
	defer l.e.mu.Unlock()
	key, ok := l.e.layerIDs[id]
	if !ok {
		return nil, fwpm.CodeLayerNotFound
	}
	return l.getLocked(key)
}

type calloutOps struct {
	*ops[fwpm.RawCallout]
}

func (c calloutOps) GetByID(ctx context.Context, id uint32) (*fwpm.Object[fwpm.RawCallout], error) {
	c.e.mu.Lock()
	defer c.e.mu.Unlock()
	key, ok := c.e.calloutIDs[id]
	if !ok {
		return nil, fwpm.CodeCalloutNotFound
	}
	return c.getLocked(key)
}

type filterOps struct {
	*ops[fwpm.RawFilter]
}

func (f filterOps) GetByID(ctx context.Context, id uint64) (*fwpm.Object[fwpm.RawFilter], error) {
	f.e.mu.Lock()
	defer f.e.mu.Unlock()
	key, ok := f.e.filterIDs[id]
	if !ok {
		return nil, fwpm.CodeFilterNotFound
	}
	return f.getLocked(key)
}
