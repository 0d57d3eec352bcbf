package fwpm

import "context"

// fetchObject is the single-object path shared by every by-key and
// by-numeric-id getter: one native call, one buffer, mapped and released
// before return.
func fetchObject[R, T any](ctx context.Context, s *Session, op string, get func(context.Context) (*Object[R], error), mapFn func(R, *Session) T) (T, error) {
	obj, err := get(ctx)
	if err != nil {
		var zero T
		return zero, opError(op, err)
	}
	entity := mapFn(obj.Record, s)
	obj.Free()
	return entity, nil
}
