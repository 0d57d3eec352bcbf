package fwpm

import (
	"context"
	"time"
)

// enumerate drives one paged enumeration: create a handle, pull bounded
// batches until the engine returns a short page, map every record in engine
// order, destroy the handle. The handle and each page are released on every
// exit path; a failure mid-enumeration abandons the partial result but
// still releases everything.
func enumerate[R, T any](ctx context.Context, s *Session, op string, ops ObjectOps[R], template []byte, mapFn func(R, *Session) T) ([]T, error) {
	start := time.Now()
	scope := &releaseScope{}
	defer scope.exit()

	h, err := ops.CreateEnumHandle(ctx, template)
	if err != nil {
		return nil, opError(op, err)
	}
	scope.onExit(func() {
		if derr := ops.DestroyEnumHandle(ctx, h); derr != nil {
			s.log.Warn().Str("op", op).Err(derr).Msg("destroy enum handle failed")
		}
	})

	var out []T
	batches := 0
	for {
		page, err := ops.Enum(ctx, h, s.pageSize)
		if err != nil {
			return nil, opError(op, err)
		}
		n := len(page.Records)
		for _, rec := range page.Records {
			out = append(out, mapFn(rec, s))
		}
		page.Free()
		batches++

		// A short page, including an empty one, is the end marker.
		if n < s.pageSize {
			break
		}
	}

	s.log.Debug().
		Str("op", op).
		Int("batches", batches).
		Int("entities", len(out)).
		Dur("duration", time.Since(start)).
		Msg("enumeration complete")

	return out, nil
}
