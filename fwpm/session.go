package fwpm

import (
	"context"
	"sync"

	"github.com/creasty/defaults"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Session is one live management session against a policy engine. It owns
// the underlying connection exclusively; entities returned by its queries
// borrow the session for later security queries but never own it.
//
// A Session serializes its operations with an internal mutex, so it may be
// shared across goroutines; concurrent calls simply block each other.
type Session struct {
	mu     sync.Mutex
	conn   Conn
	closed bool

	pageSize int
	parser   DescriptorParser
	log      zerolog.Logger
}

// Open establishes a session against the engine reached by
// opts.Transport. The returned session must be closed by the caller.
func Open(ctx context.Context, opts *SessionOptions) (*Session, error) {
	const op = "open session"
	if opts == nil || opts.Transport == nil {
		return nil, statusError(op, KindInvalidParameter)
	}
	if err := defaults.Set(opts); err != nil {
		return nil, &EngineError{Op: op, Kind: KindInvalidParameter, Err: err}
	}

	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	parser := opts.Parser
	if parser == nil {
		parser = NewDescriptorParser()
	}

	conn, err := opts.Transport.Open(ctx, opts.Server, opts.Auth, opts.Credentials)
	if err != nil {
		log.Error().Str("server", opts.Server).Str("auth", opts.Auth.String()).Err(err).Msg("session open failed")
		return nil, opError(op, err)
	}

	log.Info().
		Str("server", opts.Server).
		Str("auth", opts.Auth.String()).
		Int("page_size", opts.PageSize).
		Msg("session opened")

	return &Session{
		conn:     conn,
		pageSize: opts.PageSize,
		parser:   parser,
		log:      log,
	}, nil
}

// Close releases the engine connection. It is idempotent: the first call
// closes the connection, later calls return nil.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.conn.Close()
	s.log.Info().Msg("session closed")
	if err != nil {
		return opError("close session", err)
	}
	return nil
}

// acquire takes the session lock and rejects operations on a closed
// session. The returned release func must be deferred by the caller.
func (s *Session) acquire(op string) (Conn, func(), error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, nil, statusError(op, KindSessionClosed)
	}
	return s.conn, s.mu.Unlock, nil
}

// GetProvider retrieves one provider by key.
func (s *Session) GetProvider(ctx context.Context, key uuid.UUID) (Provider, error) {
	const op = "get provider"
	conn, release, err := s.acquire(op)
	if err != nil {
		return Provider{}, err
	}
	defer release()
	return fetchObject(ctx, s, op, func(ctx context.Context) (*Object[RawProvider], error) {
		return conn.Providers().GetByKey(ctx, KeyFromUUID(key))
	}, mapProvider)
}

// GetLayer retrieves one layer by key.
func (s *Session) GetLayer(ctx context.Context, key uuid.UUID) (Layer, error) {
	const op = "get layer"
	conn, release, err := s.acquire(op)
	if err != nil {
		return Layer{}, err
	}
	defer release()
	return fetchObject(ctx, s, op, func(ctx context.Context) (*Object[RawLayer], error) {
		return conn.Layers().GetByKey(ctx, KeyFromUUID(key))
	}, mapLayer)
}

// GetLayerByID retrieves one layer by its engine runtime identifier.
func (s *Session) GetLayerByID(ctx context.Context, id uint16) (Layer, error) {
	const op = "get layer by id"
	conn, release, err := s.acquire(op)
	if err != nil {
		return Layer{}, err
	}
	defer release()
	return fetchObject(ctx, s, op, func(ctx context.Context) (*Object[RawLayer], error) {
		return conn.Layers().GetByID(ctx, id)
	}, mapLayer)
}

// GetSubLayer retrieves one sub-layer by key.
func (s *Session) GetSubLayer(ctx context.Context, key uuid.UUID) (SubLayer, error) {
	const op = "get sublayer"
	conn, release, err := s.acquire(op)
	if err != nil {
		return SubLayer{}, err
	}
	defer release()
	return fetchObject(ctx, s, op, func(ctx context.Context) (*Object[RawSubLayer], error) {
		return conn.SubLayers().GetByKey(ctx, KeyFromUUID(key))
	}, mapSubLayer)
}

// GetCallout retrieves one callout by key.
func (s *Session) GetCallout(ctx context.Context, key uuid.UUID) (Callout, error) {
	const op = "get callout"
	conn, release, err := s.acquire(op)
	if err != nil {
		return Callout{}, err
	}
	defer release()
	return fetchObject(ctx, s, op, func(ctx context.Context) (*Object[RawCallout], error) {
		return conn.Callouts().GetByKey(ctx, KeyFromUUID(key))
	}, mapCallout)
}

// GetCalloutByID retrieves one callout by its engine runtime identifier.
func (s *Session) GetCalloutByID(ctx context.Context, id uint32) (Callout, error) {
	const op = "get callout by id"
	conn, release, err := s.acquire(op)
	if err != nil {
		return Callout{}, err
	}
	defer release()
	return fetchObject(ctx, s, op, func(ctx context.Context) (*Object[RawCallout], error) {
		return conn.Callouts().GetByID(ctx, id)
	}, mapCallout)
}

// GetFilter retrieves one filter by key.
func (s *Session) GetFilter(ctx context.Context, key uuid.UUID) (Filter, error) {
	const op = "get filter"
	conn, release, err := s.acquire(op)
	if err != nil {
		return Filter{}, err
	}
	defer release()
	return fetchObject(ctx, s, op, func(ctx context.Context) (*Object[RawFilter], error) {
		return conn.Filters().GetByKey(ctx, KeyFromUUID(key))
	}, mapFilter)
}

// GetFilterByID retrieves one filter by its engine runtime identifier.
func (s *Session) GetFilterByID(ctx context.Context, id uint64) (Filter, error) {
	const op = "get filter by id"
	conn, release, err := s.acquire(op)
	if err != nil {
		return Filter{}, err
	}
	defer release()
	return fetchObject(ctx, s, op, func(ctx context.Context) (*Object[RawFilter], error) {
		return conn.Filters().GetByID(ctx, id)
	}, mapFilter)
}

// EnumerateProviders lists every provider, in engine order.
func (s *Session) EnumerateProviders(ctx context.Context) ([]Provider, error) {
	const op = "enumerate providers"
	conn, release, err := s.acquire(op)
	if err != nil {
		return nil, err
	}
	defer release()
	return enumerate(ctx, s, op, conn.Providers(), nil, mapProvider)
}

// EnumerateLayers lists every layer, in engine order.
func (s *Session) EnumerateLayers(ctx context.Context) ([]Layer, error) {
	const op = "enumerate layers"
	conn, release, err := s.acquire(op)
	if err != nil {
		return nil, err
	}
	defer release()
	return enumerate(ctx, s, op, conn.Layers(), nil, mapLayer)
}

// EnumerateSubLayers lists every sub-layer, in engine order.
func (s *Session) EnumerateSubLayers(ctx context.Context) ([]SubLayer, error) {
	const op = "enumerate sublayers"
	conn, release, err := s.acquire(op)
	if err != nil {
		return nil, err
	}
	defer release()
	return enumerate(ctx, s, op, conn.SubLayers(), nil, mapSubLayer)
}

// EnumerateCallouts lists every callout, in engine order.
func (s *Session) EnumerateCallouts(ctx context.Context) ([]Callout, error) {
	const op = "enumerate callouts"
	conn, release, err := s.acquire(op)
	if err != nil {
		return nil, err
	}
	defer release()
	return enumerate(ctx, s, op, conn.Callouts(), nil, mapCallout)
}

// EnumerateFilters lists the filters matching the template, in engine
// order. A nil template lists every filter.
func (s *Session) EnumerateFilters(ctx context.Context, template *FilterEnumTemplate) ([]Filter, error) {
	const op = "enumerate filters"
	conn, release, err := s.acquire(op)
	if err != nil {
		return nil, err
	}
	defer release()
	return enumerate(ctx, s, op, conn.Filters(), template.marshal(), mapFilter)
}

// SecurityDescriptor retrieves the engine's own access-control descriptor,
// restricted to the parts selected by mask.
func (s *Session) SecurityDescriptor(ctx context.Context, mask InfoMask) (*SecurityDescriptor, error) {
	const op = "get session security"
	conn, release, err := s.acquire(op)
	if err != nil {
		return nil, err
	}
	defer release()
	return securityQuery(ctx, s, op, ObjectEngine, mask, conn.SecurityInfo)
}

// SetSecurityDescriptor is not supported by this client; the engine's
// set path is not exposed here. It always reports ErrNotImplemented.
func (s *Session) SetSecurityDescriptor(ctx context.Context, sd *SecurityDescriptor, mask InfoMask) error {
	return statusError("set session security", KindNotImplemented)
}

// objectSecurity is the by-key security path used by entity methods.
func (s *Session) objectSecurity(ctx context.Context, op string, kind ObjectKind, key uuid.UUID, mask InfoMask, pick func(Conn) securityInfoByKey) (*SecurityDescriptor, error) {
	conn, release, err := s.acquire(op)
	if err != nil {
		return nil, err
	}
	defer release()
	raw := KeyFromUUID(key)
	return securityQuery(ctx, s, op, kind, mask, func(ctx context.Context, m InfoMask) (*Buffer, error) {
		return pick(conn).SecurityInfoByKey(ctx, raw, m)
	})
}
