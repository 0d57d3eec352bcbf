/*
Package fwpm is a session-oriented client for the management plane of a
filtering-platform policy engine.

The engine stores a fixed taxonomy of objects — providers, layers,
sub-layers, callouts and filters — that describe how network traffic would
be classified. This package never touches traffic; it opens a management
session against an already-running engine and queries, enumerates and
inspects the access-control metadata of those objects.

# Architecture Overview

The package is organized into a few core components:

  - Session: owns the engine connection and exposes the public query surface
  - Enumeration engine: generic paged cursor driver shared by every kind
  - Object fetch: by-key (GUID) and by-numeric-id single-object retrieval
  - Security path: masked retrieval of owner/group/DACL/SACL descriptors
  - Transport: narrow interface to the engine's native call families

# Sessions

A Session is opened against a Transport implementation:

	sess, err := fwpm.Open(ctx, &fwpm.SessionOptions{Transport: tr})
	if err != nil { ... }
	defer sess.Close()

	filters, err := sess.EnumerateFilters(ctx, nil)

Close is idempotent. Operations on a closed session fail deterministically
with ErrSessionClosed. A Session serializes its operations internally, so a
single Session may be shared across goroutines, though calls block each
other.

# Error Model

Native engine codes are carried end to end: every failure is an
*EngineError holding the operation, the raw NativeCode and its ErrKind
category, and matches the package sentinels via errors.Is. Each operation
has exactly one error-returning form; Must is the panicking adapter for
callers that prefer it.

# Ownership

Buffers, pages and enumeration handles obtained from the engine are
released exactly once on every exit path. Entities returned to the caller
are plain values holding no engine resources; they keep a non-owning
reference to their Session only to serve later security-descriptor queries.
*/
package fwpm
