package fwpm

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AuthKind selects the authentication service used when opening a session.
// The core treats it as opaque; the Transport interprets it.
type AuthKind int

const (
	AuthDefault  AuthKind = iota // transport picks its preferred service
	AuthWinNT                    // NTLM-style authentication
	AuthKerberos                 // Kerberos authentication
)

func (a AuthKind) String() string {
	switch a {
	case AuthDefault:
		return "default"
	case AuthWinNT:
		return "winnt"
	case AuthKerberos:
		return "kerberos"
	default:
		return "unknown"
	}
}

// Credentials are explicit credentials for session authentication.
// Nil credentials mean the transport authenticates as the current identity.
type Credentials struct {
	Domain   string
	Username string
	Password string
}

// SessionOptions configures Open. Zero fields take the documented defaults.
type SessionOptions struct {
	// Server is the engine host to connect to. Empty means local.
	Server string

	// Auth selects the authentication service.
	Auth AuthKind

	// Credentials for the chosen authentication service, or nil for the
	// caller's own identity.
	Credentials *Credentials

	// Transport reaches the engine's native interface. Required.
	Transport Transport

	// PageSize bounds each enumeration batch request.
	PageSize int `default:"1000"`

	// Parser decodes security-descriptor buffers returned by the engine.
	// Defaults to the built-in self-relative parser.
	Parser DescriptorParser

	// Logger receives structured operation logs. Defaults to a no-op logger.
	Logger *zerolog.Logger
}

// ActionType is the action a filter prescribes when its conditions match.
type ActionType uint32

// Action flag bits and the well-known action values built from them.
const (
	ActionFlagTerminating ActionType = 0x00001000
	ActionFlagCallout     ActionType = 0x00004000

	ActionBlock              ActionType = 0x00000001 | ActionFlagTerminating
	ActionPermit             ActionType = 0x00000002 | ActionFlagTerminating
	ActionCalloutTerminating ActionType = 0x00000003 | ActionFlagTerminating | ActionFlagCallout
	ActionCalloutInspection  ActionType = 0x00000004 | ActionFlagCallout
	ActionCalloutUnknown     ActionType = 0x00000005 | ActionFlagCallout
)

func (a ActionType) String() string {
	switch a {
	case ActionBlock:
		return "block"
	case ActionPermit:
		return "permit"
	case ActionCalloutTerminating:
		return "callout_terminating"
	case ActionCalloutInspection:
		return "callout_inspection"
	case ActionCalloutUnknown:
		return "callout_unknown"
	default:
		return "unknown"
	}
}

// Provider identifies the component that installed a set of policy objects.
type Provider struct {
	Key         uuid.UUID
	Name        string
	Description string
	Flags       uint32
	ServiceName string

	session *Session
}

// Layer is one classification point in the engine's processing pipeline.
type Layer struct {
	Key                uuid.UUID
	ID                 uint16 // engine-assigned runtime identifier
	Name               string
	Description        string
	Flags              uint32
	DefaultSubLayerKey uuid.UUID

	session *Session
}

// SubLayer groups filters within a layer for weighted arbitration.
type SubLayer struct {
	Key         uuid.UUID
	Name        string
	Description string
	Flags       uint32
	Weight      uint16
	ProviderKey *uuid.UUID // nil when not provider-associated

	session *Session
}

// Callout is a registered extension point filters can delegate to.
type Callout struct {
	Key             uuid.UUID
	ID              uint32 // engine-assigned runtime identifier
	Name            string
	Description     string
	Flags           uint32
	ProviderKey     *uuid.UUID
	ApplicableLayer uuid.UUID

	session *Session
}

// Filter is one classification rule: where it applies, how heavily it
// weighs, and what action it prescribes.
type Filter struct {
	Key         uuid.UUID
	ID          uint64 // engine-assigned runtime identifier
	Name        string
	Description string
	Flags       uint32
	LayerKey    uuid.UUID
	SubLayerKey uuid.UUID
	ProviderKey *uuid.UUID
	Weight      uint64
	Action      ActionType
	CalloutKey  uuid.UUID // meaningful only for callout actions

	session *Session
}
