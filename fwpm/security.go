package fwpm

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/bwmarrin/go-objectsid"
)

// InfoMask selects which parts of a security descriptor to retrieve.
type InfoMask uint32

const (
	SecurityInfoOwner InfoMask = 0x00000001
	SecurityInfoGroup InfoMask = 0x00000002
	SecurityInfoDACL  InfoMask = 0x00000004
	SecurityInfoSACL  InfoMask = 0x00000008

	// SupportedSecurityInfo is the set of parts the engine supports.
	// Bits outside it are dropped before the native call, never an error.
	SupportedSecurityInfo = SecurityInfoOwner | SecurityInfoGroup | SecurityInfoDACL | SecurityInfoSACL
)

// ObjectKind names the object class a security descriptor belongs to.
type ObjectKind int

const (
	ObjectEngine ObjectKind = iota
	ObjectProvider
	ObjectLayer
	ObjectSubLayer
	ObjectCallout
	ObjectFilter
)

func (k ObjectKind) String() string {
	switch k {
	case ObjectEngine:
		return "engine"
	case ObjectProvider:
		return "provider"
	case ObjectLayer:
		return "layer"
	case ObjectSubLayer:
		return "sublayer"
	case ObjectCallout:
		return "callout"
	case ObjectFilter:
		return "filter"
	default:
		return "unknown"
	}
}

// SID is a security identifier in both its binary and S-1-... forms.
type SID struct {
	Raw   []byte // binary form as stored by the engine
	Value string // string form, e.g. S-1-5-21-...-500
}

func (s SID) String() string {
	return s.Value
}

// ACEType distinguishes access-control entry semantics.
type ACEType uint8

const (
	ACEAccessAllowed ACEType = 0x00
	ACEAccessDenied  ACEType = 0x01
	ACESystemAudit   ACEType = 0x02
)

// ACE is one access-control entry.
type ACE struct {
	Type       ACEType
	Flags      uint8
	AccessMask uint32
	Trustee    SID
}

// ACL is an ordered access-control list.
type ACL struct {
	Revision uint8
	ACEs     []ACE
}

// SecurityDescriptor is the parsed access-control metadata of a session or
// object. Parts not requested by the retrieval mask are nil.
type SecurityDescriptor struct {
	Owner *SID
	Group *SID
	DACL  *ACL
	SACL  *ACL
}

// DescriptorParser decodes the marshaled security descriptor the engine
// returns. mask is the already-clamped retrieval mask; parts outside it
// must be left nil even if present in the buffer.
type DescriptorParser interface {
	Parse(kind ObjectKind, raw []byte, mask InfoMask) (*SecurityDescriptor, error)
}

// selfRelativeParser is the default DescriptorParser. It decodes the
// standard self-relative binary layout: a fixed 20-byte header with
// offsets to the owner SID, group SID, SACL and DACL.
type selfRelativeParser struct{}

// NewDescriptorParser returns the built-in self-relative descriptor parser.
func NewDescriptorParser() DescriptorParser {
	return selfRelativeParser{}
}

// Self-relative descriptor header fields.
const (
	sdHeaderSize  = 20
	sdControlMask = 0x8000 // self-relative flag
	sdDACLPresent = 0x0004
	sdSACLPresent = 0x0010
	aclHeaderSize = 8
	aceHeaderSize = 4
	sidHeaderSize = 8
	maxSubAuthLen = 15
)

func (selfRelativeParser) Parse(kind ObjectKind, raw []byte, mask InfoMask) (*SecurityDescriptor, error) {
	if len(raw) < sdHeaderSize {
		return nil, fmt.Errorf("%s security descriptor: truncated header (%d bytes)", kind, len(raw))
	}
	control := binary.LittleEndian.Uint16(raw[2:4])
	if control&sdControlMask == 0 {
		return nil, fmt.Errorf("%s security descriptor: not self-relative", kind)
	}
	ownerOff := binary.LittleEndian.Uint32(raw[4:8])
	groupOff := binary.LittleEndian.Uint32(raw[8:12])
	saclOff := binary.LittleEndian.Uint32(raw[12:16])
	daclOff := binary.LittleEndian.Uint32(raw[16:20])

	sd := &SecurityDescriptor{}

	if mask&SecurityInfoOwner != 0 && ownerOff != 0 {
		sid, err := parseSID(raw, ownerOff)
		if err != nil {
			return nil, fmt.Errorf("%s security descriptor: owner: %w", kind, err)
		}
		sd.Owner = sid
	}
	if mask&SecurityInfoGroup != 0 && groupOff != 0 {
		sid, err := parseSID(raw, groupOff)
		if err != nil {
			return nil, fmt.Errorf("%s security descriptor: group: %w", kind, err)
		}
		sd.Group = sid
	}
	if mask&SecurityInfoDACL != 0 && control&sdDACLPresent != 0 && daclOff != 0 {
		acl, err := parseACL(raw, daclOff)
		if err != nil {
			return nil, fmt.Errorf("%s security descriptor: dacl: %w", kind, err)
		}
		sd.DACL = acl
	}
	if mask&SecurityInfoSACL != 0 && control&sdSACLPresent != 0 && saclOff != 0 {
		acl, err := parseACL(raw, saclOff)
		if err != nil {
			return nil, fmt.Errorf("%s security descriptor: sacl: %w", kind, err)
		}
		sd.SACL = acl
	}

	return sd, nil
}

// parseSID decodes a binary SID at the given offset. The length is derived
// from the sub-authority count; the string form comes from go-objectsid.
func parseSID(raw []byte, off uint32) (*SID, error) {
	if int(off)+sidHeaderSize > len(raw) {
		return nil, fmt.Errorf("sid offset %d out of range", off)
	}
	count := int(raw[off+1])
	if count > maxSubAuthLen {
		return nil, fmt.Errorf("sid sub-authority count %d too large", count)
	}
	size := sidHeaderSize + 4*count
	if int(off)+size > len(raw) {
		return nil, fmt.Errorf("sid truncated at offset %d", off)
	}
	bin := make([]byte, size)
	copy(bin, raw[off:int(off)+size])
	return &SID{Raw: bin, Value: objectsid.Decode(bin).String()}, nil
}

// parseACL decodes an ACL at the given offset, including the trustee SID
// of each access-allowed, access-denied or audit entry.
func parseACL(raw []byte, off uint32) (*ACL, error) {
	if int(off)+aclHeaderSize > len(raw) {
		return nil, fmt.Errorf("acl offset %d out of range", off)
	}
	hdr := raw[off:]
	aclSize := int(binary.LittleEndian.Uint16(hdr[2:4]))
	aceCount := int(binary.LittleEndian.Uint16(hdr[4:6]))
	if int(off)+aclSize > len(raw) {
		return nil, fmt.Errorf("acl truncated at offset %d", off)
	}

	acl := &ACL{Revision: hdr[0]}
	pos := int(off) + aclHeaderSize
	for i := 0; i < aceCount; i++ {
		if pos+aceHeaderSize > len(raw) {
			return nil, fmt.Errorf("ace %d: truncated header", i)
		}
		aceSize := int(binary.LittleEndian.Uint16(raw[pos+2 : pos+4]))
		if aceSize < aceHeaderSize+4 || pos+aceSize > len(raw) {
			return nil, fmt.Errorf("ace %d: bad size %d", i, aceSize)
		}
		sid, err := parseSID(raw, uint32(pos+aceHeaderSize+4))
		if err != nil {
			return nil, fmt.Errorf("ace %d: %w", i, err)
		}
		acl.ACEs = append(acl.ACEs, ACE{
			Type:       ACEType(raw[pos]),
			Flags:      raw[pos+1],
			AccessMask: binary.LittleEndian.Uint32(raw[pos+aceHeaderSize : pos+aceHeaderSize+4]),
			Trustee:    *sid,
		})
		pos += aceSize
	}
	return acl, nil
}

// securityQuery is the retrieval core shared by the session-level and
// by-key paths: clamp the mask, fetch the marshaled descriptor, parse the
// requested parts, release the buffer before returning.
func securityQuery(ctx context.Context, s *Session, op string, kind ObjectKind, mask InfoMask, fetch func(context.Context, InfoMask) (*Buffer, error)) (*SecurityDescriptor, error) {
	mask &= SupportedSecurityInfo
	buf, err := fetch(ctx, mask)
	if err != nil {
		return nil, opError(op, err)
	}
	defer buf.Free()

	sd, err := s.parser.Parse(kind, buf.Bytes(), mask)
	if err != nil {
		return nil, &EngineError{Op: op, Kind: KindUnknown, Err: err}
	}
	return sd, nil
}

// securityInfoByKey is the subset of every ObjectOps used by the per-entity
// security path.
type securityInfoByKey interface {
	SecurityInfoByKey(ctx context.Context, key RawKey, mask InfoMask) (*Buffer, error)
}

// SecurityDescriptor retrieves the provider's access-control descriptor,
// restricted to the parts selected by mask.
func (p Provider) SecurityDescriptor(ctx context.Context, mask InfoMask) (*SecurityDescriptor, error) {
	return p.session.objectSecurity(ctx, "get provider security", ObjectProvider, p.Key, mask,
		func(c Conn) securityInfoByKey { return c.Providers() })
}

// SecurityDescriptor retrieves the layer's access-control descriptor,
// restricted to the parts selected by mask.
func (l Layer) SecurityDescriptor(ctx context.Context, mask InfoMask) (*SecurityDescriptor, error) {
	return l.session.objectSecurity(ctx, "get layer security", ObjectLayer, l.Key, mask,
		func(c Conn) securityInfoByKey { return c.Layers() })
}

// SecurityDescriptor retrieves the sub-layer's access-control descriptor,
// restricted to the parts selected by mask.
func (sl SubLayer) SecurityDescriptor(ctx context.Context, mask InfoMask) (*SecurityDescriptor, error) {
	return sl.session.objectSecurity(ctx, "get sublayer security", ObjectSubLayer, sl.Key, mask,
		func(c Conn) securityInfoByKey { return c.SubLayers() })
}

// SecurityDescriptor retrieves the callout's access-control descriptor,
// restricted to the parts selected by mask.
func (co Callout) SecurityDescriptor(ctx context.Context, mask InfoMask) (*SecurityDescriptor, error) {
	return co.session.objectSecurity(ctx, "get callout security", ObjectCallout, co.Key, mask,
		func(c Conn) securityInfoByKey { return c.Callouts() })
}

// SecurityDescriptor retrieves the filter's access-control descriptor,
// restricted to the parts selected by mask.
func (f Filter) SecurityDescriptor(ctx context.Context, mask InfoMask) (*SecurityDescriptor, error) {
	return f.session.objectSecurity(ctx, "get filter security", ObjectFilter, f.Key, mask,
		func(c Conn) securityInfoByKey { return c.Filters() })
}
