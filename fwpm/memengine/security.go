package memengine

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/wfpkit/wfpkit/fwpm"
)

// Security is the descriptor source material for one object: SIDs in their
// string form plus optional access lists. The engine marshals the
// requested parts into the self-relative wire layout on every query.
type Security struct {
	Owner string // e.g. "S-1-5-18"
	Group string
	DACL  []AccessEntry
	SACL  []AccessEntry
}

// AccessEntry is one engine-side access-control entry.
type AccessEntry struct {
	Type    fwpm.ACEType
	Flags   uint8
	Mask    uint32
	Trustee string
}

// marshalDescriptor renders the parts of sec selected by mask in the
// self-relative layout. A nil sec yields a descriptor with no parts. Parts
// outside the mask are omitted entirely, never just zeroed.
func marshalDescriptor(sec *Security, mask fwpm.InfoMask) ([]byte, error) {
	const headerSize = 20
	var control uint16 = 0x8000 // self-relative

	var owner, group, dacl, sacl []byte
	var err error
	if sec != nil {
		if mask&fwpm.SecurityInfoOwner != 0 && sec.Owner != "" {
			if owner, err = sidBytes(sec.Owner); err != nil {
				return nil, fmt.Errorf("owner: %w", err)
			}
		}
		if mask&fwpm.SecurityInfoGroup != 0 && sec.Group != "" {
			if group, err = sidBytes(sec.Group); err != nil {
				return nil, fmt.Errorf("group: %w", err)
			}
		}
		if mask&fwpm.SecurityInfoDACL != 0 && sec.DACL != nil {
			if dacl, err = aclBytes(sec.DACL); err != nil {
				return nil, fmt.Errorf("dacl: %w", err)
			}
			control |= 0x0004 // DACL present
		}
		if mask&fwpm.SecurityInfoSACL != 0 && sec.SACL != nil {
			if sacl, err = aclBytes(sec.SACL); err != nil {
				return nil, fmt.Errorf("sacl: %w", err)
			}
			control |= 0x0010 // SACL present
		}
	}

	out := make([]byte, headerSize, headerSize+len(owner)+len(group)+len(sacl)+len(dacl))
	out[0] = 1 // revision
	binary.LittleEndian.PutUint16(out[2:4], control)

	appendPart := func(off int, part []byte) []byte {
		if part == nil {
			return out
		}
		binary.LittleEndian.PutUint32(out[off:off+4], uint32(len(out)))
		return append(out, part...)
	}
	out = appendPart(4, owner)
	out = appendPart(8, group)
	out = appendPart(12, sacl)
	out = appendPart(16, dacl)
	return out, nil
}

// sidBytes encodes an S-1-... string into the binary SID layout: revision,
// sub-authority count, 6-byte big-endian identifier authority, then
// little-endian sub-authorities.
func sidBytes(s string) ([]byte, error) {
	parts := strings.Split(s, "-")
	if len(parts) < 3 || parts[0] != "S" || parts[1] != "1" {
		return nil, fmt.Errorf("malformed SID %q", s)
	}
	authority, err := strconv.ParseUint(parts[2], 10, 48)
	if err != nil {
		return nil, fmt.Errorf("malformed SID authority in %q", s)
	}
	subs := parts[3:]
	if len(subs) > 15 {
		return nil, fmt.Errorf("SID %q has too many sub-authorities", s)
	}

	out := make([]byte, 8+4*len(subs))
	out[0] = 1
	out[1] = byte(len(subs))
	for i := 0; i < 6; i++ {
		out[7-i] = byte(authority >> (8 * i))
	}
	for i, sub := range subs {
		v, err := strconv.ParseUint(sub, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("malformed SID sub-authority in %q", s)
		}
		binary.LittleEndian.PutUint32(out[8+4*i:], uint32(v))
	}
	return out, nil
}

// aclBytes encodes an access list: 8-byte ACL header followed by one ACE
// per entry, each carrying its access mask and trustee SID.
func aclBytes(entries []AccessEntry) ([]byte, error) {
	body := make([]byte, 0, 64)
	for i, ae := range entries {
		sid, err := sidBytes(ae.Trustee)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		ace := make([]byte, 8+len(sid))
		ace[0] = byte(ae.Type)
		ace[1] = ae.Flags
		binary.LittleEndian.PutUint16(ace[2:4], uint16(len(ace)))
		binary.LittleEndian.PutUint32(ace[4:8], ae.Mask)
		copy(ace[8:], sid)
		body = append(body, ace...)
	}

	out := make([]byte, 8+len(body))
	out[0] = 2 // ACL revision
	binary.LittleEndian.PutUint16(out[2:4], uint16(len(out)))
	binary.LittleEndian.PutUint16(out[4:6], uint16(len(entries)))
	copy(out[8:], body)
	return out, nil
}
