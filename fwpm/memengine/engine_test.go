package memengine

import (
	"context"
	"testing"

	"github.com/bwmarrin/go-objectsid"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfpkit/wfpkit/fwpm"
)

func TestSIDBytesRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		sid  string
	}{
		{name: "local system", sid: "S-1-5-18"},
		{name: "builtin administrators", sid: "S-1-5-32-544"},
		{name: "world", sid: "S-1-1-0"},
		{name: "domain account", sid: "S-1-5-21-3623811015-3361044348-30300820-1013"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bin, err := sidBytes(tt.sid)
			require.NoError(t, err)
			assert.Equal(t, tt.sid, objectsid.Decode(bin).String())
		})
	}
}

func TestSIDBytesMalformed(t *testing.T) {
	for _, s := range []string{"", "S-2-5-18", "X-1-5-18", "S-1", "S-1-5-abc"} {
		_, err := sidBytes(s)
		assert.Error(t, err, "sid %q", s)
	}
}

func TestMarshalDescriptorParsesBack(t *testing.T) {
	sec := &Security{
		Owner: "S-1-5-18",
		Group: "S-1-5-32-544",
		DACL: []AccessEntry{
			{Type: fwpm.ACEAccessAllowed, Mask: 0x1, Trustee: "S-1-5-11"},
		},
		SACL: []AccessEntry{
			{Type: fwpm.ACESystemAudit, Flags: 0x40, Mask: 0x2, Trustee: "S-1-1-0"},
		},
	}

	raw, err := marshalDescriptor(sec, fwpm.SupportedSecurityInfo)
	require.NoError(t, err)

	sd, err := fwpm.NewDescriptorParser().Parse(fwpm.ObjectEngine, raw, fwpm.SupportedSecurityInfo)
	require.NoError(t, err)
	require.NotNil(t, sd.Owner)
	assert.Equal(t, "S-1-5-18", sd.Owner.Value)
	require.NotNil(t, sd.Group)
	assert.Equal(t, "S-1-5-32-544", sd.Group.Value)
	require.NotNil(t, sd.DACL)
	require.Len(t, sd.DACL.ACEs, 1)
	assert.Equal(t, "S-1-5-11", sd.DACL.ACEs[0].Trustee.Value)
	require.NotNil(t, sd.SACL)
	assert.Equal(t, uint8(0x40), sd.SACL.ACEs[0].Flags)
}

func TestMarshalDescriptorOmitsUnrequestedParts(t *testing.T) {
	sec := &Security{Owner: "S-1-5-18", Group: "S-1-5-32-544"}

	raw, err := marshalDescriptor(sec, fwpm.SecurityInfoGroup)
	require.NoError(t, err)

	// Parse with the widest mask: the owner must be genuinely absent from
	// the buffer, not merely masked out by the parser.
	sd, err := fwpm.NewDescriptorParser().Parse(fwpm.ObjectEngine, raw, fwpm.SupportedSecurityInfo)
	require.NoError(t, err)
	assert.Nil(t, sd.Owner)
	require.NotNil(t, sd.Group)
}

func TestMarshalDescriptorNilSecurity(t *testing.T) {
	raw, err := marshalDescriptor(nil, fwpm.SupportedSecurityInfo)
	require.NoError(t, err)

	sd, err := fwpm.NewDescriptorParser().Parse(fwpm.ObjectEngine, raw, fwpm.SupportedSecurityInfo)
	require.NoError(t, err)
	assert.Nil(t, sd.Owner)
	assert.Nil(t, sd.DACL)
}

func TestStoreReplaceKeepsOrder(t *testing.T) {
	e := New()
	keyA := uuid.MustParse("11111111-0000-0000-0000-000000000001")
	keyB := uuid.MustParse("11111111-0000-0000-0000-000000000002")
	e.AddLayer(fwpm.Layer{Key: keyA, ID: 1, Name: "first"})
	e.AddLayer(fwpm.Layer{Key: keyB, ID: 2, Name: "second"})
	e.AddLayer(fwpm.Layer{Key: keyA, ID: 1, Name: "first-renamed"})

	require.Len(t, e.layers.recs, 2)
	assert.Equal(t, "first-renamed", e.layers.recs[0].Name)
	assert.Equal(t, "second", e.layers.recs[1].Name)
}

func TestAddFilterAssignsIDs(t *testing.T) {
	e := New()
	id1 := e.AddFilter(fwpm.Filter{Key: uuid.New()})
	id2 := e.AddFilter(fwpm.Filter{Key: uuid.New()})
	assert.NotZero(t, id1)
	assert.NotEqual(t, id1, id2)

	explicit := e.AddFilter(fwpm.Filter{Key: uuid.New(), ID: 9001})
	assert.Equal(t, uint64(9001), explicit)
}

func TestEnumHandleLifecycle(t *testing.T) {
	e := New()
	e.AddLayer(fwpm.Layer{Key: uuid.New(), ID: 1})

	conn, err := e.Open(context.Background(), "", fwpm.AuthDefault, nil)
	require.NoError(t, err)
	ops := conn.Layers()

	ctx := context.Background()
	h, err := ops.CreateEnumHandle(ctx, nil)
	require.NoError(t, err)

	page, err := ops.Enum(ctx, h, 10)
	require.NoError(t, err)
	assert.Len(t, page.Records, 1)
	page.Free()

	require.NoError(t, ops.DestroyEnumHandle(ctx, h))

	// The handle is gone: further use is an engine-side error.
	_, err = ops.Enum(ctx, h, 10)
	assert.ErrorIs(t, err, fwpm.CodeInvalidParameter)
	assert.ErrorIs(t, ops.DestroyEnumHandle(ctx, h), fwpm.CodeInvalidParameter)
}

func TestTemplateRejectedForKindWithoutTemplates(t *testing.T) {
	e := New()
	conn, err := e.Open(context.Background(), "", fwpm.AuthDefault, nil)
	require.NoError(t, err)

	_, err = conn.Layers().CreateEnumHandle(context.Background(), make([]byte, 36))
	assert.ErrorIs(t, err, fwpm.CodeInvalidParameter)
}

func TestEnumSnapshotIgnoresLaterChanges(t *testing.T) {
	// A cursor snapshots the store at create time.
	e := New()
	e.AddLayer(fwpm.Layer{Key: uuid.New(), ID: 1})

	conn, err := e.Open(context.Background(), "", fwpm.AuthDefault, nil)
	require.NoError(t, err)
	ops := conn.Layers()

	h, err := ops.CreateEnumHandle(context.Background(), nil)
	require.NoError(t, err)
	e.AddLayer(fwpm.Layer{Key: uuid.New(), ID: 2})

	page, err := ops.Enum(context.Background(), h, 10)
	require.NoError(t, err)
	assert.Len(t, page.Records, 1)
	page.Free()
	require.NoError(t, ops.DestroyEnumHandle(context.Background(), h))
}
