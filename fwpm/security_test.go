package fwpm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfpkit/wfpkit/fwpm"
	"github.com/wfpkit/wfpkit/fwpm/memengine"
)

func seedSecurity(e *memengine.Engine) {
	e.SetEngineSecurity(&memengine.Security{
		Owner: "S-1-5-18",
		Group: "S-1-5-32-544",
		DACL: []memengine.AccessEntry{
			{Type: fwpm.ACEAccessAllowed, Mask: 0x000f003f, Trustee: "S-1-5-32-544"},
			{Type: fwpm.ACEAccessDenied, Mask: 0x00000001, Trustee: "S-1-5-32-545"},
		},
		SACL: []memengine.AccessEntry{
			{Type: fwpm.ACESystemAudit, Mask: 0x00000002, Trustee: "S-1-1-0"},
		},
	})
	e.SetObjectSecurity(layerKeyA, &memengine.Security{
		Owner: "S-1-5-19",
		Group: "S-1-5-32-544",
		DACL: []memengine.AccessEntry{
			{Type: fwpm.ACEAccessAllowed, Mask: 0x00000004, Trustee: "S-1-5-11"},
		},
	})
}

func TestSessionSecurityDescriptor(t *testing.T) {
	e := seedEngine(0)
	seedSecurity(e)
	sess := openSession(t, e, 100)

	sd, err := sess.SecurityDescriptor(context.Background(), fwpm.SupportedSecurityInfo)
	require.NoError(t, err)

	require.NotNil(t, sd.Owner)
	assert.Equal(t, "S-1-5-18", sd.Owner.Value)
	require.NotNil(t, sd.Group)
	assert.Equal(t, "S-1-5-32-544", sd.Group.Value)

	require.NotNil(t, sd.DACL)
	require.Len(t, sd.DACL.ACEs, 2)
	assert.Equal(t, fwpm.ACEAccessAllowed, sd.DACL.ACEs[0].Type)
	assert.Equal(t, "S-1-5-32-544", sd.DACL.ACEs[0].Trustee.Value)
	assert.Equal(t, fwpm.ACEAccessDenied, sd.DACL.ACEs[1].Type)

	require.NotNil(t, sd.SACL)
	require.Len(t, sd.SACL.ACEs, 1)
	assert.Equal(t, fwpm.ACESystemAudit, sd.SACL.ACEs[0].Type)
}

func TestEntitySecurityDescriptorOwnerOnly(t *testing.T) {
	e := seedEngine(0)
	seedSecurity(e)
	sess := openSession(t, e, 100)

	layer, err := sess.GetLayer(context.Background(), layerKeyA)
	require.NoError(t, err)

	sd, err := layer.SecurityDescriptor(context.Background(), fwpm.SecurityInfoOwner)
	require.NoError(t, err)

	require.NotNil(t, sd.Owner)
	assert.Equal(t, "S-1-5-19", sd.Owner.Value)
	assert.Nil(t, sd.Group)
	assert.Nil(t, sd.DACL)
	assert.Nil(t, sd.SACL)
}

func TestSecurityMaskClamped(t *testing.T) {
	// Bits outside owner|group|dacl|sacl never reach the engine.
	e := seedEngine(0)
	seedSecurity(e)
	sess := openSession(t, e, 100)

	_, err := sess.SecurityDescriptor(context.Background(), fwpm.InfoMask(0xffffffff))
	require.NoError(t, err)
	assert.Equal(t, fwpm.SupportedSecurityInfo, e.LastSecurityMask())
}

func TestSecurityEmptyMaskStillQueries(t *testing.T) {
	// A mask with no supported bits still performs the call and yields a
	// descriptor with no parts populated.
	e := seedEngine(0)
	seedSecurity(e)
	sess := openSession(t, e, 100)

	sd, err := sess.SecurityDescriptor(context.Background(), fwpm.InfoMask(0x100))
	require.NoError(t, err)
	assert.Nil(t, sd.Owner)
	assert.Nil(t, sd.Group)
	assert.Nil(t, sd.DACL)
	assert.Nil(t, sd.SACL)

	assert.Equal(t, fwpm.InfoMask(0), e.LastSecurityMask())
	assert.Equal(t, 1, e.Counters().SecurityCalls)
}

func TestEntitySecurityAcrossEnumeration(t *testing.T) {
	// Entities from an enumeration carry their originating session and can
	// serve security queries later.
	e := seedEngine(0)
	seedSecurity(e)
	sess := openSession(t, e, 100)

	layers, err := sess.EnumerateLayers(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, layers)

	sd, err := layers[0].SecurityDescriptor(context.Background(), fwpm.SecurityInfoOwner|fwpm.SecurityInfoGroup)
	require.NoError(t, err)
	require.NotNil(t, sd.Owner)
	assert.Equal(t, "S-1-5-19", sd.Owner.Value)
	require.NotNil(t, sd.Group)
}

func TestEntitySecurityAfterSessionClose(t *testing.T) {
	e := seedEngine(0)
	seedSecurity(e)
	sess := openSession(t, e, 100)

	layer, err := sess.GetLayer(context.Background(), layerKeyA)
	require.NoError(t, err)
	require.NoError(t, sess.Close())

	_, err = layer.SecurityDescriptor(context.Background(), fwpm.SecurityInfoOwner)
	assert.ErrorIs(t, err, fwpm.ErrSessionClosed)
}

func TestSecurityObjectWithoutDescriptor(t *testing.T) {
	// Objects with no stored descriptor yield an empty one, not an error.
	e := seedEngine(1)
	sess := openSession(t, e, 100)

	filters, err := sess.EnumerateFilters(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, filters, 1)

	sd, err := filters[0].SecurityDescriptor(context.Background(), fwpm.SupportedSecurityInfo)
	require.NoError(t, err)
	assert.Nil(t, sd.Owner)
	assert.Nil(t, sd.DACL)
}

func TestSecurityFailure(t *testing.T) {
	e := seedEngine(0)
	seedSecurity(e)
	e.SecurityCode = fwpm.CodeAccessDenied
	sess := openSession(t, e, 100)

	_, err := sess.SecurityDescriptor(context.Background(), fwpm.SecurityInfoOwner)
	assert.ErrorIs(t, err, fwpm.ErrAccessDenied)
}

func TestSecurityBufferReleased(t *testing.T) {
	e := seedEngine(0)
	seedSecurity(e)
	sess := openSession(t, e, 100)

	_, err := sess.SecurityDescriptor(context.Background(), fwpm.SupportedSecurityInfo)
	require.NoError(t, err)

	c := e.Counters()
	assert.Equal(t, c.SecurityCalls, c.BuffersFreed)
}

func TestSetSecurityDescriptorNotImplemented(t *testing.T) {
	e := seedEngine(0)
	sess := openSession(t, e, 100)

	err := sess.SetSecurityDescriptor(context.Background(), &fwpm.SecurityDescriptor{}, fwpm.SecurityInfoOwner)
	require.Error(t, err)
	assert.ErrorIs(t, err, fwpm.ErrNotImplemented)

	var ee *fwpm.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, fwpm.CodeNotImplemented, ee.Code)
}
