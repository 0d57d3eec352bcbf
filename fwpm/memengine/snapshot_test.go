package memengine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfpkit/wfpkit/fwpm"
)

const sampleSnapshot = `
[[provider]]
key = "44444444-0000-0000-0000-000000000001"
name = "acme-agent"
service_name = "acmesvc"

[[layer]]
key = "11111111-0000-0000-0000-000000000001"
id = 10
name = "inbound-transport-v4"
default_sublayer = "22222222-0000-0000-0000-000000000001"

[[sublayer]]
key = "22222222-0000-0000-0000-000000000001"
name = "acme-base"
weight = 100
provider = "44444444-0000-0000-0000-000000000001"

[[callout]]
key = "33333333-0000-0000-0000-000000000001"
id = 7
name = "acme-inspector"
applicable_layer = "11111111-0000-0000-0000-000000000001"

[[filter]]
key = "55555555-0000-0000-0000-000000000001"
name = "block-telnet"
layer = "11111111-0000-0000-0000-000000000001"
sublayer = "22222222-0000-0000-0000-000000000001"
provider = "44444444-0000-0000-0000-000000000001"
action = "block"
weight = 10

[[filter]]
key = "55555555-0000-0000-0000-000000000002"
name = "permit-dns"
layer = "11111111-0000-0000-0000-000000000001"
sublayer = "22222222-0000-0000-0000-000000000001"
action = "permit"
weight = 20
`

func TestLoadSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.toml")
	require.NoError(t, os.WriteFile(path, []byte(sampleSnapshot), 0o600))

	e, err := LoadSnapshot(path)
	require.NoError(t, err)

	sess, err := fwpm.Open(context.Background(), &fwpm.SessionOptions{Transport: e})
	require.NoError(t, err)
	defer sess.Close()

	layer, err := sess.GetLayerByID(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, "inbound-transport-v4", layer.Name)
	assert.Equal(t, uuid.MustParse("22222222-0000-0000-0000-000000000001"), layer.DefaultSubLayerKey)

	filters, err := sess.EnumerateFilters(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, filters, 2)
	assert.Equal(t, "block-telnet", filters[0].Name)
	assert.Equal(t, fwpm.ActionBlock, filters[0].Action)
	require.NotNil(t, filters[0].ProviderKey)
	assert.Nil(t, filters[1].ProviderKey)

	// Filters without an explicit ID get engine-assigned ones.
	assert.NotZero(t, filters[0].ID)
	assert.NotEqual(t, filters[0].ID, filters[1].ID)

	// Mask on the block-specific action bit; the terminating flag is
	// shared by permit actions too.
	blocking, err := sess.EnumerateFilters(context.Background(), &fwpm.FilterEnumTemplate{
		ActionMask: uint32(fwpm.ActionBlock &^ fwpm.ActionFlagTerminating),
	})
	require.NoError(t, err)
	require.Len(t, blocking, 1)
	assert.Equal(t, "block-telnet", blocking[0].Name)
}

func TestLoadSnapshotMissingFile(t *testing.T) {
	_, err := LoadSnapshot(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestFromSnapshotBadKey(t *testing.T) {
	_, err := FromSnapshot(&Snapshot{
		Layers: []SnapshotLayer{{Key: "not-a-guid"}},
	})
	assert.Error(t, err)
}

func TestFromSnapshotBadAction(t *testing.T) {
	_, err := FromSnapshot(&Snapshot{
		Filters: []SnapshotFilter{{Key: "55555555-0000-0000-0000-000000000001", Action: "maybe"}},
	})
	assert.Error(t, err)
}
