package infra

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	paths := DefaultPaths(t.TempDir())
	store := NewStore(paths, ProviderGoogle)

	require.NoError(t, store.SaveStorage(&StorageData{
		Provider:    ProviderGoogle,
		FilestoreIP: "10.0.0.2",
	}))
	got, err := store.LoadStorage()
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.2", got.FilestoreIP)
	assert.Equal(t, "10.0.0.2", got.MountAddress())
}

func TestStoreOverwritesNeverMerges(t *testing.T) {
	paths := DefaultPaths(t.TempDir())
	store := NewStore(paths, ProviderAWS)

	require.NoError(t, store.SaveDatabase(&DatabaseData{
		Provider: ProviderAWS,
		Endpoint: "old.rds.amazonaws.com",
		Port:     5432,
	}))
	require.NoError(t, store.SaveDatabase(&DatabaseData{
		Provider: ProviderAWS,
		Endpoint: "new.rds.amazonaws.com",
	}))

	raw, err := os.ReadFile(paths.DataFile(ProviderAWS, "database"))
	require.NoError(t, err)
	var onDisk map[string]any
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Equal(t, "new.rds.amazonaws.com", onDisk["endpoint"])
	// the old port must not leak into the rewritten file
	assert.NotContains(t, onDisk, "port")
}

func TestStoreLoadMissing(t *testing.T) {
	store := NewStore(DefaultPaths(t.TempDir()), ProviderGoogle)
	_, err := store.LoadCompute()
	require.Error(t, err)
}

func TestDatabaseDataHostPort(t *testing.T) {
	gcpData := &DatabaseData{PublicIP: "34.1.2.3"}
	assert.Equal(t, "34.1.2.3:5432", gcpData.HostPort())

	awsData := &DatabaseData{Endpoint: "db.rds.amazonaws.com", Port: 5433}
	assert.Equal(t, "db.rds.amazonaws.com:5433", awsData.HostPort())
}

func TestWriteVars(t *testing.T) {
	paths := DefaultPaths(t.TempDir())
	path := paths.VarsFile(ProviderGoogle, "storage")
	require.NoError(t, WriteVars(path, map[string]any{
		"project":     "demo",
		"capacity_gb": 1024,
	}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var vars map[string]any
	require.NoError(t, json.Unmarshal(raw, &vars))
	assert.Equal(t, "demo", vars["project"])
	assert.Equal(t, float64(1024), vars["capacity_gb"])
}

func TestPathsLayout(t *testing.T) {
	paths := DefaultPaths("/proj")
	assert.Equal(t, "/proj/infra/aws/storage/terraform.tfvars.json",
		paths.VarsFile(ProviderAWS, "storage"))
	assert.Equal(t, "/proj/prod-deployments/infra/gcp/compute.json",
		paths.DataFile(ProviderGoogle, "compute"))
	assert.Equal(t, "/proj/docker-compose.yml", paths.ComposeFile)
}
