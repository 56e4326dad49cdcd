package gcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appwizard/infra"
)

func testConfig() *infra.Config {
	return &infra.Config{
		Provider: infra.ProviderGoogle,
		Project:  "demo",
		Storage:  infra.StorageConfig{Volumes: []string{"pgdata"}},
		Database: infra.DBConfig{Name: "app", AppUser: "app_user"},
		Google: &infra.GoogleConfig{
			ProjectID:           "demo-123",
			Region:              "us-central1",
			Zone:                "us-central1-a",
			Network:             "default",
			MachineType:         "e2-medium",
			DatabaseTier:        "db-f1-micro",
			FilestoreTier:       "BASIC_HDD",
			FilestoreCapacityGB: 1024,
			FilestoreShare:      "share1",
			SSHUser:             "appwizard",
		},
	}
}

func readVars(t *testing.T, path string) map[string]any {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var vars map[string]any
	require.NoError(t, json.Unmarshal(raw, &vars))
	return vars
}

func TestConstructorsRejectWrongProvider(t *testing.T) {
	cfg := testConfig()
	cfg.Provider = infra.ProviderAWS
	paths := infra.DefaultPaths(t.TempDir())

	_, err := NewStorage(cfg, paths)
	require.Error(t, err)
	_, err = NewDatabase(cfg, paths)
	require.Error(t, err)
	_, err = NewCompute(cfg, paths)
	require.Error(t, err)
}

func TestStorageGenerateConfig(t *testing.T) {
	paths := infra.DefaultPaths(t.TempDir())
	s, err := NewStorage(testConfig(), paths)
	require.NoError(t, err)
	require.NoError(t, s.GenerateConfig(context.Background()))

	vars := readVars(t, paths.VarsFile(infra.ProviderGoogle, "storage"))
	assert.Equal(t, "demo-123", vars["project"])
	assert.Equal(t, "demo-filestore", vars["instance_name"])
	assert.Equal(t, "BASIC_HDD", vars["tier"])
	assert.Equal(t, float64(1024), vars["capacity_gb"])
	assert.Equal(t, "share1", vars["share_name"])
}

func TestStorageMountSpec(t *testing.T) {
	s, err := NewStorage(testConfig(), infra.DefaultPaths(t.TempDir()))
	require.NoError(t, err)
	spec := s.MountSpec(&infra.StorageData{Provider: infra.ProviderGoogle, FilestoreIP: "10.1.2.3"})
	assert.Equal(t, "10.1.2.3", spec.Address)
	assert.Equal(t, "/share1", spec.ExportPath)
	assert.Equal(t, "addr=10.1.2.3,rw,nfsvers=3,nolock,soft", spec.DriverOpts()["o"])
}

func TestDatabaseGenerateConfig(t *testing.T) {
	t.Setenv("APPWIZARD_DB_ROOT_PASSWORD", "root-pw")
	paths := infra.DefaultPaths(t.TempDir())
	d, err := NewDatabase(testConfig(), paths)
	require.NoError(t, err)
	require.NoError(t, d.GenerateConfig(context.Background()))

	vars := readVars(t, paths.VarsFile(infra.ProviderGoogle, "database"))
	assert.Equal(t, "demo-db", vars["instance_name"])
	assert.Equal(t, "app", vars["database_name"])
	assert.Equal(t, "root-pw", vars["root_password"])
}

func TestDatabaseGenerateConfigRequiresRootPassword(t *testing.T) {
	t.Setenv("APPWIZARD_DB_ROOT_PASSWORD", "")
	d, err := NewDatabase(testConfig(), infra.DefaultPaths(t.TempDir()))
	require.NoError(t, err)
	err = d.GenerateConfig(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "root password")
}

func TestComputeGenerateConfigRequiresStorage(t *testing.T) {
	c, err := NewCompute(testConfig(), infra.DefaultPaths(t.TempDir()))
	require.NoError(t, err)
	err = c.GenerateConfig(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage must be provisioned before compute")
}

func TestComputeGenerateConfigConsumesStorageIP(t *testing.T) {
	root := t.TempDir()
	paths := infra.DefaultPaths(root)
	cfg := testConfig()

	pubKey := filepath.Join(root, "id_ed25519.pub")
	require.NoError(t, os.WriteFile(pubKey, []byte("ssh-ed25519 AAAA test\n"), 0o644))
	cfg.Google.SSHPublicKeyPath = pubKey

	store := infra.NewStore(paths, infra.ProviderGoogle)
	require.NoError(t, store.SaveStorage(&infra.StorageData{
		Provider:    infra.ProviderGoogle,
		FilestoreIP: "10.9.8.7",
	}))

	c, err := NewCompute(cfg, paths)
	require.NoError(t, err)
	require.NoError(t, c.GenerateConfig(context.Background()))

	vars := readVars(t, paths.VarsFile(infra.ProviderGoogle, "compute"))
	assert.Equal(t, "10.9.8.7", vars["filestore_ip"])
	assert.Equal(t, "demo-vm", vars["instance_name"])
	assert.Equal(t, "ssh-ed25519 AAAA test", vars["ssh_public_key"])
}

func TestApplyConflictClassifier(t *testing.T) {
	assert.Equal(t, infra.ClassConflict,
		applyConflicts("googleapi: Error 409: instance already exists"))
	assert.Equal(t, infra.ClassConflict,
		applyConflicts("ALREADYEXISTS: the resource demo-db"))
	assert.Equal(t, infra.ClassFatal,
		applyConflicts("googleapi: Error 403: permission denied"))
}
