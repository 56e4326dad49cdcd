package compose

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCompose = `services:
  db:
    image: postgres:16
    healthcheck:
      test: ["CMD-SHELL", "pg_isready -U postgres"]
      interval: 5s
      retries: 10
  api:
    image: example/api:latest
    depends_on:
      db:
        condition: service_healthy
  web:
    image: example/web:latest
    depends_on:
      - api
volumes:
  shared-data:
    driver: local
`

func TestParseServicesInDeclarationOrder(t *testing.T) {
	doc, err := Parse([]byte(sampleCompose))
	require.NoError(t, err)
	require.Len(t, doc.Services, 3)
	assert.Equal(t, "db", doc.Services[0].Name)
	assert.Equal(t, "api", doc.Services[1].Name)
	assert.Equal(t, "web", doc.Services[2].Name)
	assert.Equal(t, 2, doc.Services[2].Index)
}

func TestParseDependsOnBothForms(t *testing.T) {
	doc, err := Parse([]byte(sampleCompose))
	require.NoError(t, err)
	// map-with-condition form
	assert.Equal(t, []string{"db"}, doc.Service("api").DependsOn)
	// list form
	assert.Equal(t, []string{"api"}, doc.Service("web").DependsOn)
	assert.Empty(t, doc.Service("db").DependsOn)
}

func TestParseHealthcheck(t *testing.T) {
	doc, err := Parse([]byte(sampleCompose))
	require.NoError(t, err)
	hc := doc.Service("db").Healthcheck
	require.NotNil(t, hc)
	assert.Equal(t, "CMD-SHELL pg_isready -U postgres", hc.Test)
	assert.Equal(t, "5s", hc.Interval)
	assert.Equal(t, 10, hc.Retries)
	assert.Nil(t, doc.Service("api").Healthcheck)
}

func TestDeploymentOrderFromDocument(t *testing.T) {
	doc, err := Parse([]byte(sampleCompose))
	require.NoError(t, err)
	order, err := doc.DeploymentOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"db", "api", "web"}, order)
}

func TestParseDuplicateService(t *testing.T) {
	_, err := Parse([]byte("services:\n  a:\n    image: x\n  a:\n    image: y\n"))
	require.Error(t, err)
}

func TestSetVolumeDriverRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docker-compose.yml")
	require.NoError(t, os.WriteFile(path, []byte(sampleCompose), 0o644))

	doc, err := Load(path)
	require.NoError(t, err)
	opts := map[string]string{
		"type":   "nfs",
		"o":      "addr=10.0.0.5,rw,nfsvers=3,nolock,soft",
		"device": ":/share1",
	}
	doc.SetVolumeDriver("shared-data", "local", opts)
	require.NoError(t, doc.Save(path))

	reloaded, err := Load(path)
	require.NoError(t, err)
	vol := reloaded.Volumes["shared-data"]
	require.NotNil(t, vol)
	assert.Equal(t, "local", vol.Driver)
	assert.Equal(t, opts, vol.DriverOpts)
	// services survive the rewrite untouched
	order, err := reloaded.DeploymentOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"db", "api", "web"}, order)
}

func TestSetVolumeDriverCreatesMissingSections(t *testing.T) {
	doc, err := Parse([]byte("services:\n  db:\n    image: postgres:16\n"))
	require.NoError(t, err)
	doc.SetVolumeDriver("pgdata", "local", map[string]string{"type": "nfs"})

	dir := t.TempDir()
	path := filepath.Join(dir, "out.yml")
	require.NoError(t, doc.Save(path))

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, reloaded.Volumes["pgdata"])
	assert.Equal(t, "nfs", reloaded.Volumes["pgdata"].DriverOpts["type"])
}
