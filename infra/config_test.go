package infra

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "appwizard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigGoogleDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
provider: gcp
project: demo
storage:
  volumes: [pgdata, uploads]
google:
  project_id: demo-123
  region: us-central1
  zone: us-central1-a
`))
	require.NoError(t, err)
	assert.Equal(t, "app", cfg.Database.Name)
	assert.Equal(t, "app_user", cfg.Database.AppUser)
	assert.Equal(t, "default", cfg.Google.Network)
	assert.Equal(t, "BASIC_HDD", cfg.Google.FilestoreTier)
	assert.Equal(t, 1024, cfg.Google.FilestoreCapacityGB)
	assert.Equal(t, "share1", cfg.Google.FilestoreShare)
	assert.Equal(t, []string{"pgdata", "uploads"}, cfg.Storage.Volumes)
}

func TestLoadConfigAWSDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
provider: aws
project: demo
aws:
  region: eu-west-1
  subnet_id: subnet-abc
  security_group_ids: [sg-1]
`))
	require.NoError(t, err)
	assert.Equal(t, "t3.medium", cfg.AWS.InstanceType)
	assert.Equal(t, "db.t3.micro", cfg.AWS.DBInstanceClass)
	assert.Equal(t, "ec2-user", cfg.AWS.SSHUser)
}

func TestValidateErrorsNameTheField(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"no provider", "project: demo\n", "provider is required"},
		{"unknown provider", "provider: azure\nproject: demo\n", `unknown provider "azure"`},
		{"no project", "provider: gcp\ngoogle:\n  project_id: x\n", "project is required"},
		{
			"provider/section mismatch",
			"provider: gcp\nproject: demo\naws:\n  region: eu-west-1\n",
			"google section is missing",
		},
		{
			"missing zone",
			"provider: gcp\nproject: demo\ngoogle:\n  project_id: x\n  region: us-central1\n",
			"google.zone is required",
		},
		{
			"missing subnet",
			"provider: aws\nproject: demo\naws:\n  region: eu-west-1\n  security_group_ids: [sg-1]\n",
			"aws.subnet_id is required",
		},
		{
			"missing security groups",
			"provider: aws\nproject: demo\naws:\n  region: eu-west-1\n  subnet_id: subnet-abc\n",
			"aws.security_group_ids is required",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestValidateReportsFieldsInDeclaredOrder(t *testing.T) {
	// several fields missing at once: the first declared one is always named
	body := "provider: gcp\nproject: demo\ngoogle:\n  network: default\n"
	for i := 0; i < 20; i++ {
		_, err := LoadConfig(writeConfig(t, body))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "google.project_id is required")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
