// Package infra carries the provisioning core shared by the provider
// adapters: project configuration, the terraform runner, persisted infra
// outputs, and the provision/import reconciliation loop.
package infra

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

const (
	ProviderGoogle = "gcp"
	ProviderAWS    = "aws"
)

// Config is the user-supplied project configuration (appwizard.yaml). Exactly
// one provider section must be filled in, matching Provider.
type Config struct {
	Provider string        `yaml:"provider"`
	Project  string        `yaml:"project"`
	Storage  StorageConfig `yaml:"storage"`
	Database DBConfig      `yaml:"database"`
	Google   *GoogleConfig `yaml:"google,omitempty"`
	AWS      *AWSConfig    `yaml:"aws,omitempty"`
}

// StorageConfig names the compose volumes backed by the provisioned network
// filesystem.
type StorageConfig struct {
	Volumes []string `yaml:"volumes"`
}

// DBConfig names the application-level database and role.
type DBConfig struct {
	Name    string `yaml:"name"`
	AppUser string `yaml:"app_user"`
}

type GoogleConfig struct {
	ProjectID             string `yaml:"project_id"`
	Region                string `yaml:"region"`
	Zone                  string `yaml:"zone"`
	Network               string `yaml:"network"`
	ServiceAccountKeyFile string `yaml:"service_account_key_file"`
	MachineType           string `yaml:"machine_type"`
	DatabaseTier          string `yaml:"database_tier"`
	FilestoreTier         string `yaml:"filestore_tier"`
	FilestoreCapacityGB   int    `yaml:"filestore_capacity_gb"`
	FilestoreShare        string `yaml:"filestore_share"`
	SSHUser               string `yaml:"ssh_user"`
	SSHKeyPath            string `yaml:"ssh_key_path"`
	SSHPublicKeyPath      string `yaml:"ssh_public_key_path"`
}

type AWSConfig struct {
	Region           string   `yaml:"region"`
	AvailabilityZone string   `yaml:"availability_zone"`
	SubnetID         string   `yaml:"subnet_id"`
	SecurityGroupIDs []string `yaml:"security_group_ids"`
	InstanceType     string   `yaml:"instance_type"`
	DBInstanceClass  string   `yaml:"db_instance_class"`
	KeyPairName      string   `yaml:"key_pair_name"`
	SSHUser          string   `yaml:"ssh_user"`
	SSHKeyPath       string   `yaml:"ssh_key_path"`
}

// LoadConfig reads, defaults, and validates the project configuration.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %v", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %v", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database.Name == "" {
		c.Database.Name = "app"
	}
	if c.Database.AppUser == "" {
		c.Database.AppUser = "app_user"
	}
	if g := c.Google; g != nil {
		if g.Network == "" {
			g.Network = "default"
		}
		if g.MachineType == "" {
			g.MachineType = "e2-medium"
		}
		if g.DatabaseTier == "" {
			g.DatabaseTier = "db-f1-micro"
		}
		if g.FilestoreTier == "" {
			g.FilestoreTier = "BASIC_HDD"
		}
		if g.FilestoreCapacityGB == 0 {
			g.FilestoreCapacityGB = 1024
		}
		if g.FilestoreShare == "" {
			g.FilestoreShare = "share1"
		}
		if g.SSHUser == "" {
			g.SSHUser = "appwizard"
		}
	}
	if a := c.AWS; a != nil {
		if a.InstanceType == "" {
			a.InstanceType = "t3.medium"
		}
		if a.DBInstanceClass == "" {
			a.DBInstanceClass = "db.t3.micro"
		}
		if a.SSHUser == "" {
			a.SSHUser = "ec2-user"
		}
	}
}

// Validate enforces the provider/section pairing and the per-provider
// mandatory fields. Every error names the offending field.
func (c *Config) Validate() error {
	if c.Project == "" {
		return fmt.Errorf("config: project is required")
	}
	switch c.Provider {
	case ProviderGoogle:
		if c.Google == nil {
			return fmt.Errorf("config: provider is %q but the google section is missing", c.Provider)
		}
		g := c.Google
		for _, f := range []struct{ name, value string }{
			{"google.project_id", g.ProjectID},
			{"google.region", g.Region},
			{"google.zone", g.Zone},
		} {
			if f.value == "" {
				return fmt.Errorf("config: %s is required", f.name)
			}
		}
	case ProviderAWS:
		if c.AWS == nil {
			return fmt.Errorf("config: provider is %q but the aws section is missing", c.Provider)
		}
		a := c.AWS
		if a.Region == "" {
			return fmt.Errorf("config: aws.region is required")
		}
		if a.SubnetID == "" {
			return fmt.Errorf("config: aws.subnet_id is required")
		}
		if len(a.SecurityGroupIDs) == 0 {
			return fmt.Errorf("config: aws.security_group_ids is required")
		}
	case "":
		return fmt.Errorf("config: provider is required (gcp or aws)")
	default:
		return fmt.Errorf("config: unknown provider %q (want gcp or aws)", c.Provider)
	}
	return nil
}
