package infra

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// StorageData is the persisted output of a storage provision: the mount
// address dependents need. Exactly one of the IP fields is set per provider.
type StorageData struct {
	Provider         string `json:"provider"`
	FilestoreIP      string `json:"filestoreIp,omitempty"`
	EFSMountTargetIP string `json:"efsMountTargetIp,omitempty"`
}

// MountAddress returns whichever mount endpoint the provider produced.
func (d *StorageData) MountAddress() string {
	if d.FilestoreIP != "" {
		return d.FilestoreIP
	}
	return d.EFSMountTargetIP
}

// DatabaseData is the persisted output of a database provision.
type DatabaseData struct {
	Provider       string `json:"provider"`
	ConnectionName string `json:"connectionName,omitempty"`
	PublicIP       string `json:"publicIp,omitempty"`
	Endpoint       string `json:"endpoint,omitempty"`
	Port           int    `json:"port,omitempty"`
}

// Host returns the reachable database host for direct SQL connections.
func (d *DatabaseData) Host() string {
	if d.PublicIP != "" {
		return d.PublicIP
	}
	return d.Endpoint
}

// HostPort renders host:port with the Postgres default when unset.
func (d *DatabaseData) HostPort() string {
	port := d.Port
	if port == 0 {
		port = 5432
	}
	return d.Host() + ":" + strconv.Itoa(port)
}

// ComputeData is the persisted output of a compute provision.
type ComputeData struct {
	Provider     string `json:"provider"`
	PublicIP     string `json:"publicIp"`
	SSHUser      string `json:"sshUser"`
	SSHKeyPath   string `json:"sshKeyPath"`
	InstanceName string `json:"instanceName,omitempty"`
}

// Store persists per-kind infra outputs as JSON files under the provider's
// output directory. Writes overwrite, never merge; the CLI is single-operator
// so last-writer-wins is acceptable.
type Store struct {
	paths    Paths
	provider string
}

func NewStore(paths Paths, provider string) *Store {
	return &Store{paths: paths, provider: provider}
}

func (s *Store) SaveStorage(d *StorageData) error  { return s.save("storage", d) }
func (s *Store) SaveDatabase(d *DatabaseData) error { return s.save("database", d) }
func (s *Store) SaveCompute(d *ComputeData) error  { return s.save("compute", d) }

func (s *Store) LoadStorage() (*StorageData, error) {
	var d StorageData
	if err := s.load("storage", &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) LoadDatabase() (*DatabaseData, error) {
	var d DatabaseData
	if err := s.load("database", &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) LoadCompute() (*ComputeData, error) {
	var d ComputeData
	if err := s.load("compute", &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) save(resource string, v any) error {
	path := s.paths.DataFile(s.provider, resource)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("infra: create output dir: %v", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("infra: marshal %s data: %v", resource, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("infra: write %s: %v", path, err)
	}
	return nil
}

func (s *Store) load(resource string, v any) error {
	path := s.paths.DataFile(s.provider, resource)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("infra: no persisted %s data at %s: %v", resource, path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("infra: parse %s: %v", path, err)
	}
	return nil
}

// WriteVars writes a terraform.tfvars.json, fully replacing any previous one.
func WriteVars(path string, vars map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("infra: create module dir: %v", err)
	}
	data, err := json.MarshalIndent(vars, "", "  ")
	if err != nil {
		return fmt.Errorf("infra: marshal vars: %v", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("infra: write %s: %v", path, err)
	}
	return nil
}
