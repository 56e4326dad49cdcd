package gcp

import (
	"context"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"appwizard/common"
	"appwizard/compose"
	"appwizard/infra"
	"appwizard/utils"
)

const filestoreAddress = "google_filestore_instance.default"

// Filestore mounts are NFSv3.
const filestoreMountOptions = "rw,nfsvers=3,nolock,soft"

// Storage provisions a Filestore instance and reconciles the compose volumes
// that mount it.
type Storage struct {
	cfg   *infra.Config
	paths infra.Paths
	tf    *infra.Terraform
	store *infra.Store
}

func NewStorage(cfg *infra.Config, paths infra.Paths) (*Storage, error) {
	if cfg.Provider != infra.ProviderGoogle {
		return nil, fmt.Errorf("gcp storage provisioner constructed with provider %q", cfg.Provider)
	}
	return &Storage{
		cfg:   cfg,
		paths: paths,
		tf:    infra.NewTerraform(paths.ModuleDir(infra.ProviderGoogle, "storage")),
		store: infra.NewStore(paths, infra.ProviderGoogle),
	}, nil
}

func (s *Storage) Kind() string { return "gcp/storage" }

func (s *Storage) name() string { return storageName(s.cfg) }

func (s *Storage) varsFile() string {
	return s.paths.VarsFile(infra.ProviderGoogle, "storage")
}

func (s *Storage) GenerateConfig(ctx context.Context) error {
	g := s.cfg.Google
	vars := map[string]any{
		"project":       g.ProjectID,
		"region":        g.Region,
		"zone":          g.Zone,
		"network":       g.Network,
		"instance_name": s.name(),
		"tier":          g.FilestoreTier,
		"capacity_gb":   g.FilestoreCapacityGB,
		"share_name":    g.FilestoreShare,
	}
	return infra.WriteVars(s.varsFile(), vars)
}

func (s *Storage) CheckLive(ctx context.Context) bool {
	if !ensureAuth(ctx, s.cfg.Google) {
		return false
	}
	res, err := s.describe(ctx)
	if err != nil {
		common.Debugf("gcp/storage: describe: %v", err)
		return false
	}
	return res.Get("state").String() == "READY"
}

func (s *Storage) describe(ctx context.Context) (gjson.Result, error) {
	return runGcloud(ctx, "filestore", "instances", "describe", s.name(),
		"--zone", s.cfg.Google.Zone, "--project", s.cfg.Google.ProjectID)
}

func (s *Storage) Provision(ctx context.Context) (*infra.StorageData, error) {
	if err := s.tf.Init(ctx); err != nil {
		return nil, err
	}
	if err := infra.ApplyWithImport(ctx, s.tf, s.varsFile(), applyConflicts, s.lookupImport); err != nil {
		return nil, err
	}
	ip, err := s.tf.OutputValue(ctx, "filestore_ip")
	if err != nil {
		return nil, err
	}
	data := &infra.StorageData{Provider: infra.ProviderGoogle, FilestoreIP: ip}
	if err := s.store.SaveStorage(data); err != nil {
		return nil, err
	}
	return data, nil
}

func (s *Storage) lookupImport(ctx context.Context) (infra.ImportTarget, error) {
	res, err := s.describe(ctx)
	if err != nil {
		return infra.ImportTarget{}, err
	}
	// full resource name: projects/<p>/locations/<zone>/instances/<name>
	id := res.Get("name").String()
	if id == "" {
		return infra.ImportTarget{}, fmt.Errorf("filestore instance %s has no resource name", s.name())
	}
	return infra.ImportTarget{Address: filestoreAddress, ID: id}, nil
}

// Existing reads back the mount IP without re-applying. Terraform outputs are
// only populated when this workspace did the apply, so fall back to the live
// instance otherwise.
func (s *Storage) Existing(ctx context.Context) (*infra.StorageData, error) {
	ip, err := s.tf.OutputValue(ctx, "filestore_ip")
	if err != nil {
		res, derr := s.describe(ctx)
		if derr != nil {
			return nil, derr
		}
		ip = res.Get("networks.0.ipAddresses.0").String()
		if ip == "" {
			return nil, fmt.Errorf("filestore instance %s reports no IP address", s.name())
		}
	}
	data := &infra.StorageData{Provider: infra.ProviderGoogle, FilestoreIP: ip}
	if err := s.store.SaveStorage(data); err != nil {
		return nil, err
	}
	return data, nil
}

// MountSpec renders the compose driver options implied by the live instance.
func (s *Storage) MountSpec(data *infra.StorageData) compose.MountSpec {
	return compose.MountSpec{
		Address:    data.FilestoreIP,
		ExportPath: "/" + s.cfg.Google.FilestoreShare,
		FSType:     "nfs",
		Options:    filestoreMountOptions,
	}
}

func (s *Storage) CheckDrift(ctx context.Context, data *infra.StorageData) ([]compose.VolumeDiscrepancy, error) {
	doc, err := compose.Load(s.paths.ComposeFile)
	if err != nil {
		return nil, err
	}
	return compose.CheckVolumeDrift(doc, s.cfg.Storage.Volumes, s.MountSpec(data)), nil
}

func (s *Storage) FixDrift(ctx context.Context, data *infra.StorageData) error {
	doc, err := compose.Load(s.paths.ComposeFile)
	if err != nil {
		return err
	}
	spec := s.MountSpec(data)
	drifted := compose.CheckVolumeDrift(doc, s.cfg.Storage.Volumes, spec)
	if len(drifted) == 0 {
		common.Infof("gcp/storage: compose volumes already match the live mount")
		return nil
	}
	names := make([]string, 0, len(drifted))
	for _, d := range drifted {
		names = append(names, d.VolumeName)
	}
	compose.FixVolumeDrift(doc, names, spec)
	return doc.Save(s.paths.ComposeFile)
}

func (s *Storage) ProbeMount(ctx context.Context, data *infra.StorageData) error {
	return utils.ProbeNFSMount(ctx, s.MountSpec(data), 2*time.Minute)
}
