package aws

import (
	"context"
	"fmt"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/efs"
	efstypes "github.com/aws/aws-sdk-go-v2/service/efs/types"

	"appwizard/common"
	"appwizard/compose"
	"appwizard/infra"
	"appwizard/utils"
)

const efsAddress = "aws_efs_file_system.default"

// EFS mounts are NFSv4.1; the filesystem root is the only export.
const efsMountOptions = "rw,nfsvers=4.1,rsize=1048576,wsize=1048576,hard,timeo=600,retrans=2"

// Storage provisions an EFS filesystem plus a mount target in the configured
// subnet, and reconciles the compose volumes that mount it.
type Storage struct {
	cfg   *infra.Config
	paths infra.Paths
	tf    *infra.Terraform
	store *infra.Store
}

func NewStorage(cfg *infra.Config, paths infra.Paths) (*Storage, error) {
	if cfg.Provider != infra.ProviderAWS {
		return nil, fmt.Errorf("aws storage provisioner constructed with provider %q", cfg.Provider)
	}
	return &Storage{
		cfg:   cfg,
		paths: paths,
		tf:    infra.NewTerraform(paths.ModuleDir(infra.ProviderAWS, "storage")),
		store: infra.NewStore(paths, infra.ProviderAWS),
	}, nil
}

func (s *Storage) Kind() string { return "aws/storage" }

// name doubles as the EFS creation token, which is what makes a re-run of
// the same project land on the same filesystem.
func (s *Storage) name() string { return storageName(s.cfg) }

func (s *Storage) varsFile() string {
	return s.paths.VarsFile(infra.ProviderAWS, "storage")
}

func (s *Storage) GenerateConfig(ctx context.Context) error {
	a := s.cfg.AWS
	vars := map[string]any{
		"region":             a.Region,
		"creation_token":     s.name(),
		"subnet_id":          a.SubnetID,
		"security_group_ids": a.SecurityGroupIDs,
	}
	return infra.WriteVars(s.varsFile(), vars)
}

func (s *Storage) CheckLive(ctx context.Context) bool {
	if !ensureAuth(ctx, s.cfg.AWS.Region) {
		return false
	}
	fs, err := s.describe(ctx)
	if err != nil {
		common.Debugf("aws/storage: describe: %v", err)
		return false
	}
	return fs != nil && fs.LifeCycleState == efstypes.LifeCycleStateAvailable
}

// describe finds the filesystem by creation token. Nil without error means
// the token is unused.
func (s *Storage) describe(ctx context.Context) (*efstypes.FileSystemDescription, error) {
	cfg, err := loadConfig(ctx, s.cfg.AWS.Region)
	if err != nil {
		return nil, err
	}
	out, err := efs.NewFromConfig(cfg).DescribeFileSystems(ctx, &efs.DescribeFileSystemsInput{
		CreationToken: awssdk.String(s.name()),
	})
	if err != nil {
		return nil, fmt.Errorf("describe EFS filesystems: %v", err)
	}
	if len(out.FileSystems) == 0 {
		return nil, nil
	}
	return &out.FileSystems[0], nil
}

func (s *Storage) mountTargetIP(ctx context.Context, fsID string) (string, error) {
	cfg, err := loadConfig(ctx, s.cfg.AWS.Region)
	if err != nil {
		return "", err
	}
	out, err := efs.NewFromConfig(cfg).DescribeMountTargets(ctx, &efs.DescribeMountTargetsInput{
		FileSystemId: awssdk.String(fsID),
	})
	if err != nil {
		return "", fmt.Errorf("describe EFS mount targets: %v", err)
	}
	for _, mt := range out.MountTargets {
		if ip := awssdk.ToString(mt.IpAddress); ip != "" {
			return ip, nil
		}
	}
	return "", fmt.Errorf("EFS filesystem %s has no mount target with an IP", fsID)
}

func (s *Storage) Provision(ctx context.Context) (*infra.StorageData, error) {
	if err := s.tf.Init(ctx); err != nil {
		return nil, err
	}
	if err := infra.ApplyWithImport(ctx, s.tf, s.varsFile(), applyConflicts, s.lookupImport); err != nil {
		return nil, err
	}
	ip, err := s.tf.OutputValue(ctx, "mount_target_ip")
	if err != nil {
		return nil, err
	}
	data := &infra.StorageData{Provider: infra.ProviderAWS, EFSMountTargetIP: ip}
	if err := s.store.SaveStorage(data); err != nil {
		return nil, err
	}
	return data, nil
}

func (s *Storage) lookupImport(ctx context.Context) (infra.ImportTarget, error) {
	fs, err := s.describe(ctx)
	if err != nil {
		return infra.ImportTarget{}, err
	}
	if fs == nil {
		return infra.ImportTarget{}, fmt.Errorf("no EFS filesystem with creation token %s to import", s.name())
	}
	return infra.ImportTarget{Address: efsAddress, ID: awssdk.ToString(fs.FileSystemId)}, nil
}

// Existing reads back the mount IP without re-applying, falling back to the
// live mount target when this workspace holds no terraform outputs.
func (s *Storage) Existing(ctx context.Context) (*infra.StorageData, error) {
	ip, err := s.tf.OutputValue(ctx, "mount_target_ip")
	if err != nil {
		fs, derr := s.describe(ctx)
		if derr != nil {
			return nil, derr
		}
		if fs == nil {
			return nil, fmt.Errorf("no EFS filesystem with creation token %s", s.name())
		}
		ip, derr = s.mountTargetIP(ctx, awssdk.ToString(fs.FileSystemId))
		if derr != nil {
			return nil, derr
		}
	}
	data := &infra.StorageData{Provider: infra.ProviderAWS, EFSMountTargetIP: ip}
	if err := s.store.SaveStorage(data); err != nil {
		return nil, err
	}
	return data, nil
}

// MountSpec renders the compose driver options implied by the live mount target.
func (s *Storage) MountSpec(data *infra.StorageData) compose.MountSpec {
	return compose.MountSpec{
		Address:    data.EFSMountTargetIP,
		ExportPath: "/",
		FSType:     "nfs",
		Options:    efsMountOptions,
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
		common.Infof("aws/storage: compose volumes already match the live mount")
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
