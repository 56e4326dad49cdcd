package gcp

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"appwizard/common"
	"appwizard/infra"
	"appwizard/utils"
)

const computeAddress = "google_compute_instance.default"

// Compute provisions the Compute Engine host that runs the prod stack. Its
// variables consume the persisted storage output (the instance mounts the
// Filestore share at boot).
type Compute struct {
	cfg   *infra.Config
	paths infra.Paths
	tf    *infra.Terraform
	store *infra.Store
}

func NewCompute(cfg *infra.Config, paths infra.Paths) (*Compute, error) {
	if cfg.Provider != infra.ProviderGoogle {
		return nil, fmt.Errorf("gcp compute provisioner constructed with provider %q", cfg.Provider)
	}
	return &Compute{
		cfg:   cfg,
		paths: paths,
		tf:    infra.NewTerraform(paths.ModuleDir(infra.ProviderGoogle, "compute")),
		store: infra.NewStore(paths, infra.ProviderGoogle),
	}, nil
}

func (c *Compute) Kind() string { return "gcp/compute" }

func (c *Compute) name() string { return computeName(c.cfg) }

func (c *Compute) varsFile() string {
	return c.paths.VarsFile(infra.ProviderGoogle, "compute")
}

func (c *Compute) GenerateConfig(ctx context.Context) error {
	g := c.cfg.Google
	storage, err := c.store.LoadStorage()
	if err != nil {
		return fmt.Errorf("storage must be provisioned before compute: %v", err)
	}
	if g.SSHPublicKeyPath == "" {
		return fmt.Errorf("google.ssh_public_key_path is required")
	}
	pubKey, err := os.ReadFile(g.SSHPublicKeyPath)
	if err != nil {
		return fmt.Errorf("read ssh public key %s: %v", g.SSHPublicKeyPath, err)
	}
	vars := map[string]any{
		"project":        g.ProjectID,
		"zone":           g.Zone,
		"network":        g.Network,
		"instance_name":  c.name(),
		"machine_type":   g.MachineType,
		"filestore_ip":   storage.FilestoreIP,
		"ssh_user":       g.SSHUser,
		"ssh_public_key": strings.TrimSpace(string(pubKey)),
	}
	return infra.WriteVars(c.varsFile(), vars)
}

func (c *Compute) CheckLive(ctx context.Context) bool {
	if !ensureAuth(ctx, c.cfg.Google) {
		return false
	}
	res, err := c.describe(ctx)
	if err != nil {
		common.Debugf("gcp/compute: describe: %v", err)
		return false
	}
	return res.Get("status").String() == "RUNNING"
}

func (c *Compute) describe(ctx context.Context) (gjson.Result, error) {
	return runGcloud(ctx, "compute", "instances", "describe", c.name(),
		"--zone", c.cfg.Google.Zone, "--project", c.cfg.Google.ProjectID)
}

func (c *Compute) Provision(ctx context.Context) (*infra.ComputeData, error) {
	if err := c.tf.Init(ctx); err != nil {
		return nil, err
	}
	if err := infra.ApplyWithImport(ctx, c.tf, c.varsFile(), applyConflicts, c.lookupImport); err != nil {
		return nil, err
	}
	ip, err := c.tf.OutputValue(ctx, "public_ip")
	if err != nil {
		return nil, err
	}
	data, err := c.persist(ip)
	if err != nil {
		return nil, err
	}

	// New instances take a while to accept connections; warn-only.
	if data.SSHKeyPath != "" {
		if serr := utils.WaitForSSH(ctx, data.PublicIP, data.SSHUser, data.SSHKeyPath,
			10*time.Second, 3*time.Minute); serr != nil {
			common.Warnf("gcp/compute: instance is up but SSH is not reachable yet: %v", serr)
		}
	}
	return data, nil
}

func (c *Compute) lookupImport(ctx context.Context) (infra.ImportTarget, error) {
	if _, err := c.describe(ctx); err != nil {
		return infra.ImportTarget{}, err
	}
	g := c.cfg.Google
	id := fmt.Sprintf("projects/%s/zones/%s/instances/%s", g.ProjectID, g.Zone, c.name())
	return infra.ImportTarget{Address: computeAddress, ID: id}, nil
}

func (c *Compute) Existing(ctx context.Context) (*infra.ComputeData, error) {
	ip, err := c.tf.OutputValue(ctx, "public_ip")
	if err != nil {
		res, derr := c.describe(ctx)
		if derr != nil {
			return nil, derr
		}
		ip = res.Get("networkInterfaces.0.accessConfigs.0.natIP").String()
		if ip == "" {
			return nil, fmt.Errorf("compute instance %s reports no external IP", c.name())
		}
	}
	return c.persist(ip)
}

func (c *Compute) persist(publicIP string) (*infra.ComputeData, error) {
	g := c.cfg.Google
	data := &infra.ComputeData{
		Provider:     infra.ProviderGoogle,
		PublicIP:     publicIP,
		SSHUser:      g.SSHUser,
		SSHKeyPath:   g.SSHKeyPath,
		InstanceName: c.name(),
	}
	if err := c.store.SaveCompute(data); err != nil {
		return nil, err
	}
	return data, nil
}
