package aws

import (
	"context"
	"fmt"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"appwizard/common"
	"appwizard/infra"
	"appwizard/utils"
)

const instanceAddress = "aws_instance.default"

// Compute provisions the EC2 host that runs the prod stack. Its variables
// consume the persisted storage output (the instance mounts EFS at boot).
type Compute struct {
	cfg   *infra.Config
	paths infra.Paths
	tf    *infra.Terraform
	store *infra.Store
}

func NewCompute(cfg *infra.Config, paths infra.Paths) (*Compute, error) {
	if cfg.Provider != infra.ProviderAWS {
		return nil, fmt.Errorf("aws compute provisioner constructed with provider %q", cfg.Provider)
	}
	return &Compute{
		cfg:   cfg,
		paths: paths,
		tf:    infra.NewTerraform(paths.ModuleDir(infra.ProviderAWS, "compute")),
		store: infra.NewStore(paths, infra.ProviderAWS),
	}, nil
}

func (c *Compute) Kind() string { return "aws/compute" }

func (c *Compute) name() string { return computeName(c.cfg) }

func (c *Compute) varsFile() string {
	return c.paths.VarsFile(infra.ProviderAWS, "compute")
}

func (c *Compute) GenerateConfig(ctx context.Context) error {
	a := c.cfg.AWS
	storage, err := c.store.LoadStorage()
	if err != nil {
		return fmt.Errorf("storage must be provisioned before compute: %v", err)
	}
	if a.KeyPairName == "" {
		return fmt.Errorf("aws.key_pair_name is required")
	}
	vars := map[string]any{
		"region":             a.Region,
		"instance_name":      c.name(),
		"instance_type":      a.InstanceType,
		"subnet_id":          a.SubnetID,
		"security_group_ids": a.SecurityGroupIDs,
		"key_pair_name":      a.KeyPairName,
		"efs_mount_ip":       storage.EFSMountTargetIP,
	}
	if a.AvailabilityZone != "" {
		vars["availability_zone"] = a.AvailabilityZone
	}
	return infra.WriteVars(c.varsFile(), vars)
}

func (c *Compute) CheckLive(ctx context.Context) bool {
	if !ensureAuth(ctx, c.cfg.AWS.Region) {
		return false
	}
	inst, err := c.describe(ctx)
	if err != nil {
		common.Debugf("aws/compute: describe: %v", err)
		return false
	}
	return inst != nil && inst.State != nil && inst.State.Name == ec2types.InstanceStateNameRunning
}

// describe finds the instance by its Name tag, ignoring terminated ones.
// Nil without error means no instance carries the tag.
func (c *Compute) describe(ctx context.Context) (*ec2types.Instance, error) {
	cfg, err := loadConfig(ctx, c.cfg.AWS.Region)
	if err != nil {
		return nil, err
	}
	out, err := ec2.NewFromConfig(cfg).DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		Filters: []ec2types.Filter{
			{Name: awssdk.String("tag:Name"), Values: []string{c.name()}},
			{Name: awssdk.String("instance-state-name"), Values: []string{"pending", "running", "stopping", "stopped"}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("describe EC2 instances: %v", err)
	}
	for _, r := range out.Reservations {
		for i := range r.Instances {
			return &r.Instances[i], nil
		}
	}
	return nil, nil
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
			common.Warnf("aws/compute: instance is up but SSH is not reachable yet: %v", serr)
		}
	}
	return data, nil
}

func (c *Compute) lookupImport(ctx context.Context) (infra.ImportTarget, error) {
	inst, err := c.describe(ctx)
	if err != nil {
		return infra.ImportTarget{}, err
	}
	if inst == nil {
		return infra.ImportTarget{}, fmt.Errorf("no EC2 instance tagged Name=%s to import", c.name())
	}
	return infra.ImportTarget{Address: instanceAddress, ID: awssdk.ToString(inst.InstanceId)}, nil
}

func (c *Compute) Existing(ctx context.Context) (*infra.ComputeData, error) {
	ip, err := c.tf.OutputValue(ctx, "public_ip")
	if err != nil {
		inst, derr := c.describe(ctx)
		if derr != nil {
			return nil, derr
		}
		if inst == nil {
			return nil, fmt.Errorf("no EC2 instance tagged Name=%s", c.name())
		}
		ip = awssdk.ToString(inst.PublicIpAddress)
		if ip == "" {
			return nil, fmt.Errorf("EC2 instance %s reports no public IP", c.name())
		}
	}
	return c.persist(ip)
}

func (c *Compute) persist(publicIP string) (*infra.ComputeData, error) {
	a := c.cfg.AWS
	data := &infra.ComputeData{
		Provider:     infra.ProviderAWS,
		PublicIP:     publicIP,
		SSHUser:      a.SSHUser,
		SSHKeyPath:   a.SSHKeyPath,
		InstanceName: c.name(),
	}
	if err := c.store.SaveCompute(data); err != nil {
		return nil, err
	}
	return data, nil
}
