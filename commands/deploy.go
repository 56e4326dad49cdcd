package commands

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"appwizard/common"
	"appwizard/infra"
)

func DeployCommand() *cli.Command {
	return &cli.Command{
		Name:  "deploy",
		Usage: "Reconcile prod infrastructure: storage, then database, then compute",
		Action: func(c *cli.Context) error {
			e, err := loadEnv(c)
			if err != nil {
				return err
			}
			storageP, databaseP, computeP, err := e.provisioners()
			if err != nil {
				return err
			}
			ctx := c.Context
			confirm := e.confirm.Confirm

			storage, err := infra.EnsureResource[*infra.StorageData](ctx, storageP, confirm)
			if err != nil {
				return deployErr("storage", err)
			}
			if err := reconcileVolumes(c, e, storageP, storage); err != nil {
				return deployErr("storage", err)
			}

			db, err := infra.EnsureResource[*infra.DatabaseData](ctx, databaseP, confirm)
			if err != nil {
				return deployErr("database", err)
			}
			if err := ensureAppUser(c, e, databaseP, db); err != nil {
				return deployErr("database", err)
			}

			comp, err := infra.EnsureResource[*infra.ComputeData](ctx, computeP, confirm)
			if err != nil {
				return deployErr("compute", err)
			}

			fmt.Fprintf(c.App.Writer, "\nDeployment summary (%s)\n", e.cfg.Provider)
			fmt.Fprintf(c.App.Writer, "  storage   %s  mount %s\n", infra.StateReady, storage.MountAddress())
			fmt.Fprintf(c.App.Writer, "  database  %s  host %s\n", infra.StateReady, db.HostPort())
			fmt.Fprintf(c.App.Writer, "  compute   %s  ssh %s@%s\n", infra.StateReady, comp.SSHUser, comp.PublicIP)
			return nil
		},
	}
}

func deployErr(phase string, err error) error {
	if errors.Is(err, infra.ErrAborted) {
		return cli.Exit(fmt.Sprintf("deploy: %s phase aborted by operator", phase), 1)
	}
	return fmt.Errorf("deploy: %s phase: %w", phase, err)
}

// reconcileVolumes is the storage post-phase: report compose volume drift
// against the live mount, rewrite on confirmation, then probe the mount from
// a throwaway container. The probe is advisory.
func reconcileVolumes(c *cli.Context, e *env, p infra.StorageProvisioner, data *infra.StorageData) error {
	ctx := c.Context
	drifted, err := p.CheckDrift(ctx, data)
	if err != nil {
		return err
	}
	if len(drifted) > 0 {
		for _, d := range drifted {
			common.Warnf("volume %s drifts from the provisioned mount: %s", d.VolumeName, d.Reason())
		}
		if e.confirm.Confirm(fmt.Sprintf("Rewrite %d compose volume(s) to match the provisioned mount?", len(drifted))) {
			if err := p.FixDrift(ctx, data); err != nil {
				return err
			}
			common.Infof("compose volumes rewritten in %s", e.paths.ComposeFile)
		} else {
			common.Warnf("compose volumes left as-is; the stack may not mount the provisioned storage")
		}
	}
	if err := p.ProbeMount(ctx, data); err != nil {
		common.Warnf("mount probe failed (continuing): %v", err)
	} else {
		common.Infof("mount probe succeeded against %s", data.MountAddress())
	}
	return nil
}

// ensureAppUser is the database post-phase: make sure the application role
// exists on the provisioned instance.
func ensureAppUser(c *cli.Context, e *env, p infra.DatabaseProvisioner, data *infra.DatabaseData) error {
	ctx := c.Context
	user := e.cfg.Database.AppUser
	exists, err := p.UserExists(ctx, data)
	if err != nil {
		return fmt.Errorf("check role %s: %v", user, err)
	}
	if exists {
		common.Infof("database role %s already exists", user)
		return nil
	}
	if !e.confirm.Confirm(fmt.Sprintf("Create database role %s?", user)) {
		return infra.ErrAborted
	}
	if err := p.CreateUser(ctx, data); err != nil {
		return fmt.Errorf("create role %s: %v", user, err)
	}
	common.Infof("database role %s created", user)
	return nil
}
