// Package commands implements the CLI subcommands: order, up, deploy, status,
// and doctor. Each command loads the project environment (config, paths,
// prompts) and drives the compose and infra packages.
package commands

import (
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"appwizard/aws"
	"appwizard/common"
	"appwizard/gcp"
	"appwizard/infra"
)

// env is the per-invocation project environment assembled from the global
// flags. Commands that do not need the provider config (order, up, doctor)
// load paths only.
type env struct {
	cfg     *infra.Config
	paths   infra.Paths
	confirm *common.Confirmer
}

func loadPaths(c *cli.Context) infra.Paths {
	root := c.String("root")
	paths := infra.DefaultPaths(root)
	if f := c.String("compose-file"); f != "" {
		if !filepath.IsAbs(f) {
			f = filepath.Join(root, f)
		}
		paths.ComposeFile = f
	}
	return paths
}

func loadEnv(c *cli.Context) (*env, error) {
	paths := loadPaths(c)
	cfgPath := c.String("config")
	if !filepath.IsAbs(cfgPath) {
		cfgPath = filepath.Join(paths.Root, cfgPath)
	}
	cfg, err := infra.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	return &env{
		cfg:     cfg,
		paths:   paths,
		confirm: common.NewConfirmer(c.Bool("yes")),
	}, nil
}

// provisioners instantiates the provider's three adapters. The constructors
// re-check the provider field, so a mismatched config cannot cross-wire.
func (e *env) provisioners() (infra.StorageProvisioner, infra.DatabaseProvisioner, infra.ComputeProvisioner, error) {
	switch e.cfg.Provider {
	case infra.ProviderGoogle:
		st, err := gcp.NewStorage(e.cfg, e.paths)
		if err != nil {
			return nil, nil, nil, err
		}
		db, err := gcp.NewDatabase(e.cfg, e.paths)
		if err != nil {
			return nil, nil, nil, err
		}
		cp, err := gcp.NewCompute(e.cfg, e.paths)
		if err != nil {
			return nil, nil, nil, err
		}
		return st, db, cp, nil
	case infra.ProviderAWS:
		st, err := aws.NewStorage(e.cfg, e.paths)
		if err != nil {
			return nil, nil, nil, err
		}
		db, err := aws.NewDatabase(e.cfg, e.paths)
		if err != nil {
			return nil, nil, nil, err
		}
		cp, err := aws.NewCompute(e.cfg, e.paths)
		if err != nil {
			return nil, nil, nil, err
		}
		return st, db, cp, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown provider %q", e.cfg.Provider)
	}
}
