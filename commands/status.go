package commands

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"appwizard/infra"
)

func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Report live readiness of the provisioned resources",
		Action: func(c *cli.Context) error {
			e, err := loadEnv(c)
			if err != nil {
				return err
			}
			storageP, databaseP, computeP, err := e.provisioners()
			if err != nil {
				return err
			}

			fmt.Fprintf(c.App.Writer, "Provider: %s (project %s)\n", e.cfg.Provider, e.cfg.Project)
			notReady := 0
			notReady += printState(c, "storage", storageP.Kind(), storageP.CheckLive(c.Context))
			notReady += printState(c, "database", databaseP.Kind(), databaseP.CheckLive(c.Context))
			notReady += printState(c, "compute", computeP.Kind(), computeP.CheckLive(c.Context))
			if notReady > 0 {
				return cli.Exit(fmt.Sprintf("%d resource(s) not ready", notReady), 1)
			}
			return nil
		},
	}
}

func printState(c *cli.Context, label, kind string, ready bool) int {
	state := infra.StateReady
	rc := 0
	if !ready {
		state = infra.StateNotReady
		rc = 1
	}
	fmt.Fprintf(c.App.Writer, "  %-9s %-14s %s\n", label, kind, state)
	return rc
}
