package main

import (
	"os"

	"github.com/urfave/cli/v2"

	"appwizard/commands"
	"appwizard/common"
)

func main() {
	app := &cli.App{
		Name:  "appwizard",
		Usage: "scaffold, run, and deploy a compose-based project",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "root",
				Value: ".",
				Usage: "project root directory",
			},
			&cli.StringFlag{
				Name:  "config",
				Value: "appwizard.yaml",
				Usage: "project configuration file (relative to --root)",
			},
			&cli.StringFlag{
				Name:  "compose-file",
				Usage: "compose file override (default: <root>/docker-compose.yml)",
			},
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "answer yes to every confirmation prompt",
			},
		},
		Before: func(c *cli.Context) error {
			common.SetupLogging()
			return nil
		},
		Commands: []*cli.Command{
			commands.OrderCommand(),
			commands.UpCommand(),
			commands.DeployCommand(),
			commands.StatusCommand(),
			commands.DoctorCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		common.Fatalf("%v", err)
	}
}
