package commands

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"appwizard/common"
	"appwizard/compose"
	"appwizard/utils"
)

func UpCommand() *cli.Command {
	return &cli.Command{
		Name:  "up",
		Usage: "Bring the dev stack up service-by-service in dependency order",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "project",
				Usage: "compose project name (default: the root directory's name)",
			},
			&cli.DurationFlag{
				Name:  "health-timeout",
				Value: 2 * time.Minute,
				Usage: "how long to wait for each service's healthcheck",
			},
		},
		Action: func(c *cli.Context) error {
			paths := loadPaths(c)
			project := c.String("project")
			if project == "" {
				abs, err := filepath.Abs(paths.Root)
				if err != nil {
					return err
				}
				project = filepath.Base(abs)
			}

			doc, err := compose.Load(paths.ComposeFile)
			if err != nil {
				return err
			}
			order, err := doc.DeploymentOrder()
			if err != nil {
				return err
			}
			common.Infof("up: starting %d services in order: %s",
				len(order), strings.Join(order, ", "))

			for _, name := range order {
				if err := composeUpService(c.Context, project, paths.ComposeFile, name); err != nil {
					return fmt.Errorf("up: start %s: %v", name, err)
				}
				svc := doc.Service(name)
				if svc != nil && svc.Healthcheck != nil {
					common.Infof("up: waiting for %s to report healthy", name)
					if err := utils.WaitHealthy(c.Context, project, name,
						5*time.Second, c.Duration("health-timeout")); err != nil {
						return err
					}
				}
				common.Infof("up: %s is up", name)
			}
			return nil
		},
	}
}

// composeUpService starts exactly one service. --no-deps keeps compose from
// re-deriving the order this tool already resolved.
func composeUpService(ctx context.Context, project, composeFile, service string) error {
	args := []string{"compose", "-p", project, "-f", composeFile,
		"up", "-d", "--no-deps", service}
	common.Debugf("up: running docker %s", strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, "docker", args...)
	out, err := cmd.CombinedOutput()
	common.LogCommandOutput("docker compose", out)
	if err != nil {
		return fmt.Errorf("docker compose up %s: %v\n%s", service, err,
			strings.TrimSpace(string(out)))
	}
	return nil
}
