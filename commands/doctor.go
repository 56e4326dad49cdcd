package commands

import (
	"fmt"
	"os/exec"

	"github.com/docker/docker/client"
	"github.com/urfave/cli/v2"
)

// requiredTools is the external tool chain the other commands shell out to.
var requiredTools = []string{"git", "docker", "terraform", "gcloud", "aws"}

func DoctorCommand() *cli.Command {
	return &cli.Command{
		Name:  "doctor",
		Usage: "Verify the external tool chain and the Docker daemon",
		Action: func(c *cli.Context) error {
			failures := 0
			for _, tool := range requiredTools {
				path, err := exec.LookPath(tool)
				if err != nil {
					fmt.Fprintf(c.App.Writer, "  %-10s MISSING\n", tool)
					failures++
					continue
				}
				fmt.Fprintf(c.App.Writer, "  %-10s ok (%s)\n", tool, path)
			}

			if err := pingDocker(c); err != nil {
				fmt.Fprintf(c.App.Writer, "  %-10s UNREACHABLE (%v)\n", "daemon", err)
				failures++
			} else {
				fmt.Fprintf(c.App.Writer, "  %-10s ok\n", "daemon")
			}

			if failures > 0 {
				return cli.Exit(fmt.Sprintf("%d check(s) failed", failures), 1)
			}
			return nil
		},
	}
}

func pingDocker(c *cli.Context) error {
	dc, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return err
	}
	defer dc.Close()
	_, err = dc.Ping(c.Context)
	return err
}
