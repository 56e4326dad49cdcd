package commands

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"appwizard/compose"
)

func OrderCommand() *cli.Command {
	return &cli.Command{
		Name:  "order",
		Usage: "Print the resolved service deployment order",
		Action: func(c *cli.Context) error {
			paths := loadPaths(c)
			doc, err := compose.Load(paths.ComposeFile)
			if err != nil {
				return err
			}
			order, err := doc.DeploymentOrder()
			if err != nil {
				var unresolved *compose.UnresolvedError
				if errors.As(err, &unresolved) {
					return cli.Exit(err.Error(), 1)
				}
				return err
			}
			for i, name := range order {
				fmt.Fprintf(c.App.Writer, "%d. %s\n", i+1, name)
			}
			return nil
		},
	}
}
