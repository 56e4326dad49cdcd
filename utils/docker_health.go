package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"

	"appwizard/common"
)

// WaitHealthy polls the compose service's container until its declared
// healthcheck reports healthy (or, without a healthcheck, until it is
// running). Bounded by timeout; failure is reported, not fatal.
func WaitHealthy(ctx context.Context, project, service string, interval, timeout time.Duration) error {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return fmt.Errorf("health: docker client: %v", err)
	}
	defer cli.Close()

	deadline := time.Now().Add(timeout)
	var lastState string
	for time.Now().Before(deadline) {
		state, err := serviceHealth(ctx, cli, project, service)
		if err == nil && state == "healthy" {
			return nil
		}
		if err != nil {
			common.Debugf("health: %s/%s: %v", project, service, err)
		} else {
			lastState = state
			common.Debugf("health: %s/%s is %s", project, service, state)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	return fmt.Errorf("health: service %s not healthy within %s (last state: %s)",
		service, timeout, lastState)
}

func serviceHealth(ctx context.Context, cli *client.Client, project, service string) (string, error) {
	flt := filters.NewArgs()
	flt.Add("label", "com.docker.compose.project="+project)
	flt.Add("label", "com.docker.compose.service="+service)

	list, err := cli.ContainerList(ctx, container.ListOptions{All: true, Filters: flt})
	if err != nil {
		return "", err
	}
	if len(list) == 0 {
		return "", fmt.Errorf("no container yet")
	}

	info, err := cli.ContainerInspect(ctx, list[0].ID)
	if err != nil {
		return "", err
	}
	if info.State == nil {
		return "", fmt.Errorf("no state reported")
	}
	if info.State.Health != nil {
		return info.State.Health.Status, nil
	}
	// no healthcheck declared: running is as healthy as it gets
	if info.State.Running {
		return "healthy", nil
	}
	return info.State.Status, nil
}
