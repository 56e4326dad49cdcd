// Package utils holds the live probes: NFS mount verification through a
// throwaway Docker volume, SSH reachability, and compose healthcheck polling.
package utils

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
	"github.com/google/uuid"

	"appwizard/common"
	"appwizard/compose"
)

const probeImage = "alpine:3.20"

// ProbeNFSMount verifies the provisioned filesystem is actually mountable:
// create a volume bound to the live endpoint, run a minimal container that
// writes and re-reads one file through it, and clean everything up regardless
// of outcome. Callers treat a failure as a warning, not a gate.
func ProbeNFSMount(ctx context.Context, spec compose.MountSpec, timeout time.Duration) error {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return fmt.Errorf("probe: docker client: %v", err)
	}
	defer cli.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	suffix := strings.Split(uuid.NewString(), "-")[0]
	volName := "appwizard-probe-" + suffix

	if _, err := cli.VolumeCreate(ctx, volume.CreateOptions{
		Name:       volName,
		Driver:     "local",
		DriverOpts: spec.DriverOpts(),
	}); err != nil {
		return fmt.Errorf("probe: create volume: %v", err)
	}
	defer func() {
		if rerr := cli.VolumeRemove(context.Background(), volName, true); rerr != nil {
			common.Warnf("probe: failed to remove volume %s: %v", volName, rerr)
		}
	}()

	// best effort; the image may already be local
	if rc, perr := cli.ImagePull(ctx, probeImage, image.PullOptions{}); perr == nil {
		_, _ = io.Copy(io.Discard, rc)
		rc.Close()
	}

	script := "echo appwizard > /probe/.appwizard_probe && " +
		"grep -q appwizard /probe/.appwizard_probe && " +
		"rm -f /probe/.appwizard_probe"
	created, err := cli.ContainerCreate(ctx,
		&container.Config{Image: probeImage, Cmd: []string{"sh", "-c", script}},
		&container.HostConfig{Mounts: []mount.Mount{{
			Type:   mount.TypeVolume,
			Source: volName,
			Target: "/probe",
		}}},
		nil, nil, "appwizard-probe-"+suffix)
	if err != nil {
		return fmt.Errorf("probe: create container: %v", err)
	}
	defer func() {
		_ = cli.ContainerRemove(context.Background(), created.ID, container.RemoveOptions{Force: true})
	}()

	if err := cli.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("probe: start container: %v", err)
	}

	waitCh, errCh := cli.ContainerWait(ctx, created.ID, container.WaitConditionNotRunning)
	select {
	case status := <-waitCh:
		if status.StatusCode != 0 {
			return fmt.Errorf("probe: write/read through mount failed (exit %d)", status.StatusCode)
		}
		return nil
	case werr := <-errCh:
		return fmt.Errorf("probe: wait: %v", werr)
	case <-ctx.Done():
		return fmt.Errorf("probe: timed out after %s", timeout)
	}
}
