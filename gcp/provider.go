// Package gcp implements the Google Cloud provisioners: Filestore storage,
// Cloud SQL Postgres, and a Compute Engine host. The control plane is reached
// through the gcloud CLI in JSON output mode; provisioning goes through
// terraform with import-on-conflict recovery.
package gcp

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/tidwall/gjson"

	"appwizard/common"
	"appwizard/infra"
)

// conflict signatures the Google APIs emit through terraform's stderr
var applyConflicts = infra.SubstringClassifier(
	"alreadyExists",
	"already exists",
	"Error 409",
	"duplicate",
)

func runGcloud(ctx context.Context, args ...string) (gjson.Result, error) {
	args = append(args, "--format=json")
	cmd := exec.CommandContext(ctx, "gcloud", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	common.Debugf("gcloud: running gcloud %s", strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		return gjson.Result{}, fmt.Errorf("gcloud %s failed: %v\n%s",
			strings.Join(args[:min(2, len(args))], " "), err, strings.TrimSpace(stderr.String()))
	}
	common.LogCommandOutput("gcloud", stdout.Bytes())
	return gjson.ParseBytes(stdout.Bytes()), nil
}

// ensureAuth verifies an active gcloud session and, when a service account
// key is configured, re-authenticates non-interactively. False means the
// control plane is unusable, which callers treat as "not ready".
func ensureAuth(ctx context.Context, g *infra.GoogleConfig) bool {
	accounts, err := runGcloud(ctx, "auth", "list", "--filter=status:ACTIVE")
	if err == nil && len(accounts.Array()) > 0 {
		return true
	}
	if g.ServiceAccountKeyFile == "" {
		common.Warnf("gcp: no active gcloud session and no service account key configured")
		return false
	}
	if _, err := runGcloud(ctx, "auth", "activate-service-account", "--key-file", g.ServiceAccountKeyFile); err != nil {
		common.Warnf("gcp: service account activation failed: %v", err)
		return false
	}
	return true
}

func storageName(cfg *infra.Config) string { return cfg.Project + "-filestore" }
func dbName(cfg *infra.Config) string      { return cfg.Project + "-db" }
func computeName(cfg *infra.Config) string { return cfg.Project + "-vm" }
