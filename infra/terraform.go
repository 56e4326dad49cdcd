package infra

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/tidwall/gjson"

	"appwizard/common"
)

// ApplyError carries the provisioning tool's stderr so callers can classify
// the failure (conflict vs. fatal) by its wording.
type ApplyError struct {
	Stderr string
	Err    error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("terraform apply failed: %v", e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }

// Terraform runs the terraform binary against one module directory. All
// invocations are synchronous; a long-running apply blocks the CLI, which is
// the intended human-in-the-loop behavior.
type Terraform struct {
	Bin string
	Dir string
	Env []string
}

func NewTerraform(dir string) *Terraform {
	return &Terraform{Bin: "terraform", Dir: dir, Env: os.Environ()}
}

func (t *Terraform) run(ctx context.Context, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, t.Bin, args...)
	cmd.Dir = t.Dir
	cmd.Env = t.Env
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	common.Debugf("terraform: running %s %s (dir=%s)", t.Bin, strings.Join(args, " "), t.Dir)
	err := cmd.Run()
	common.LogCommandOutput("terraform", stdout.Bytes())
	return stdout.Bytes(), stderr.Bytes(), err
}

func (t *Terraform) Init(ctx context.Context) error {
	_, stderr, err := t.run(ctx, "init", "-input=false")
	if err != nil {
		return fmt.Errorf("terraform init failed: %v\n%s", err, strings.TrimSpace(string(stderr)))
	}
	return nil
}

// Apply runs apply -auto-approve against the vars file. Failures come back as
// *ApplyError so the reconciler can inspect stderr.
func (t *Terraform) Apply(ctx context.Context, varsFile string) error {
	_, stderr, err := t.run(ctx, "apply", "-auto-approve", "-input=false", "-var-file", varsFile)
	if err != nil {
		return &ApplyError{Stderr: string(stderr), Err: err}
	}
	return nil
}

// Import registers an out-of-band resource into the terraform state.
func (t *Terraform) Import(ctx context.Context, varsFile, address, id string) error {
	_, stderr, err := t.run(ctx, "import", "-input=false", "-var-file", varsFile, address, id)
	if err != nil {
		return fmt.Errorf("terraform import %s %s failed: %v\n%s",
			address, id, err, strings.TrimSpace(string(stderr)))
	}
	return nil
}

func (t *Terraform) Refresh(ctx context.Context, varsFile string) error {
	_, stderr, err := t.run(ctx, "refresh", "-input=false", "-var-file", varsFile)
	if err != nil {
		return fmt.Errorf("terraform refresh failed: %v\n%s", err, strings.TrimSpace(string(stderr)))
	}
	return nil
}

// Output returns the module's outputs as parsed JSON.
func (t *Terraform) Output(ctx context.Context) (gjson.Result, error) {
	stdout, stderr, err := t.run(ctx, "output", "-json")
	if err != nil {
		return gjson.Result{}, fmt.Errorf("terraform output failed: %v\n%s",
			err, strings.TrimSpace(string(stderr)))
	}
	return gjson.ParseBytes(stdout), nil
}

// OutputValue reads a single string output. An absent or empty output is an
// error: callers depend on these values.
func (t *Terraform) OutputValue(ctx context.Context, name string) (string, error) {
	out, err := t.Output(ctx)
	if err != nil {
		return "", err
	}
	value := out.Get(name + ".value").String()
	if value == "" {
		return "", fmt.Errorf("terraform output %q is empty", name)
	}
	return value, nil
}
