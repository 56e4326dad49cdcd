package infra

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"appwizard/common"
	"appwizard/compose"
)

// Resource lifecycle states, used for logging transitions. CONFLICT and
// IMPORTED are internal to ApplyWithImport.
const (
	StateNotReady = "NOT_READY"
	StateReady    = "READY"
	StateFailed   = "FAILED"
)

// ErrAborted means the operator declined a provisioning prompt.
var ErrAborted = errors.New("aborted by operator")

// FailureClass is the outcome of classifying a failed apply.
type FailureClass int

const (
	// ClassFatal aborts the enclosing deploy.
	ClassFatal FailureClass = iota
	// ClassConflict means the resource already exists out-of-band and can be
	// recovered by importing it into the tool's state.
	ClassConflict
)

// Classifier decides whether an apply failure is a recoverable already-exists
// conflict. One per adapter, so the tool-specific wording lives in one place.
type Classifier func(stderr string) FailureClass

// SubstringClassifier builds a case-insensitive already-exists matcher.
func SubstringClassifier(signatures ...string) Classifier {
	lowered := make([]string, len(signatures))
	for i, s := range signatures {
		lowered[i] = strings.ToLower(s)
	}
	return func(stderr string) FailureClass {
		haystack := strings.ToLower(stderr)
		for _, sig := range lowered {
			if strings.Contains(haystack, sig) {
				return ClassConflict
			}
		}
		return ClassFatal
	}
}

// Applier is the slice of the terraform runner ApplyWithImport needs;
// *Terraform satisfies it.
type Applier interface {
	Apply(ctx context.Context, varsFile string) error
	Import(ctx context.Context, varsFile, address, id string) error
}

// ImportTarget names the state address and live identifier for an import.
type ImportTarget struct {
	Address string
	ID      string
}

// ApplyWithImport is the self-healing apply at the heart of every adapter.
// The provisioning tool is not idempotent against resources created
// out-of-band; when apply fails with a known already-exists signature, the
// live identifier is looked up, imported into the tool's state, and the apply
// retried once. Any other failure, and any failure of the retry, is fatal.
func ApplyWithImport(ctx context.Context, ap Applier, varsFile string, classify Classifier, lookup func(ctx context.Context) (ImportTarget, error)) error {
	err := ap.Apply(ctx, varsFile)
	if err == nil {
		return nil
	}

	var applyErr *ApplyError
	if !errors.As(err, &applyErr) {
		return err
	}
	if classify(applyErr.Stderr) != ClassConflict {
		common.Errorf("apply failed:\n%s", strings.TrimSpace(applyErr.Stderr))
		return err
	}

	common.Warnf("apply reported an already-exists conflict; importing the live resource")
	target, lerr := lookup(ctx)
	if lerr != nil {
		return fmt.Errorf("conflict recovery: live resource lookup failed: %v", lerr)
	}
	if ierr := ap.Import(ctx, varsFile, target.Address, target.ID); ierr != nil {
		return fmt.Errorf("conflict recovery: %v", ierr)
	}
	common.Infof("imported %s as %s, re-applying", target.ID, target.Address)
	return ap.Apply(ctx, varsFile)
}

// Provisioner is the contract every {provider, resource-kind} adapter
// satisfies. T is the per-kind infra data record. CheckLive returns plain
// readiness: an unusable auth session or a control-plane error counts as not
// ready, which the caller resolves by prompting to provision.
type Provisioner[T any] interface {
	Kind() string
	GenerateConfig(ctx context.Context) error
	CheckLive(ctx context.Context) bool
	Provision(ctx context.Context) (T, error)
	Existing(ctx context.Context) (T, error)
}

// ConfirmFunc asks the operator before a provisioning step.
type ConfirmFunc func(question string) bool

// EnsureResource drives one resource to READY: generate the declarative
// config, check live state, then either read back the existing outputs or
// (after confirmation) provision. Returns ErrAborted when the operator
// declines.
func EnsureResource[T any](ctx context.Context, p Provisioner[T], confirm ConfirmFunc) (T, error) {
	var zero T

	if err := p.GenerateConfig(ctx); err != nil {
		return zero, fmt.Errorf("%s: generate config: %v", p.Kind(), err)
	}

	if p.CheckLive(ctx) {
		common.Infof("%s: %s, reading existing outputs", p.Kind(), StateReady)
		data, err := p.Existing(ctx)
		if err != nil {
			return zero, fmt.Errorf("%s: fetch existing data: %v", p.Kind(), err)
		}
		return data, nil
	}

	common.Infof("%s: %s", p.Kind(), StateNotReady)
	if !confirm(fmt.Sprintf("Provision %s now?", p.Kind())) {
		return zero, ErrAborted
	}

	data, err := p.Provision(ctx)
	if err != nil {
		common.Errorf("%s: %s: %v", p.Kind(), StateFailed, err)
		return zero, err
	}
	common.Infof("%s: %s", p.Kind(), StateReady)
	return data, nil
}

// StorageProvisioner adds the storage-only reconciliation surface: compose
// volume drift against the live mount endpoint, and the best-effort mount
// probe.
type StorageProvisioner interface {
	Provisioner[*StorageData]
	CheckDrift(ctx context.Context, data *StorageData) ([]compose.VolumeDiscrepancy, error)
	FixDrift(ctx context.Context, data *StorageData) error
	ProbeMount(ctx context.Context, data *StorageData) error
}

// DatabaseProvisioner adds application-role management.
type DatabaseProvisioner interface {
	Provisioner[*DatabaseData]
	UserExists(ctx context.Context, data *DatabaseData) (bool, error)
	CreateUser(ctx context.Context, data *DatabaseData) error
}

// ComputeProvisioner is the plain contract; compute has no extras.
type ComputeProvisioner interface {
	Provisioner[*ComputeData]
}
