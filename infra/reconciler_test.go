package infra

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeApplier scripts a sequence of apply outcomes and records imports.
type fakeApplier struct {
	applyErrs []error
	applies   int
	imported  []string
	importErr error
}

func (f *fakeApplier) Apply(ctx context.Context, varsFile string) error {
	var err error
	if f.applies < len(f.applyErrs) {
		err = f.applyErrs[f.applies]
	}
	f.applies++
	return err
}

func (f *fakeApplier) Import(ctx context.Context, varsFile, address, id string) error {
	f.imported = append(f.imported, address+"="+id)
	return f.importErr
}

var classify = SubstringClassifier("alreadyExists", "Error 409")

func lookupOK(ctx context.Context) (ImportTarget, error) {
	return ImportTarget{Address: "res.default", ID: "live-123"}, nil
}

func TestApplyWithImportCleanApply(t *testing.T) {
	ap := &fakeApplier{}
	require.NoError(t, ApplyWithImport(context.Background(), ap, "vars.json", classify, lookupOK))
	assert.Equal(t, 1, ap.applies)
	assert.Empty(t, ap.imported)
}

func TestApplyWithImportRecoversConflict(t *testing.T) {
	ap := &fakeApplier{applyErrs: []error{
		&ApplyError{Stderr: "googleapi: Error 409: alreadyExists", Err: errors.New("exit status 1")},
		nil,
	}}
	require.NoError(t, ApplyWithImport(context.Background(), ap, "vars.json", classify, lookupOK))
	assert.Equal(t, 2, ap.applies)
	assert.Equal(t, []string{"res.default=live-123"}, ap.imported)
}

func TestApplyWithImportFatalFailure(t *testing.T) {
	ap := &fakeApplier{applyErrs: []error{
		&ApplyError{Stderr: "quota exceeded", Err: errors.New("exit status 1")},
	}}
	err := ApplyWithImport(context.Background(), ap, "vars.json", classify, lookupOK)
	require.Error(t, err)
	assert.Equal(t, 1, ap.applies)
	assert.Empty(t, ap.imported)
}

func TestApplyWithImportSecondFailureIsFatal(t *testing.T) {
	// conflict, import succeeds, but the re-apply conflicts again: no third try
	conflict := &ApplyError{Stderr: "Error 409", Err: errors.New("exit status 1")}
	ap := &fakeApplier{applyErrs: []error{conflict, conflict}}
	err := ApplyWithImport(context.Background(), ap, "vars.json", classify, lookupOK)
	require.Error(t, err)
	assert.Equal(t, 2, ap.applies)
	assert.Len(t, ap.imported, 1)
}

func TestApplyWithImportLookupFailure(t *testing.T) {
	ap := &fakeApplier{applyErrs: []error{
		&ApplyError{Stderr: "alreadyExists", Err: errors.New("exit status 1")},
	}}
	err := ApplyWithImport(context.Background(), ap, "vars.json", classify,
		func(ctx context.Context) (ImportTarget, error) {
			return ImportTarget{}, errors.New("describe failed")
		})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookup failed")
	assert.Empty(t, ap.imported)
}

func TestApplyWithImportImportFailure(t *testing.T) {
	ap := &fakeApplier{
		applyErrs: []error{&ApplyError{Stderr: "alreadyExists", Err: errors.New("exit status 1")}},
		importErr: errors.New("state locked"),
	}
	err := ApplyWithImport(context.Background(), ap, "vars.json", classify, lookupOK)
	require.Error(t, err)
	assert.Equal(t, 1, ap.applies)
}

func TestSubstringClassifierCaseInsensitive(t *testing.T) {
	c := SubstringClassifier("AlreadyExists")
	assert.Equal(t, ClassConflict, c("error: resource ALREADYEXISTS in project"))
	assert.Equal(t, ClassFatal, c("permission denied"))
	assert.Equal(t, ClassFatal, c(""))
}

// fakeProvisioner scripts EnsureResource's collaborator.
type fakeProvisioner struct {
	live         bool
	genErr       error
	provisioned  bool
	existingRead bool
}

func (f *fakeProvisioner) Kind() string { return "fake/storage" }

func (f *fakeProvisioner) GenerateConfig(ctx context.Context) error { return f.genErr }

func (f *fakeProvisioner) CheckLive(ctx context.Context) bool { return f.live }

func (f *fakeProvisioner) Provision(ctx context.Context) (string, error) {
	f.provisioned = true
	return "provisioned-data", nil
}

func (f *fakeProvisioner) Existing(ctx context.Context) (string, error) {
	f.existingRead = true
	return "existing-data", nil
}

func yes(string) bool { return true }
func no(string) bool  { return false }

func TestEnsureResourceAlreadyLive(t *testing.T) {
	p := &fakeProvisioner{live: true}
	data, err := EnsureResource[string](context.Background(), p, no)
	require.NoError(t, err)
	assert.Equal(t, "existing-data", data)
	assert.True(t, p.existingRead)
	assert.False(t, p.provisioned)
}

func TestEnsureResourceProvisionsAfterConfirm(t *testing.T) {
	p := &fakeProvisioner{live: false}
	data, err := EnsureResource[string](context.Background(), p, yes)
	require.NoError(t, err)
	assert.Equal(t, "provisioned-data", data)
	assert.True(t, p.provisioned)
	assert.False(t, p.existingRead)
}

func TestEnsureResourceAborts(t *testing.T) {
	p := &fakeProvisioner{live: false}
	_, err := EnsureResource[string](context.Background(), p, no)
	require.ErrorIs(t, err, ErrAborted)
	assert.False(t, p.provisioned)
}

func TestEnsureResourceGenerateConfigFailureIsFatal(t *testing.T) {
	p := &fakeProvisioner{genErr: fmt.Errorf("missing credential")}
	_, err := EnsureResource[string](context.Background(), p, yes)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generate config")
	assert.False(t, p.provisioned)
}
