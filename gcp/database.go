package gcp

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"appwizard/common"
	"appwizard/database"
	"appwizard/infra"
)

const sqlInstanceAddress = "google_sql_database_instance.default"

// Database provisions a Cloud SQL Postgres instance and manages the
// application role on it.
type Database struct {
	cfg   *infra.Config
	paths infra.Paths
	tf    *infra.Terraform
	store *infra.Store
}

func NewDatabase(cfg *infra.Config, paths infra.Paths) (*Database, error) {
	if cfg.Provider != infra.ProviderGoogle {
		return nil, fmt.Errorf("gcp database provisioner constructed with provider %q", cfg.Provider)
	}
	return &Database{
		cfg:   cfg,
		paths: paths,
		tf:    infra.NewTerraform(paths.ModuleDir(infra.ProviderGoogle, "database")),
		store: infra.NewStore(paths, infra.ProviderGoogle),
	}, nil
}

func (d *Database) Kind() string { return "gcp/database" }

func (d *Database) name() string { return dbName(d.cfg) }

func (d *Database) varsFile() string {
	return d.paths.VarsFile(infra.ProviderGoogle, "database")
}

func (d *Database) rootPassword() (string, error) {
	if pw := common.Env("APPWIZARD_DB_ROOT_PASSWORD", ""); pw != "" {
		return common.ReadSecretMaybeFile(pw)
	}
	if pw := infra.ReadCredential(d.paths.CredentialsFile, "POSTGRES_PASSWORD"); pw != "" {
		return pw, nil
	}
	return "", fmt.Errorf("database root password not set (POSTGRES_PASSWORD in %s or APPWIZARD_DB_ROOT_PASSWORD)",
		d.paths.CredentialsFile)
}

func (d *Database) GenerateConfig(ctx context.Context) error {
	g := d.cfg.Google
	rootPw, err := d.rootPassword()
	if err != nil {
		return err
	}
	vars := map[string]any{
		"project":       g.ProjectID,
		"region":        g.Region,
		"instance_name": d.name(),
		"tier":          g.DatabaseTier,
		"database_name": d.cfg.Database.Name,
		"root_password": rootPw,
	}
	return infra.WriteVars(d.varsFile(), vars)
}

func (d *Database) CheckLive(ctx context.Context) bool {
	if !ensureAuth(ctx, d.cfg.Google) {
		return false
	}
	res, err := d.describe(ctx)
	if err != nil {
		common.Debugf("gcp/database: describe: %v", err)
		return false
	}
	return res.Get("state").String() == "RUNNABLE"
}

func (d *Database) describe(ctx context.Context) (gjson.Result, error) {
	return runGcloud(ctx, "sql", "instances", "describe", d.name(),
		"--project", d.cfg.Google.ProjectID)
}

func (d *Database) Provision(ctx context.Context) (*infra.DatabaseData, error) {
	if err := d.tf.Init(ctx); err != nil {
		return nil, err
	}
	if err := infra.ApplyWithImport(ctx, d.tf, d.varsFile(), applyConflicts, d.lookupImport); err != nil {
		return nil, err
	}
	connectionName, err := d.tf.OutputValue(ctx, "connection_name")
	if err != nil {
		return nil, err
	}
	publicIP, err := d.tf.OutputValue(ctx, "public_ip")
	if err != nil {
		return nil, err
	}
	return d.persist(connectionName, publicIP)
}

func (d *Database) lookupImport(ctx context.Context) (infra.ImportTarget, error) {
	// Cloud SQL imports by instance name within the configured project.
	if _, err := d.describe(ctx); err != nil {
		return infra.ImportTarget{}, err
	}
	return infra.ImportTarget{Address: sqlInstanceAddress, ID: d.name()}, nil
}

func (d *Database) Existing(ctx context.Context) (*infra.DatabaseData, error) {
	connectionName, cerr := d.tf.OutputValue(ctx, "connection_name")
	publicIP, perr := d.tf.OutputValue(ctx, "public_ip")
	if cerr != nil || perr != nil {
		res, derr := d.describe(ctx)
		if derr != nil {
			return nil, derr
		}
		connectionName = res.Get("connectionName").String()
		publicIP = res.Get("ipAddresses.0.ipAddress").String()
		if publicIP == "" {
			return nil, fmt.Errorf("cloud sql instance %s reports no public IP", d.name())
		}
	}
	return d.persist(connectionName, publicIP)
}

// persist saves the infra record and rewrites the shared credentials file's
// connection string.
func (d *Database) persist(connectionName, publicIP string) (*infra.DatabaseData, error) {
	data := &infra.DatabaseData{
		Provider:       infra.ProviderGoogle,
		ConnectionName: connectionName,
		PublicIP:       publicIP,
	}
	if err := d.store.SaveDatabase(data); err != nil {
		return nil, err
	}
	rootPw, err := d.rootPassword()
	if err != nil {
		return nil, err
	}
	dsn := database.BuildDSN(data.HostPort(), "postgres", rootPw, d.cfg.Database.Name, "")
	if err := infra.UpdateCredentials(d.paths.CredentialsFile, map[string]string{
		"DATABASE_URL": dsn,
	}); err != nil {
		return nil, err
	}
	return data, nil
}

// UserExists checks the application role, preferring a direct SQL connection
// and falling back to the provider CLI: either channel can be blocked by
// firewalls or API enablement that only surfaces at call time.
func (d *Database) UserExists(ctx context.Context, data *infra.DatabaseData) (bool, error) {
	rootPw, err := d.rootPassword()
	if err != nil {
		return false, err
	}
	dsn := database.BuildDSN(data.HostPort(), "postgres", rootPw, d.cfg.Database.Name, "")
	exists, sqlErr := database.UserExists(ctx, dsn, d.cfg.Database.AppUser)
	if sqlErr == nil {
		return exists, nil
	}
	common.Warnf("gcp/database: direct SQL check failed (%v), falling back to gcloud", sqlErr)

	users, err := runGcloud(ctx, "sql", "users", "list",
		"--instance", d.name(), "--project", d.cfg.Google.ProjectID)
	if err != nil {
		return false, err
	}
	for _, u := range users.Array() {
		if u.Get("name").String() == d.cfg.Database.AppUser {
			return true, nil
		}
	}
	return false, nil
}

func (d *Database) CreateUser(ctx context.Context, data *infra.DatabaseData) error {
	appPw, err := d.appPassword()
	if err != nil {
		return err
	}
	rootPw, err := d.rootPassword()
	if err != nil {
		return err
	}
	dsn := database.BuildDSN(data.HostPort(), "postgres", rootPw, d.cfg.Database.Name, "")
	sqlErr := database.CreateUser(ctx, dsn, d.cfg.Database.AppUser, appPw)
	if sqlErr == nil {
		return nil
	}
	common.Warnf("gcp/database: direct SQL create failed (%v), falling back to gcloud", sqlErr)

	_, err = runGcloud(ctx, "sql", "users", "create", d.cfg.Database.AppUser,
		"--instance", d.name(), "--password", appPw,
		"--project", d.cfg.Google.ProjectID)
	return err
}

// appPassword returns the application role's password, generating and
// persisting one on first use.
func (d *Database) appPassword() (string, error) {
	if pw := infra.ReadCredential(d.paths.CredentialsFile, "APP_DB_PASSWORD"); pw != "" {
		return pw, nil
	}
	pw := uuid.NewString()
	if err := infra.UpdateCredentials(d.paths.CredentialsFile, map[string]string{
		"APP_DB_PASSWORD": pw,
	}); err != nil {
		return "", err
	}
	return pw, nil
}
