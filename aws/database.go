package aws

import (
	"context"
	"fmt"
	"strings"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/google/uuid"

	"appwizard/common"
	"appwizard/database"
	"appwizard/infra"
)

const rdsAddress = "aws_db_instance.default"

// Database provisions an RDS Postgres instance and manages the application
// role on it. RDS has no user-management API, so role work is SQL only.
type Database struct {
	cfg   *infra.Config
	paths infra.Paths
	tf    *infra.Terraform
	store *infra.Store
}

func NewDatabase(cfg *infra.Config, paths infra.Paths) (*Database, error) {
	if cfg.Provider != infra.ProviderAWS {
		return nil, fmt.Errorf("aws database provisioner constructed with provider %q", cfg.Provider)
	}
	return &Database{
		cfg:   cfg,
		paths: paths,
		tf:    infra.NewTerraform(paths.ModuleDir(infra.ProviderAWS, "database")),
		store: infra.NewStore(paths, infra.ProviderAWS),
	}, nil
}

func (d *Database) Kind() string { return "aws/database" }

func (d *Database) name() string { return dbName(d.cfg) }

func (d *Database) varsFile() string {
	return d.paths.VarsFile(infra.ProviderAWS, "database")
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
	a := d.cfg.AWS
	rootPw, err := d.rootPassword()
	if err != nil {
		return err
	}
	vars := map[string]any{
		"region":             a.Region,
		"identifier":         d.name(),
		"instance_class":     a.DBInstanceClass,
		"subnet_id":          a.SubnetID,
		"security_group_ids": a.SecurityGroupIDs,
		"database_name":      d.cfg.Database.Name,
		"root_password":      rootPw,
	}
	return infra.WriteVars(d.varsFile(), vars)
}

func (d *Database) CheckLive(ctx context.Context) bool {
	if !ensureAuth(ctx, d.cfg.AWS.Region) {
		return false
	}
	inst, err := d.describe(ctx)
	if err != nil {
		common.Debugf("aws/database: describe: %v", err)
		return false
	}
	return inst != nil && awssdk.ToString(inst.DBInstanceStatus) == "available"
}

// describe finds the instance by identifier. Nil without error means the
// identifier is unused; RDS reports that case as DBInstanceNotFound.
func (d *Database) describe(ctx context.Context) (*rdstypes.DBInstance, error) {
	cfg, err := loadConfig(ctx, d.cfg.AWS.Region)
	if err != nil {
		return nil, err
	}
	out, err := rds.NewFromConfig(cfg).DescribeDBInstances(ctx, &rds.DescribeDBInstancesInput{
		DBInstanceIdentifier: awssdk.String(d.name()),
	})
	if err != nil {
		if strings.Contains(err.Error(), "DBInstanceNotFound") {
			return nil, nil
		}
		return nil, fmt.Errorf("describe RDS instance %s: %v", d.name(), err)
	}
	if len(out.DBInstances) == 0 {
		return nil, nil
	}
	return &out.DBInstances[0], nil
}

func (d *Database) Provision(ctx context.Context) (*infra.DatabaseData, error) {
	if err := d.tf.Init(ctx); err != nil {
		return nil, err
	}
	if err := infra.ApplyWithImport(ctx, d.tf, d.varsFile(), applyConflicts, d.lookupImport); err != nil {
		return nil, err
	}
	endpoint, err := d.tf.OutputValue(ctx, "endpoint")
	if err != nil {
		return nil, err
	}
	// RDS endpoints come back as host:port.
	host, port := splitEndpoint(endpoint)
	return d.persist(host, port)
}

func (d *Database) lookupImport(ctx context.Context) (infra.ImportTarget, error) {
	inst, err := d.describe(ctx)
	if err != nil {
		return infra.ImportTarget{}, err
	}
	if inst == nil {
		return infra.ImportTarget{}, fmt.Errorf("no RDS instance named %s to import", d.name())
	}
	return infra.ImportTarget{Address: rdsAddress, ID: d.name()}, nil
}

func (d *Database) Existing(ctx context.Context) (*infra.DatabaseData, error) {
	inst, err := d.describe(ctx)
	if err != nil {
		return nil, err
	}
	if inst == nil || inst.Endpoint == nil {
		return nil, fmt.Errorf("RDS instance %s has no endpoint yet", d.name())
	}
	host := awssdk.ToString(inst.Endpoint.Address)
	port := int(awssdk.ToInt32(inst.Endpoint.Port))
	return d.persist(host, port)
}

// persist saves the infra record and rewrites the shared credentials file's
// connection string.
func (d *Database) persist(endpoint string, port int) (*infra.DatabaseData, error) {
	data := &infra.DatabaseData{
		Provider: infra.ProviderAWS,
		Endpoint: endpoint,
		Port:     port,
	}
	if err := d.store.SaveDatabase(data); err != nil {
		return nil, err
	}
	rootPw, err := d.rootPassword()
	if err != nil {
		return nil, err
	}
	dsn := database.BuildDSN(data.HostPort(), "postgres", rootPw, d.cfg.Database.Name, "require")
	if err := infra.UpdateCredentials(d.paths.CredentialsFile, map[string]string{
		"DATABASE_URL": dsn,
	}); err != nil {
		return nil, err
	}
	return data, nil
}

// connect-style helper: RDS enforces TLS on most parameter groups but not
// all, so try sslmode=require first and retry without it.
func (d *Database) withDSN(ctx context.Context, data *infra.DatabaseData, fn func(dsn string) error) error {
	rootPw, err := d.rootPassword()
	if err != nil {
		return err
	}
	modes := []string{"require", "disable"}
	var lastErr error
	for _, mode := range modes {
		dsn := database.BuildDSN(data.HostPort(), "postgres", rootPw, d.cfg.Database.Name, mode)
		if lastErr = fn(dsn); lastErr == nil {
			return nil
		}
		common.Debugf("aws/database: sslmode=%s attempt failed: %v", mode, lastErr)
	}
	return lastErr
}

func (d *Database) UserExists(ctx context.Context, data *infra.DatabaseData) (bool, error) {
	var exists bool
	err := d.withDSN(ctx, data, func(dsn string) error {
		var e error
		exists, e = database.UserExists(ctx, dsn, d.cfg.Database.AppUser)
		return e
	})
	return exists, err
}

func (d *Database) CreateUser(ctx context.Context, data *infra.DatabaseData) error {
	appPw, err := d.appPassword()
	if err != nil {
		return err
	}
	return d.withDSN(ctx, data, func(dsn string) error {
		return database.CreateUser(ctx, dsn, d.cfg.Database.AppUser, appPw)
	})
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

func splitEndpoint(endpoint string) (string, int) {
	host, portStr, ok := strings.Cut(endpoint, ":")
	if !ok {
		return endpoint, 0
	}
	port := 0
	fmt.Sscanf(portStr, "%d", &port)
	return host, port
}
