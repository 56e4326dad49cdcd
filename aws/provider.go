// Package aws implements the AWS provisioners: EFS storage, RDS Postgres,
// and an EC2 host. Live state and import lookups go through the AWS SDK;
// provisioning goes through terraform with import-on-conflict recovery.
package aws

import (
	"context"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"appwizard/common"
	"appwizard/infra"
)

// conflict signatures the AWS APIs emit through terraform's stderr
var applyConflicts = infra.SubstringClassifier(
	"FileSystemAlreadyExists",
	"DBInstanceAlreadyExists",
	"InvalidPermission.Duplicate",
	"EntityAlreadyExists",
	"already exists",
)

func loadConfig(ctx context.Context, region string) (awssdk.Config, error) {
	return config.LoadDefaultConfig(ctx, config.WithRegion(region))
}

// ensureAuth verifies the default credential chain actually works. STS is the
// cheapest universal probe. False means "not ready" to the reconciler.
func ensureAuth(ctx context.Context, region string) bool {
	cfg, err := loadConfig(ctx, region)
	if err != nil {
		common.Warnf("aws: load credentials: %v", err)
		return false
	}
	if _, err := sts.NewFromConfig(cfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{}); err != nil {
		common.Warnf("aws: credential check failed: %v", err)
		return false
	}
	return true
}

func storageName(cfg *infra.Config) string { return cfg.Project + "-efs" }
func dbName(cfg *infra.Config) string      { return cfg.Project + "-db" }
func computeName(cfg *infra.Config) string { return cfg.Project + "-vm" }
