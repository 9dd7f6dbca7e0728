package restic

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// AWSCredentials resolves S3 credentials for restic through the AWS SDK's
// default chain, so profiles, SSO and instance roles work as they do for the
// aws CLI. Static keys, when set, take precedence over the chain.
type AWSCredentials struct {
	Region          string
	Profile         string
	AccessKeyID     string
	SecretAccessKey string
}

var _ CredentialSource = AWSCredentials{}

// Env returns the AWS_* variables restic reads for s3: repositories.
func (a AWSCredentials) Env(ctx context.Context) ([]string, error) {
	var opts []func(*config.LoadOptions) error
	if a.Region != "" {
		opts = append(opts, config.WithRegion(a.Region))
	}
	if a.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(a.Profile))
	}
	if a.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(a.AccessKeyID, a.SecretAccessKey, "")))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	creds, err := cfg.Credentials.Retrieve(ctx)
	if err != nil {
		return nil, fmt.Errorf("retrieving aws credentials: %w", err)
	}

	env := []string{
		"AWS_ACCESS_KEY_ID=" + creds.AccessKeyID,
		"AWS_SECRET_ACCESS_KEY=" + creds.SecretAccessKey,
	}
	if creds.SessionToken != "" {
		env = append(env, "AWS_SESSION_TOKEN="+creds.SessionToken)
	}
	if cfg.Region != "" {
		env = append(env, "AWS_DEFAULT_REGION="+cfg.Region)
	}
	return env, nil
}
