package offsite

import (
	"context"
	"fmt"

	"vault-backup/internal/config"
	"vault-backup/internal/vb"
)

// NewStoreFromConfig creates an offsite store based on the config type.
// It returns nil with no error when mirroring is disabled.
// S3 credentials fall back to the restic AWS settings when set.
func NewStoreFromConfig(ctx context.Context, cfg config.OffsiteConfig, aws config.AWSConfig) (vb.Offsite, error) {
	name := cfg.Name
	if name == "" {
		name = cfg.Type
	}
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "memory":
		return NewMemoryStore(name), nil
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem offsite requires fs_root to be set")
		}
		store, err := NewFileSystemStore(name, cfg.FSRoot)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "s3":
		region := cfg.S3Region
		if region == "" {
			region = aws.Region
		}
		store, err := NewS3Store(ctx, name, S3Options{
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Region:          region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     aws.AccessKeyID,
			SecretAccessKey: aws.SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown offsite type: %s", cfg.Type)
	}
}
