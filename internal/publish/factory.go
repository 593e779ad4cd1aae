package publish

import (
	"context"
	"fmt"

	"eventphoto/internal/config"
	"eventphoto/internal/photo"
)

// NewPublisherFromConfig creates a Publisher implementation based on the publish config type.
// Targets with age recipients are wrapped in an AgePublisher.
func NewPublisherFromConfig(ctx context.Context, cfg config.PublishConfig) (photo.Publisher, error) {
	p, err := newTargetPublisher(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if len(cfg.AgeRecipients) == 0 {
		return p, nil
	}
	enc, err := NewAgePublisher(p, cfg.AgeRecipients)
	if err != nil {
		return nil, fmt.Errorf("publish target %s: %w", cfg.Name, err)
	}
	return enc, nil
}

func newTargetPublisher(ctx context.Context, cfg config.PublishConfig) (photo.Publisher, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryPublisher(cfg.Name), nil
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem publish target requires fs_root to be set")
		}
		p, err := NewFileSystemPublisher(cfg.Name, cfg.FSRoot)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "s3":
		p, err := NewS3Publisher(ctx, cfg.Name, S3Options{
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown publish type: %s", cfg.Type)
	}
}
