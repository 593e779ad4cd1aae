package publish

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"eventphoto/internal/photo"
)

// S3Options configures an S3 publisher.
type S3Options struct {
	Bucket          string
	Prefix          string // prepended to every key
	Region          string
	Endpoint        string // S3-compatible endpoint; enables path-style addressing
	AccessKeyID     string // static credentials; empty uses the default chain
	SecretAccessKey string
}

type s3Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type s3BucketAPI interface {
	HeadBucket(ctx context.Context, input *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Publisher uploads objects to an S3 bucket with the multipart upload manager.
type S3Publisher struct {
	name     string
	bucket   string
	prefix   string
	uploader s3Uploader
	client   s3BucketAPI
}

// NewS3Publisher loads AWS configuration and builds the S3 client.
func NewS3Publisher(ctx context.Context, name string, opts S3Options) (*S3Publisher, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 publisher requires a bucket")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Publisher(name, opts.Bucket, opts.Prefix, manager.NewUploader(client), client), nil
}

func newS3Publisher(name, bucket, prefix string, uploader s3Uploader, client s3BucketAPI) *S3Publisher {
	return &S3Publisher{
		name:     name,
		bucket:   bucket,
		prefix:   prefix,
		uploader: uploader,
		client:   client,
	}
}

func (p *S3Publisher) Name() string {
	return p.name
}

// PutObject uploads r to <prefix>/<key> in the bucket.
func (p *S3Publisher) PutObject(ctx context.Context, key string, r io.Reader, size int64) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(p.objectKey(key)),
		Body:          r,
		ContentLength: aws.Int64(size),
	}
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		input.ContentType = aws.String(ct)
	}
	if _, err := p.uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("uploading %s: %w", key, err)
	}
	return nil
}

// ValidateSetup checks that the bucket exists and is reachable.
func (p *S3Publisher) ValidateSetup(ctx context.Context) error {
	if _, err := p.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(p.bucket)}); err != nil {
		return fmt.Errorf("bucket %s not accessible: %w", p.bucket, err)
	}
	return nil
}

func (p *S3Publisher) objectKey(key string) string {
	if p.prefix == "" {
		return key
	}
	return path.Join(p.prefix, key)
}

// Compile-time check that S3Publisher implements photo.Publisher interface
var _ photo.Publisher = (*S3Publisher)(nil)
