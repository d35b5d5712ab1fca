// Package blob publishes stored contract files to S3 so clients can fetch
// them by public URL instead of going back through the API.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const uploadTimeout = 30 * time.Second

// Options configures the S3 target. AccessKey/SecretKey are optional; when
// empty the SDK's default credential chain applies.
type Options struct {
	Bucket    string
	Region    string
	KeyPrefix string
	AccessKey string
	SecretKey string
}

// Bucket uploads objects into one S3 bucket under a fixed key prefix.
type Bucket struct {
	client *s3.Client
	bucket string
	region string
	prefix string
}

// New builds an S3-backed bucket. The returned Bucket is safe for
// concurrent use.
func New(ctx context.Context, opts Options) (*Bucket, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("blob: bucket name required")
	}
	if opts.Region == "" {
		opts.Region = "ap-northeast-2"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("blob: loading aws config: %w", err)
	}

	return &Bucket{
		client: s3.NewFromConfig(cfg),
		bucket: opts.Bucket,
		region: opts.Region,
		prefix: strings.Trim(opts.KeyPrefix, "/"),
	}, nil
}

// Upload writes data under "{prefix}/{name}" with a public-read ACL and
// returns the object's public URL.
func (b *Bucket) Upload(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	key := objectKey(b.prefix, name)
	start := time.Now()
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		ACL:         types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", fmt.Errorf("blob: putting %s: %w", key, err)
	}

	url := publicURL(b.bucket, b.region, key)
	slog.Info("blob: object uploaded",
		"key", key,
		"bytes", len(data),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return url, nil
}

func objectKey(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

func publicURL(bucket, region, key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, region, key)
}
