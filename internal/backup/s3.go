package backup

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3API is the subset of *s3.Client used here.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Destination uploads exports to an S3-compatible bucket. Each export
// overwrites <prefix>/latest.jsonl; when Snapshots is set a timestamped
// copy is written as well.
type S3Destination struct {
	client    s3API
	bucket    string
	prefix    string
	Snapshots bool
	now       func() time.Time
}

// NewS3Destination creates an S3 destination. If endpoint is non-empty,
// path-style addressing is enabled (for MinIO and similar).
func NewS3Destination(ctx context.Context, bucket, prefix, region, endpoint string) (*S3Destination, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3opts []func(*s3.Options)
	if endpoint != "" {
		s3opts = append(s3opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}
	return newS3Destination(s3.NewFromConfig(cfg, s3opts...), bucket, prefix), nil
}

func newS3Destination(client s3API, bucket, prefix string) *S3Destination {
	return &S3Destination{
		client: client,
		bucket: bucket,
		prefix: prefix,
		now:    time.Now,
	}
}

// Name is the s3:// URL of the destination prefix.
func (d *S3Destination) Name() string {
	return "s3://" + path.Join(d.bucket, d.prefix)
}

// Keys returns the object keys one Write uploads to.
func (d *S3Destination) Keys() []string {
	keys := []string{path.Join(d.prefix, "latest.jsonl")}
	if d.Snapshots {
		ts := d.now().UTC().Format("20060102T150405Z")
		keys = append(keys, path.Join(d.prefix, "snapshots", ts+".jsonl"))
	}
	return keys
}

func (d *S3Destination) Write(ctx context.Context, data []byte) error {
	for _, key := range d.Keys() {
		_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(d.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String("application/x-ndjson"),
		})
		if err != nil {
			return fmt.Errorf("s3 put %s: %w", key, err)
		}
	}
	return nil
}
