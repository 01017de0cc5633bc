// Package archive optionally uploads completed file transfers to S3 for
// long-term retention. A server run without archival configured gets a
// nil *Archiver, and every method tolerates that nil receiver the same
// way internal/metrics does (spec "SUPPLEMENTED FEATURES" 3. optional S3
// transfer archival).
package archive

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Config configures an Archiver.
type Config struct {
	Bucket         string
	Region         string
	Endpoint       string
	KeyPrefix      string
	ForcePathStyle bool
}

// Archiver uploads completed transfer files to S3.
type Archiver struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
}

// New constructs an Archiver from cfg. Returns a nil *Archiver, not an
// error, when cfg.Bucket is empty — the caller's archival toggle (spec
// "Open Questions" "archival toggle") is simply "configure a bucket or
// don't".
func New(ctx context.Context, cfg Config) (*Archiver, error) {
	if cfg.Bucket == "" {
		return nil, nil
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("archive: load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.BaseEndpoint = aws.String(cfg.Endpoint) })
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
	}

	return &Archiver{
		client:    s3.NewFromConfig(awsCfg, s3Opts...),
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
	}, nil
}

func (a *Archiver) key(path string) string {
	return a.keyPrefix + path
}

// ArchiveFile uploads the file at localPath under key a.keyPrefix+remoteKey.
// A nil Archiver makes this a no-op, so transfer completion code can call
// it unconditionally (spec §7 "File transfer engine" completion hook).
func (a *Archiver) ArchiveFile(ctx context.Context, remoteKey, localPath string) error {
	if a == nil {
		return nil
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("archive: read %q: %w", localPath, err)
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(remoteKey)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("archive: put object %q: %w", remoteKey, err)
	}
	return nil
}
