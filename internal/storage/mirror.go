// Package storage adapts the teacher's S3 object-storage client into a
// best-effort repository mirror: after a successful receive-pack, it
// walks the bare repository directory and copies every object up to an
// S3-compatible bucket, never blocking or failing the push that
// triggered it.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/bravo68web/githttpgw/pkg/logger"
)

// Config configures the S3-compatible bucket a Mirror copies into.
type Config struct {
	Bucket       string
	Region       string
	AccessKey    string
	SecretKey    string
	Endpoint     string // optional: MinIO or another S3-compatible endpoint
	UsePathStyle bool
	Prefix       string

	// Timeout bounds each background mirror run; zero means no deadline
	// beyond the process lifetime.
	Timeout time.Duration
}

// Mirror copies a bare repository directory to an S3-compatible bucket in
// the background. It implements driver.Mirror.
type Mirror struct {
	client  *s3.Client
	bucket  string
	prefix  string
	origin  string
	timeout time.Duration
	log     *logger.Logger
}

// New builds a Mirror, verifying the bucket is reachable before returning.
// Grounded on the teacher's S3Storage.NewS3Storage/verifyBucket.
func New(ctx context.Context, originDir string, cfg Config) (*Mirror, error) {
	var opts []func(*config.LoadOptions) error
	opts = append(opts, config.WithRegion(cfg.Region))
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.UsePathStyle
		})
	}
	client := s3.NewFromConfig(awsCfg, s3Opts...)

	prefix := cfg.Prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	m := &Mirror{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  prefix,
		origin:  originDir,
		timeout: cfg.Timeout,
		log:     logger.Get(),
	}

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(m.bucket)}); err != nil {
		return nil, fmt.Errorf("storage: verify bucket %q: %w", m.bucket, err)
	}
	return m, nil
}

// MirrorAsync walks originDir/repoPath and uploads every regular file
// under it to the bucket, logging failures instead of returning them --
// matching the teacher's "update server info, don't fail the push"
// posture in GitProtocol.HandleReceivePack.
func (m *Mirror) MirrorAsync(repoPath string) {
	go m.run(repoPath)
}

func (m *Mirror) run(repoPath string) {
	ctx := context.Background()
	var cancel context.CancelFunc
	if m.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	root := filepath.Join(m.origin, repoPath)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		return m.putFile(ctx, repoPath, rel, path)
	})

	if err != nil {
		m.log.Warn("mirror sync failed",
			logger.String("repo", repoPath),
			logger.Error(err),
		)
		return
	}
	m.log.Info("mirror sync completed", logger.String("repo", repoPath))
}

func (m *Mirror) putFile(ctx context.Context, repoPath, rel, fullPath string) error {
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", fullPath, err)
	}
	key := m.prefix + filepath.ToSlash(filepath.Join(repoPath, rel))
	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}
