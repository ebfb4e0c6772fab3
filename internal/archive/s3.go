// Package archive uploads finished downloads to an S3-compatible bucket.
package archive

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/mediafetch/internal/common"
	"github.com/dmitrijs2005/mediafetch/internal/logging"
)

// Replaced in tests.
var (
	loadDefaultAWSConfig  = config.LoadDefaultConfig
	newS3ClientFromConfig = s3.NewFromConfig
)

type Config struct {
	Bucket       string `json:"bucket"`
	Region       string `json:"region"`
	BaseEndpoint string `json:"base_endpoint"`
	AccessKey    string `json:"access_key"`
	SecretKey    string `json:"secret_key"`
	Prefix       string `json:"prefix"`
}

// Enabled reports whether an upload target is configured.
func (c Config) Enabled() bool {
	return c.Bucket != ""
}

type putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Archiver struct {
	bucket string
	prefix string
	client putter
	log    logging.Logger
}

// New builds an archiver from cfg. Static credentials are used when an
// access key is set; otherwise the default AWS credential chain applies.
func New(ctx context.Context, cfg Config, log logging.Logger) (*S3Archiver, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("%w: s3 bucket is empty", common.ErrInvalidConfig)
	}
	if log == nil {
		log = logging.Discard()
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Archiver{bucket: cfg.Bucket, prefix: cfg.Prefix, client: client, log: log}, nil
}

// Key is the object key for a file at rel under the download root.
func Key(prefix, rel string) string {
	k := path.Join(strings.Trim(prefix, "/"), filepath.ToSlash(rel))
	return strings.TrimPrefix(k, "/")
}

// Archive uploads the file at localPath under Key(prefix, rel).
func (a *S3Archiver) Archive(ctx context.Context, localPath, rel string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return err
	}

	key := Key(a.prefix, rel)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(fi.Size()),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", a.bucket, key, err)
	}

	a.log.Info(ctx, "Archived", "bucket", a.bucket, "key", key, "size", fi.Size())
	return nil
}
