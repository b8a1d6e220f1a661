package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	applog "timetracker/internal/log"
)

// S3Config selects the bucket exports are archived to. Endpoint and the
// static keys are optional; without them the default AWS chain applies.
type S3Config struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// Uploader stores one object and returns its key.
type Uploader interface {
	Upload(ctx context.Context, name string, body io.Reader) (string, error)
}

// S3Uploader archives files through the S3 upload manager.
type S3Uploader struct {
	bucket   string
	prefix   string
	uploader *manager.Uploader
	logger   *applog.Logger
}

var _ Uploader = (*S3Uploader)(nil)

// NewS3Uploader loads the AWS configuration and builds the upload manager.
func NewS3Uploader(ctx context.Context, cfg S3Config, logger *applog.Logger) (*S3Uploader, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	if logger == nil {
		logger = applog.Discard()
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Uploader{
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
		uploader: manager.NewUploader(client),
		logger:   logger.WithComponent(applog.ComponentArchive),
	}, nil
}

// Upload stores body under the configured prefix.
func (u *S3Uploader) Upload(ctx context.Context, name string, body io.Reader) (string, error) {
	key := ObjectKey(u.prefix, name)
	out, err := u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType(name)),
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s to s3://%s: %w", key, u.bucket, err)
	}
	u.logger.InfoContext(ctx, "Export archived",
		"bucket", u.bucket,
		"key", key,
		"location", out.Location)
	return key, nil
}

// ObjectKey joins prefix and name with a single slash.
func ObjectKey(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

func contentType(name string) string {
	if strings.HasSuffix(name, EncryptedExt) {
		return "application/octet-stream"
	}
	return "text/csv; charset=utf-8"
}
