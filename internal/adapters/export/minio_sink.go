package export

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/vncsmyrnk/scorepoll/internal/core/domain"
	"github.com/vncsmyrnk/scorepoll/internal/core/ports"
	"github.com/vncsmyrnk/scorepoll/internal/logger"
)

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioSink buffers the export and uploads it as a single object on Close.
// Nothing reaches the bucket if the export is aborted.
type MinioSink struct {
	client *minio.Client
	bucket string
	object string
	buf    bytes.Buffer
}

func NewMinioSink(ctx context.Context, cfg MinioConfig, object string) (ports.ExportSink, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
		}
		logger.Service("export").Info("bucket created", "bucket", cfg.Bucket)
	}

	return &MinioSink{client: client, bucket: cfg.Bucket, object: object}, nil
}

func (s *MinioSink) Write(_ context.Context, poll *domain.Poll) error {
	return writeLine(&s.buf, poll)
}

func (s *MinioSink) Close(ctx context.Context) error {
	info, err := s.client.PutObject(ctx, s.bucket, s.object, bytes.NewReader(s.buf.Bytes()), int64(s.buf.Len()),
		minio.PutObjectOptions{ContentType: "application/x-ndjson"})
	if err != nil {
		return fmt.Errorf("failed to upload export: %w", err)
	}
	logger.Service("export").Info("export uploaded", "bucket", info.Bucket, "object", info.Key, "bytes", info.Size)
	return nil
}

func (s *MinioSink) Abort() error {
	s.buf.Reset()
	return nil
}
