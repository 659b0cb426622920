package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOConfig はMinIOバックエンドの設定。
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	// PublicBaseURL は公開URLの先頭部分。空の場合はEndpointから組み立てる。
	PublicBaseURL string
}

// MinIOUploader はMinIO(S3互換ストレージ)へ保存するUploader。
type MinIOUploader struct {
	client        *minio.Client
	bucket        string
	publicBaseURL string
}

// NewMinIOUploader はMinIOクライアントを生成し、バケットが無ければ作成する。
func NewMinIOUploader(ctx context.Context, cfg MinIOConfig) (*MinIOUploader, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		slog.Info("bucket created", slog.String("bucket", cfg.Bucket))
	}

	base := cfg.PublicBaseURL
	if base == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		base = scheme + "://" + cfg.Endpoint
	}

	return &MinIOUploader{client: client, bucket: cfg.Bucket, publicBaseURL: base}, nil
}

// Upload はデータをfolder配下に保存し、公開URLを返す。
func (u *MinIOUploader) Upload(ctx context.Context, data []byte, filename, folder string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyObject
	}

	key := ObjectKey(folder, filename)
	_, err := u.client.PutObject(ctx, u.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: ContentType(filename),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object %s: %w", key, err)
	}

	slog.Debug("object uploaded", slog.String("bucket", u.bucket), slog.String("key", key))
	return PublicURL(u.publicBaseURL, u.bucket, key), nil
}

var _ Uploader = (*MinIOUploader)(nil)
