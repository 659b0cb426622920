package storage

import (
	"context"
	"fmt"
	"log/slog"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const defaultGCSBaseURL = "https://storage.googleapis.com"

// GCSConfig はGoogle Cloud Storageバックエンドの設定。
type GCSConfig struct {
	Bucket string
	// CredentialsFile はサービスアカウントキーのパス。空の場合はADCを使う。
	CredentialsFile string
	PublicBaseURL   string
}

// GCSUploader はGoogle Cloud Storageへ保存するUploader。
// バケットは均一アクセスでallUsersに閲覧権限がある前提で、オブジェクト単位のACLは設定しない。
type GCSUploader struct {
	client        *gcs.Client
	bucket        string
	publicBaseURL string
}

// NewGCSUploader はGCSクライアントを生成する。
func NewGCSUploader(ctx context.Context, cfg GCSConfig) (*GCSUploader, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcs client: %w", err)
	}

	base := cfg.PublicBaseURL
	if base == "" {
		base = defaultGCSBaseURL
	}
	return &GCSUploader{client: client, bucket: cfg.Bucket, publicBaseURL: base}, nil
}

// Upload はデータをfolder配下に保存し、公開URLを返す。
func (u *GCSUploader) Upload(ctx context.Context, data []byte, filename, folder string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyObject
	}

	key := ObjectKey(folder, filename)
	w := u.client.Bucket(u.bucket).Object(key).NewWriter(ctx)
	w.ContentType = ContentType(filename)

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to write object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to upload object %s: %w", key, err)
	}

	slog.Debug("object uploaded", slog.String("bucket", u.bucket), slog.String("key", key))
	return PublicURL(u.publicBaseURL, u.bucket, key), nil
}

// Close はGCSクライアントを閉じる。
func (u *GCSUploader) Close() error {
	return u.client.Close()
}

var _ Uploader = (*GCSUploader)(nil)
