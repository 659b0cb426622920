// Package storage は画像などのバイナリをオブジェクトストレージへ保存する。
// MinIO(S3互換)とGoogle Cloud Storageの2つのバックエンドを提供する。
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// 画像の保存先フォルダ
const (
	FolderShops = "cakeapp/shops"
	FolderCakes = "cakeapp/cakes"
)

// ErrEmptyObject は空のデータをアップロードしようとした場合のエラー。
var ErrEmptyObject = errors.New("storage: empty object")

// Uploader はバイナリを保存し、公開URLを返すインターフェース。
type Uploader interface {
	Upload(ctx context.Context, data []byte, filename, folder string) (string, error)
}

// ObjectKey はフォルダ配下の一意なオブジェクト名を生成する。
// 元のファイル名からは小文字化した拡張子のみを引き継ぐ。
func ObjectKey(folder, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	name := uuid.NewString() + ext
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return name
	}
	return folder + "/" + name
}

// ContentType は拡張子からContent-Typeを決定する。
func ContentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// PublicURL は公開ベースURLとオブジェクト名から公開URLを組み立てる。
func PublicURL(baseURL, bucket, key string) string {
	return fmt.Sprintf("%s/%s", strings.TrimRight(baseURL, "/"), path.Join(bucket, key))
}
