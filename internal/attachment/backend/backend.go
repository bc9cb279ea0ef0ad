// Package backend はストレージURLから添付ファイルのBackendを選択する。
//
//	file:///var/lib/qaboard/upload   ローカルファイルシステム
//	file://./upload                  相対パス
//	s3://bucket?region=ap-northeast-1&endpoint=http://minio:9000&path_style=true
package backend

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/hitoshi/qaboard/internal/attachment"
	"github.com/hitoshi/qaboard/internal/attachment/fs"
	"github.com/hitoshi/qaboard/internal/attachment/s3"
)

// Credentials はS3の静的認証情報。空の場合はデフォルトの認証情報チェーンを使用する。
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

// Open はストレージURLのスキームに応じたBackendを生成する。
func Open(ctx context.Context, storageURL string, creds Credentials) (attachment.Backend, error) {
	u, err := url.Parse(storageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid attachment storage URL: %w", err)
	}

	switch u.Scheme {
	case "file":
		root := u.Host + u.Path
		if root == "" {
			return nil, fmt.Errorf("attachment storage URL has no path: %s", storageURL)
		}
		return fs.New(root)
	case "s3":
		q := u.Query()
		pathStyle, _ := strconv.ParseBool(q.Get("path_style"))
		return s3.New(ctx, s3.Config{
			Bucket:          u.Host,
			Region:          q.Get("region"),
			Endpoint:        q.Get("endpoint"),
			UsePathStyle:    pathStyle,
			AccessKeyID:     creds.AccessKeyID,
			SecretAccessKey: creds.SecretAccessKey,
		})
	default:
		return nil, fmt.Errorf("unsupported attachment storage scheme: %q", u.Scheme)
	}
}
