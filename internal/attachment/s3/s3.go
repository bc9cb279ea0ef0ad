// Package s3 はS3互換オブジェクトストレージに添付ファイルを保存するBackendを提供する。
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/hitoshi/qaboard/internal/attachment"
)

// uploadPartSize はマルチパートアップロードに切り替える閾値。
// アップロード上限より大きくし、条件付き書き込み（If-None-Match）を単一のPutObjectで行う。
const uploadPartSize = 16 * 1024 * 1024

// Config はS3 Backendの設定。
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string // MinIOなどS3互換サービス用。空ならAWSを使用する
	UsePathStyle    bool
	AccessKeyID     string // 空ならデフォルトの認証情報チェーンを使用する
	SecretAccessKey string
}

// Backend はバケット直下にオブジェクトを保存する。
type Backend struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
}

// New はS3 Backendを生成する。
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &Backend{
		client: client,
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			u.PartSize = uploadPartSize
		}),
		bucket: cfg.Bucket,
	}, nil
}

// Put はIf-None-Match: * を付けてオブジェクトを作成する。
// 同じキーが既に存在する場合はattachment.ErrObjectExistsを返す。
func (b *Backend) Put(ctx context.Context, key string, r io.Reader) error {
	_, err := b.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        r,
		IfNoneMatch: aws.String("*"),
	})
	if isAPIErrorCode(err, "PreconditionFailed", "ConditionalRequestConflict") {
		return attachment.ErrObjectExists
	}
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	return nil
}

// Get はオブジェクトの内容とサイズを返す。
func (b *Backend) Get(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if isNotFound(err) {
		return nil, 0, attachment.ErrObjectNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to download from S3: %w", err)
	}
	return out.Body, aws.ToInt64(out.ContentLength), nil
}

// Delete はオブジェクトを削除する。
// S3は存在しないキーの削除も成功として扱うため、ErrObjectNotFoundは返さない。
func (b *Backend) Delete(ctx context.Context, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	return isAPIErrorCode(err, "NoSuchKey", "NotFound")
}

// isAPIErrorCode はerrが指定コードのいずれかを持つsmithy.APIErrorかを返す。
func isAPIErrorCode(err error, codes ...string) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, code := range codes {
		if apiErr.ErrorCode() == code {
			return true
		}
	}
	return false
}

// compile-time interface check
var _ attachment.Backend = (*Backend)(nil)
