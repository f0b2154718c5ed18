package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"resume-matcher/internal/config"
	"resume-matcher/internal/tracing"
)

var minioTracer = otel.Tracer("resume-matcher/storage/minio")

// ObjectStorage 上传原件归档接口
type ObjectStorage interface {
	// UploadFile 上传到原件存储桶，返回 bucket/object 形式的位置
	UploadFile(ctx context.Context, objectName string, reader io.Reader, fileSize int64, contentType string) (string, error)
	// ArchiveUpload 按 screening/{batch}/{filename} 归档一个本地文件
	ArchiveUpload(ctx context.Context, batch, localPath string) (string, error)
}

var _ ObjectStorage = (*MinIO)(nil)

// MinIO 提供对象存储功能
type MinIO struct {
	client         *minio.Client
	cfg            *config.MinIOConfig
	originalBucket string
	logger         zerolog.Logger
}

// NewMinIO 创建MinIO客户端并确保存储桶存在
func NewMinIO(cfg *config.MinIOConfig, logger zerolog.Logger) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}
	logger = logger.With().Str("component", "minio").Logger()

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	originalBucket := cfg.OriginalsBucket
	if originalBucket == "" {
		originalBucket = "originals"
	}

	m := &MinIO{
		client:         client,
		cfg:            cfg,
		originalBucket: originalBucket,
		logger:         logger,
	}

	if err := m.ensureBucketExists(context.Background(), originalBucket, cfg.Location); err != nil {
		return nil, fmt.Errorf("确保原件存储桶 %s 存在失败: %w", originalBucket, err)
	}

	if cfg.OriginalFileExpireDays > 0 {
		if err := m.setupBucketLifecycle(context.Background(), originalBucket, "expire-screening-uploads", cfg.OriginalFileExpireDays); err != nil {
			m.logger.Warn().Err(err).Str("bucket", originalBucket).Msg("设置生命周期规则失败")
		}
	}

	m.logger.Info().Str("endpoint", cfg.Endpoint).Str("bucket", originalBucket).Msg("MinIO客户端初始化成功")
	return m, nil
}

// ensureBucketExists 确保存储桶存在
func (m *MinIO) ensureBucketExists(ctx context.Context, bucketName, location string) error {
	exists, err := m.client.BucketExists(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", bucketName, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{Region: location}); err != nil {
		return fmt.Errorf("创建存储桶 %s 失败: %w", bucketName, err)
	}
	m.logger.Info().Str("bucket", bucketName).Msg("存储桶已创建")
	return nil
}

// setupBucketLifecycle 为指定存储桶设置过期规则
func (m *MinIO) setupBucketLifecycle(ctx context.Context, bucketName, ruleID string, expiryDays int) error {
	lc := lifecycle.NewConfiguration()
	lc.Rules = []lifecycle.Rule{
		{
			ID:     ruleID,
			Status: "Enabled",
			RuleFilter: lifecycle.Filter{
				Prefix: "screening/",
			},
			Expiration: lifecycle.Expiration{
				Days: lifecycle.ExpirationDays(expiryDays),
			},
		},
	}
	return m.client.SetBucketLifecycle(ctx, bucketName, lc)
}

// UploadFile 上传到原件存储桶
func (m *MinIO) UploadFile(ctx context.Context, objectName string, reader io.Reader, fileSize int64, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	ctx, span := minioTracer.Start(ctx, "MinIO.PutObject", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("minio.bucket", m.originalBucket),
			attribute.String("minio.object", tracing.SafePath(objectName)),
			attribute.Int64("minio.size", fileSize),
		))
	defer span.End()

	info, err := m.client.PutObject(ctx, m.originalBucket, objectName, reader, fileSize, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeObjectStorage)
		return "", fmt.Errorf("上传对象 %s 失败: %w", objectName, err)
	}
	m.logger.Debug().Str("object", objectName).Int64("size", info.Size).Msg("对象上传成功")
	return path.Join(m.originalBucket, objectName), nil
}

// ArchiveUpload 归档一个本地文件
func (m *MinIO) ArchiveUpload(ctx context.Context, batch, localPath string) (string, error) {
	f, err := openForUpload(localPath)
	if err != nil {
		return "", err
	}
	defer f.file.Close()

	objectName := ArchiveObjectName(batch, filepath.Base(localPath))
	return m.UploadFile(ctx, objectName, f.file, f.size, contentTypeFor(localPath))
}

// ArchiveObjectName screening/{batch}/{filename}
func ArchiveObjectName(batch, filename string) string {
	return path.Join("screening", batch, filename)
}

func contentTypeFor(p string) string {
	if ct := mime.TypeByExtension(filepath.Ext(p)); ct != "" {
		return ct
	}
	switch filepath.Ext(p) {
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".zip":
		return "application/zip"
	}
	return "application/octet-stream"
}
