package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"

	"ai-recruit-go/internal/config"
	"ai-recruit-go/internal/logger"
)

// DocumentStore 原始简历文件存储
type DocumentStore interface {
	PutDocument(ctx context.Context, jobID, fileName string, data []byte) (string, error)
	GetDocument(ctx context.Context, objectKey string) ([]byte, error)
}

var _ DocumentStore = (*MinIO)(nil)

// MinIO 提供对象存储功能
type MinIO struct {
	client *minio.Client
	bucket string
	logger zerolog.Logger
}

// NewMinIO 创建 MinIO 客户端并确保文档存储桶存在
func NewMinIO(ctx context.Context, cfg *config.MinIOConfig) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	m := &MinIO{
		client: client,
		bucket: cfg.DocumentsBucket,
		logger: logger.Named("minio"),
	}
	if err := m.ensureBucketExists(ctx, cfg.Location); err != nil {
		return nil, err
	}
	m.logger.Info().Str("endpoint", cfg.Endpoint).Str("bucket", m.bucket).Msg("MinIO客户端初始化成功")
	return m, nil
}

func (m *MinIO) ensureBucketExists(ctx context.Context, location string) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", m.bucket, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{Region: location}); err != nil {
		return fmt.Errorf("创建存储桶 %s 失败: %w", m.bucket, err)
	}
	m.logger.Info().Str("bucket", m.bucket).Msg("存储桶已创建")
	return nil
}

// DocumentKey resume/{jobID}/original{ext}
func DocumentKey(jobID, fileName string) string {
	return fmt.Sprintf("resume/%s/original%s", jobID, strings.ToLower(path.Ext(fileName)))
}

// PutDocument 上传原始文件，返回对象键
func (m *MinIO) PutDocument(ctx context.Context, jobID, fileName string, data []byte) (string, error) {
	key := DocumentKey(jobID, fileName)
	info, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType(path.Ext(key))})
	if err != nil {
		return "", fmt.Errorf("上传对象 %s/%s 失败: %w", m.bucket, key, err)
	}
	m.logger.Debug().Str("key", key).Int64("size", info.Size).Msg("原始简历已上传")
	return key, nil
}

// GetDocument 下载原始文件
func (m *MinIO) GetDocument(ctx context.Context, objectKey string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("获取对象 %s 失败: %w", objectKey, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("读取对象 %s 失败: %w", objectKey, err)
	}
	return data, nil
}

func contentType(ext string) string {
	switch strings.ToLower(ext) {
	case ".pdf":
		return "application/pdf"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".txt":
		return "text/plain"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
