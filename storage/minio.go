package storage

import (
	"context"
	"fmt"
	"os"
	"time"

	"PlaySync/config"
	"PlaySync/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// BucketStats 存储桶统计信息
type BucketStats struct {
	TotalObjects int64
	TotalSize    int64
	LastModified time.Time
}

// MinioStore 基于 MinIO 的媒体存储
type MinioStore struct {
	client     *minio.Client
	bucketName string
}

// NewMinioStore 创建 MinIO 客户端，存储桶不存在时自动创建
func NewMinioStore(ctx context.Context, cfg *config.Config) (*MinioStore, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 MinIO 客户端失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("检查存储桶失败: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{Region: cfg.MinioRegion}); err != nil {
			return nil, fmt.Errorf("创建存储桶失败: %w", err)
		}
		logger.Info("minio bucket created", logger.String("bucket", cfg.MinioBucket))
	}

	logger.Info("minio store ready",
		logger.String("endpoint", cfg.MinioEndpoint),
		logger.String("bucket", cfg.MinioBucket))
	return &MinioStore{client: client, bucketName: cfg.MinioBucket}, nil
}

// Bucket returns the bucket name.
func (m *MinioStore) Bucket() string {
	return m.bucketName
}

func (m *MinioStore) Put(ctx context.Context, name, srcPath string) error {
	if err := validName(name); err != nil {
		return err
	}
	_, err := m.client.FPutObject(ctx, m.bucketName, name, srcPath, minio.PutObjectOptions{
		ContentType: ContentType(name),
	})
	if err != nil {
		return fmt.Errorf("upload %s to minio: %w", name, err)
	}
	if err := os.Remove(srcPath); err != nil {
		logger.Warn("remove staged upload failed", logger.String("path", srcPath), logger.ErrorField(err))
	}
	return nil
}

func (m *MinioStore) Open(ctx context.Context, name string) (Object, *ObjectInfo, error) {
	if err := validName(name); err != nil {
		return nil, nil, err
	}
	obj, err := m.client.GetObject(ctx, m.bucketName, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, translate(err)
	}
	// GetObject is lazy; Stat performs the request
	st, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, nil, translate(err)
	}
	return obj, &ObjectInfo{
		Key:          st.Key,
		Size:         st.Size,
		LastModified: st.LastModified,
		ContentType:  st.ContentType,
	}, nil
}

func (m *MinioStore) Remove(ctx context.Context, name string) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := m.client.RemoveObject(ctx, m.bucketName, name, minio.RemoveObjectOptions{}); err != nil {
		return translate(err)
	}
	return nil
}

func (m *MinioStore) List(ctx context.Context) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	for obj := range m.client.ListObjects(ctx, m.bucketName, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("列出对象失败: %w", obj.Err)
		}
		objects = append(objects, ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
			ContentType:  obj.ContentType,
		})
	}
	return objects, nil
}

// Stats 统计存储桶
func (m *MinioStore) Stats(ctx context.Context) (*BucketStats, error) {
	objects, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	stats := &BucketStats{}
	for _, o := range objects {
		stats.TotalObjects++
		stats.TotalSize += o.Size
		if o.LastModified.After(stats.LastModified) {
			stats.LastModified = o.LastModified
		}
	}
	return stats, nil
}

func translate(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrObjectNotFound
	}
	return err
}
