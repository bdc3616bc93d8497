package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"agentdesk-backend/shared/config"
)

var ErrObjectNotFound = errors.New("object not found")

// Object is a stored file opened for reading.
type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

type MinIOService struct {
	client     *minio.Client
	bucketName string
}

func NewMinIOService(ctx context.Context, cfg *config.Config) (*MinIOService, error) {
	parsedURL, err := url.Parse(cfg.MinIOServerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid MinIO endpoint: %w", err)
	}

	endpoint := parsedURL.Host
	if endpoint == "" {
		endpoint = cfg.MinIOServerURL
	}

	zap.L().Info("connecting to MinIO", zap.String("endpoint", endpoint), zap.Bool("ssl", cfg.MinIOUseSSL))

	minioClient, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinIORootUser, cfg.MinIORootPassword, ""),
		Secure: cfg.MinIOUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	service := &MinIOService{
		client:     minioClient,
		bucketName: cfg.MinIOBucketName,
	}

	if err := service.initializeBucket(ctx); err != nil {
		return nil, err
	}

	return service, nil
}

func (s *MinIOService) initializeBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		zap.L().Info("MinIO bucket created", zap.String("bucket", s.bucketName))
	}

	return nil
}

func avatarPrefix(agentID uuid.UUID) string {
	return path.Join("agents", agentID.String(), "avatar")
}

// AvatarKey is the object key of an agent avatar with the given extension.
func AvatarKey(agentID uuid.UUID, ext string) string {
	return avatarPrefix(agentID) + strings.ToLower(ext)
}

// PutAvatar replaces any previous avatar of the agent and returns the new object key.
func (s *MinIOService) PutAvatar(ctx context.Context, agentID uuid.UUID, ext string, file io.Reader, size int64, contentType string) (string, error) {
	key := AvatarKey(agentID, ext)

	for object := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{Prefix: avatarPrefix(agentID)}) {
		if object.Err != nil {
			return "", fmt.Errorf("failed to list avatars: %w", object.Err)
		}
		if object.Key == key {
			continue
		}
		if err := s.client.RemoveObject(ctx, s.bucketName, object.Key, minio.RemoveObjectOptions{}); err != nil {
			zap.L().Warn("failed to remove old avatar", zap.String("key", object.Key), zap.Error(err))
		}
	}

	_, err := s.client.PutObject(ctx, s.bucketName, key, file, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload avatar: %w", err)
	}

	zap.L().Info("avatar uploaded", zap.String("key", key), zap.Int64("size", size))
	return key, nil
}

// GetAvatar opens the current avatar of an agent.
func (s *MinIOService) GetAvatar(ctx context.Context, agentID uuid.UUID) (*Object, error) {
	var key string
	for object := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{Prefix: avatarPrefix(agentID)}) {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list avatars: %w", object.Err)
		}
		key = object.Key
	}
	if key == "" {
		return nil, ErrObjectNotFound
	}

	obj, err := s.client.GetObject(ctx, s.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to download avatar: %w", err)
	}

	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to stat avatar: %w", err)
	}

	return &Object{Body: obj, ContentType: info.ContentType, Size: info.Size}, nil
}

// Ping lists buckets to check the connection.
func (s *MinIOService) Ping(ctx context.Context) error {
	if _, err := s.client.ListBuckets(ctx); err != nil {
		return fmt.Errorf("failed to connect to MinIO: %w", err)
	}
	return nil
}
