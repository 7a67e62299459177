package store

import (
	"bytes"
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/samber/oops"
)

// MaxAssetSize bounds a single static asset read into memory.
const MaxAssetSize = 8 << 20

// MinioConfig locates the asset bucket.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioStore serves static assets out of a MinIO bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore connects to MinIO and creates the bucket on first use.
func NewMinioStore(ctx context.Context, cfg MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, oops.Code("ASSETS_UNAVAILABLE").With("endpoint", cfg.Endpoint).Wrap(err)
	}
	s := &MinioStore{client: client, bucket: cfg.Bucket}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MinioStore) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return oops.Code("ASSETS_UNAVAILABLE").With("bucket", s.bucket).Wrap(err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return oops.Code("ASSETS_UNAVAILABLE").With("bucket", s.bucket).Wrap(err)
	}
	return nil
}

// Upload stores an asset under key, replacing any previous version.
func (s *MinioStore) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	if len(data) > MaxAssetSize {
		return oops.Code("ASSETS_UPLOAD_FAILED").With("key", key).With("size", len(data)).
			Errorf("asset exceeds %d bytes", MaxAssetSize)
	}
	opts := minio.PutObjectOptions{ContentType: contentType, CacheControl: "public, max-age=3600"}
	if _, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), opts); err != nil {
		return oops.Code("ASSETS_UPLOAD_FAILED").With("key", key).Wrap(err)
	}
	return nil
}

// Download returns an asset and its stored content type. Missing objects
// yield ErrNotFound.
func (s *MinioStore) Download(ctx context.Context, key string) ([]byte, string, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, "", assetErr(err, key)
	}
	if info.Size > MaxAssetSize {
		return nil, "", oops.Code("ASSETS_DOWNLOAD_FAILED").With("key", key).With("size", info.Size).
			Errorf("asset exceeds %d bytes", MaxAssetSize)
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", assetErr(err, key)
	}
	defer obj.Close()

	data, err := io.ReadAll(io.LimitReader(obj, MaxAssetSize))
	if err != nil {
		return nil, "", assetErr(err, key)
	}
	return data, info.ContentType, nil
}

func assetErr(err error, key string) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrNotFound
	}
	return oops.Code("ASSETS_DOWNLOAD_FAILED").With("key", key).Wrap(err)
}
