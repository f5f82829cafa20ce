// Package mediastore persists detection snapshots and clips to two
// backends: a durable MinIO object store (the "detection store" of
// §3/§6) and a local staging directory whose paths are referenced
// relatively by the Delivery Client (the agent gateway rejects
// absolute media paths). Adapted from the teacher's
// internal/storage.MinioStore, retargeted at ai-snapshots/{event_id}.jpg
// and ai-clips/{event_id}.mp4 object keys instead of the RTLS face
// snapshot layout.
package mediastore

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// DetectionStore is the durable, remotely-addressable copy of a
// snapshot or clip.
type DetectionStore interface {
	Save(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// MinioStore implements DetectionStore against a MinIO/S3-compatible
// bucket.
type MinioStore struct {
	client  *minio.Client
	bucket  string
	prefix  string
	baseURL *url.URL
	useSSL  bool
}

// NewMinioStoreFromEnv builds a MinioStore from MINIO_* environment
// variables, identical in shape to the teacher's bootstrap.
func NewMinioStoreFromEnv() (*MinioStore, error) {
	endpoint := getenv("MINIO_ENDPOINT", "localhost:9000")
	accessKey := os.Getenv("MINIO_ACCESS_KEY")
	secretKey := os.Getenv("MINIO_SECRET_KEY")
	bucket := getenv("MINIO_BUCKET", "sentry-bridge-media")
	prefix := getenv("MINIO_PREFIX", "")
	useSSL := getenv("MINIO_USE_SSL", "false") == "true"
	base := getenv("MINIO_PUBLIC_BASE_URL", "")

	if accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("MINIO_ACCESS_KEY / MINIO_SECRET_KEY not configured")
	}

	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		exists, existsErr := cli.BucketExists(ctx, bucket)
		if existsErr != nil || !exists {
			return nil, fmt.Errorf("create/verify bucket %s: %w", bucket, err)
		}
	}

	var u *url.URL
	if base != "" {
		u, err = url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid MINIO_PUBLIC_BASE_URL: %w", err)
		}
	}

	log.Printf("[mediastore] connected to %s, bucket=%s", endpoint, bucket)

	return &MinioStore{
		client:  cli,
		bucket:  bucket,
		prefix:  strings.Trim(prefix, "/"),
		baseURL: u,
		useSSL:  useSSL,
	}, nil
}

// Save uploads data under key and returns a reference URL (or, absent
// a configured public base URL, a raw endpoint URL).
func (s *MinioStore) Save(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "image/jpeg"
	}

	objectKey := joinObjectKey(s.prefix, key)

	_, err := s.client.PutObject(
		ctx,
		s.bucket,
		objectKey,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}

	if s.baseURL != nil {
		u := *s.baseURL
		if u.Path == "" || u.Path == "/" {
			u.Path = "/" + objectKey
		} else {
			u.Path = fmt.Sprintf("%s/%s", strings.TrimSuffix(u.Path, "/"), objectKey)
		}
		return u.String(), nil
	}

	scheme := "http"
	if s.useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.client.EndpointURL().Host, s.bucket, objectKey), nil
}

func getenv(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func joinObjectKey(prefix, key string) string {
	cleanPrefix := strings.Trim(prefix, "/")
	cleanKey := strings.TrimPrefix(key, "/")
	if cleanPrefix == "" {
		return cleanKey
	}
	if cleanKey == "" {
		return cleanPrefix
	}
	return cleanPrefix + "/" + cleanKey
}
