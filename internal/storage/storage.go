package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/tripdesk/apiserver/config"
)

// ErrObjectNotFound is returned by Get for a missing key.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStorage is the bucket that report exports are written to.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Bucket() string
	Close() error
}

// Open builds the backend selected by cfg.Storage.Backend.
func Open(ctx context.Context, cfg config.Config) (ObjectStorage, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Backend)) {
	case "", "minio":
		c, err := NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, fmt.Errorf("minio: %w", err)
		}
		return c, nil
	case "gcs":
		c, err := NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, fmt.Errorf("gcs: %w", err)
		}
		return c, nil
	case "memory":
		return NewMemoryStorage(cfg.Minio.Bucket), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

type object struct {
	data        []byte
	contentType string
}

// MemoryStorage keeps objects in process memory.
type MemoryStorage struct {
	mu      sync.RWMutex
	bucket  string
	objects map[string]object
}

func NewMemoryStorage(bucket string) *MemoryStorage {
	return &MemoryStorage{bucket: bucket, objects: map[string]object{}}
}

func (m *MemoryStorage) EnsureBucket(context.Context) error {
	return nil
}

func (m *MemoryStorage) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = object{data: data, contentType: contentType}
	return nil
}

func (m *MemoryStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// ContentType returns the stored content type of key.
func (m *MemoryStorage) ContentType(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.objects[key].contentType
}

func (m *MemoryStorage) Bucket() string {
	return m.bucket
}

func (m *MemoryStorage) Close() error {
	return nil
}
