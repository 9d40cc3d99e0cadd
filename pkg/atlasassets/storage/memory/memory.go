package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/atlas-labs/atlas-assets/pkg/atlasassets"
)

// Backend is an in-memory implementation of the atlasassets.BlobStore interface
type Backend struct {
	mu        sync.RWMutex
	objects   map[string][]byte
	mimeTypes map[string]string
}

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{
		objects:   make(map[string][]byte),
		mimeTypes: make(map[string]string),
	}
}

// Upload writes the blob into memory
func (b *Backend) Upload(ctx context.Context, key string, reader io.Reader, params atlasassets.UploadParams) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[key] = data
	mimeType := params.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	b.mimeTypes[key] = mimeType
	return nil
}

// Download returns a read handle over the stored bytes
func (b *Backend) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, exists := b.objects[key]
	if !exists {
		return nil, errors.New("object not found")
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

// Exists reports whether a blob is stored at the key
func (b *Backend) Exists(ctx context.Context, key string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, exists := b.objects[key]
	return exists, nil
}

// Delete removes the blob at the key
func (b *Backend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[key]; !exists {
		return errors.New("object not found")
	}

	delete(b.objects, key)
	delete(b.mimeTypes, key)
	return nil
}

// TemporaryURL is unsupported for the memory backend
func (b *Backend) TemporaryURL(ctx context.Context, key string, expiresIn time.Duration) (string, error) {
	return "", atlasassets.ErrTemporaryURLUnsupported
}

// MimeType returns the mime type recorded at upload, for tests and tooling
func (b *Backend) MimeType(key string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	mt, ok := b.mimeTypes[key]
	return mt, ok
}
