package atlasassets

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// Service defines the main interface for the atlas-assets library
type Service interface {
	// Lifecycle operations
	Upload(ctx context.Context, req UploadRequest) (*Asset, error)
	Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*Asset, error)
	Replace(ctx context.Context, id uuid.UUID, file FileUpload, req UpdateRequest) (*Asset, error)
	Delete(ctx context.Context, id uuid.UUID, force bool) error

	// Purge hard-deletes soft-deleted assets and their blobs in independently
	// committed batches, returning the number of assets removed.
	Purge(ctx context.Context, batchSize int) (int, error)

	// Retrieval operations
	Get(ctx context.Context, id uuid.UUID) (*Asset, error)
	List(ctx context.Context, filters ListFilters) ([]*Asset, error)
	Download(ctx context.Context, id uuid.UUID) ([]byte, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	TemporaryURL(ctx context.Context, id uuid.UUID, expiresIn time.Duration) (string, error)
	Stream(ctx context.Context, id uuid.UUID) (*AssetStream, error)
}

// AssetStream couples an asset record with an open read handle on its blob.
// The caller must close Body on every exit path.
type AssetStream struct {
	Asset *Asset
	Body  io.ReadCloser
}
