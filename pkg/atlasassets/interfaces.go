package atlasassets

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// BlobStore defines the interface for storage backends
type BlobStore interface {
	// Upload writes the blob at the given key
	Upload(ctx context.Context, key string, reader io.Reader, params UploadParams) error

	// Download returns a read handle for the blob. The caller must close it.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists reports whether a blob is present at the key
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes the blob at the key
	Delete(ctx context.Context, key string) error

	// TemporaryURL mints a time-limited URL for the blob. Backends without
	// native support return ErrTemporaryURLUnsupported.
	TemporaryURL(ctx context.Context, key string, expiresIn time.Duration) (string, error)
}

// UploadParams carries per-object write options for a BlobStore
type UploadParams struct {
	MimeType   string
	Visibility Visibility
}

// Repository defines the interface for asset record persistence.
//
// Implementations enforce storage-key uniqueness among rows that have not
// been hard-deleted; the service-level duplicate check is advisory and the
// repository constraint is the backstop under concurrent uploads.
type Repository interface {
	Create(ctx context.Context, asset *Asset) error
	Get(ctx context.Context, id uuid.UUID) (*Asset, error)

	// GetIncludingDeleted looks an asset up by ID regardless of soft-delete
	// state, so force deletion can reach already-trashed rows.
	GetIncludingDeleted(ctx context.Context, id uuid.UUID) (*Asset, error)

	Update(ctx context.Context, asset *Asset) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	HardDelete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filters ListFilters) ([]*Asset, error)

	// StorageKeyInUse reports whether any non-hard-deleted record other than
	// ignoreID occupies the key. Soft-deleted rows count.
	StorageKeyInUse(ctx context.Context, key string, ignoreID *uuid.UUID) (bool, error)

	// MaxSortOrder returns the highest sort_order among live rows matching
	// the scope, or nil when no rows match.
	MaxSortOrder(ctx context.Context, scope SortScope) (*int, error)

	// ListSoftDeleted returns up to limit soft-deleted rows with IDs greater
	// than afterID, ascending by ID. Used for purge batching.
	ListSoftDeleted(ctx context.Context, afterID uuid.UUID, limit int) ([]*Asset, error)
}

// EventSink defines the interface for lifecycle event handling
type EventSink interface {
	// AssetUploaded is fired when an asset is created through upload
	AssetUploaded(ctx context.Context, asset *Asset) error

	// AssetUpdated is fired when an asset's metadata or file changes
	AssetUpdated(ctx context.Context, asset *Asset) error

	// AssetDeleted is fired on soft and hard delete
	AssetDeleted(ctx context.Context, assetID uuid.UUID) error

	// AssetPurged is fired for each asset removed by Purge
	AssetPurged(ctx context.Context, assetID uuid.UUID) error
}

// StreamURLSigner mints signed, expiring URLs for the streaming endpoint
// used as the temporary-URL fallback.
type StreamURLSigner interface {
	SignStreamURL(assetID uuid.UUID, expiresIn time.Duration) (string, error)
}
