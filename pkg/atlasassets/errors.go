package atlasassets

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrAssetNotFound indicates an asset record was not found
	ErrAssetNotFound = errors.New("asset not found")

	// ErrFileNotFound indicates the blob for an asset is missing on the store
	ErrFileNotFound = errors.New("asset file not found on storage")

	// ErrDisallowedExtension indicates the file extension failed the upload guard
	ErrDisallowedExtension = errors.New("disallowed file extension")

	// ErrUploadSizeExceeded indicates the file is larger than the effective limit
	ErrUploadSizeExceeded = errors.New("upload size limit exceeded")

	// ErrInvalidType indicates a type tag outside the [0,255] range
	ErrInvalidType = errors.New("asset type must be an integer between 0 and 255")

	// ErrDuplicateStorageKey indicates the resolved storage key is already in use
	ErrDuplicateStorageKey = errors.New("storage key already in use")

	// ErrStreamUnreadable indicates the blob store returned an unreadable handle
	ErrStreamUnreadable = errors.New("asset file could not be read from storage")

	// ErrTemporaryURLUnsupported is returned by blob stores that cannot mint
	// temporary URLs; the service falls back to a signed stream URL.
	ErrTemporaryURLUnsupported = errors.New("temporary URLs not supported by storage backend")
)

// AssetError wraps a failure of a lifecycle operation on a specific asset.
type AssetError struct {
	AssetID uuid.UUID
	Op      string
	Err     error
}

func (e *AssetError) Error() string {
	return fmt.Sprintf("asset operation %s failed for asset %s: %v", e.Op, e.AssetID, e.Err)
}

func (e *AssetError) Unwrap() error {
	return e.Err
}

// StorageError wraps a failure of a blob store operation.
type StorageError struct {
	Key string
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
