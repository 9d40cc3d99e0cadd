package atlasassets

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestAssetErrorUnwrap(t *testing.T) {
	id := uuid.New()
	err := &AssetError{AssetID: id, Op: "upload", Err: ErrDuplicateStorageKey}

	assert.ErrorIs(t, err, ErrDuplicateStorageKey)
	assert.Contains(t, err.Error(), "upload")
	assert.Contains(t, err.Error(), id.String())
}

func TestStorageErrorUnwrap(t *testing.T) {
	inner := errors.New("disk full")
	err := &StorageError{Key: "a/b.txt", Op: "upload", Err: inner}

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "a/b.txt")
}

func TestWrappedSentinelsSurviveFmt(t *testing.T) {
	err := fmt.Errorf("%w: context", ErrAssetNotFound)
	assert.ErrorIs(t, err, ErrAssetNotFound)
}
