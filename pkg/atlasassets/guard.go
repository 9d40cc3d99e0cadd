package atlasassets

import (
	"fmt"
	"slices"
)

// UploadGuard validates incoming files against extension allow/block lists
// and a maximum byte size before any storage write happens.
type UploadGuard struct {
	allowed []string
	blocked []string
	maxSize int64
}

// GuardConfig configures an UploadGuard. Empty lists impose no restriction;
// a MaxSize of zero or less means unlimited.
type GuardConfig struct {
	AllowedExtensions []string
	BlockedExtensions []string
	MaxSize           int64
}

// NewUploadGuard creates an UploadGuard from the given configuration.
func NewUploadGuard(cfg GuardConfig) *UploadGuard {
	return &UploadGuard{
		allowed: normalizeExtensions(cfg.AllowedExtensions, true),
		blocked: normalizeExtensions(cfg.BlockedExtensions, true),
		maxSize: cfg.MaxSize,
	}
}

// Validate fails fast when the file's extension or declared size violates
// the effective constraints. allowedOverride, when non-nil, replaces the
// configured allow-list for this call only; the block-list still wins.
// sizeOverride, when non-nil, replaces the configured limit (zero or
// negative lifts it).
func (g *UploadGuard) Validate(file FileUpload, allowedOverride []string, sizeOverride *int64) error {
	ext := fileExtension(file.FileName)

	if slices.Contains(g.blocked, ext) {
		return fmt.Errorf("%w: the extension %q is blocked for asset uploads", ErrDisallowedExtension, ext)
	}

	if allowedOverride != nil {
		allowed := normalizeExtensions(allowedOverride, false)
		if !slices.Contains(allowed, ext) {
			return fmt.Errorf("%w: the extension %q is not included in the provided allowed extensions list", ErrDisallowedExtension, ext)
		}
	} else if len(g.allowed) > 0 && !slices.Contains(g.allowed, ext) {
		return fmt.Errorf("%w: the extension %q is not allowed by the configured whitelist", ErrDisallowedExtension, ext)
	}

	limit := g.maxSize
	if sizeOverride != nil {
		limit = *sizeOverride
	}
	if limit > 0 && file.Size > limit {
		return fmt.Errorf("%w: the uploaded file exceeds the maximum allowed size of %d bytes", ErrUploadSizeExceeded, limit)
	}

	return nil
}
