package atlasassets

import "io"

// Request DTOs

// FileUpload describes an incoming file. Size is the client-declared byte
// size and is what the upload guard checks; the blob store consumes Reader.
type FileUpload struct {
	Reader   io.Reader
	FileName string
	MimeType string
	Size     int64
}

// UploadRequest contains parameters for uploading a new asset.
//
// AllowedExtensions distinguishes nil (no override, the configured lists
// apply) from an empty non-nil slice (exclusive override that admits
// nothing). MaxUploadSize nil means the configured limit applies; a pointer
// to zero or a negative value lifts the limit for this call.
type UploadRequest struct {
	File  FileUpload
	Owner *OwnerRef

	UserID   *string
	GroupID  *string
	Name     *string
	Label    *string
	Category *string
	Type     *int

	// SortOrder, when set, wins over auto-assignment. Negative values are
	// floored at zero.
	SortOrder *int

	AllowedExtensions []string
	MaxUploadSize     *int64
}

// UpdateRequest contains parameters for updating an asset. Nil fields are
// left unchanged; a pointer to an empty string clears the field. Supplying
// File replaces the stored blob, deleting the superseded one when the
// resolved key differs.
type UpdateRequest struct {
	File  *FileUpload
	Owner *OwnerRef

	UserID   *string
	GroupID  *string
	Name     *string
	Label    *string
	Category *string
	Type     *int

	SortOrder *int

	AllowedExtensions []string
	MaxUploadSize     *int64
}
