package atlasassets

import (
	"time"

	"github.com/google/uuid"
)

// Visibility controls how blobs are stored on the backing store.
type Visibility string

// Visibility constants (typed).
const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// OwnerRef identifies the application entity an asset is attached to.
// The type tag is derived once by the caller (e.g. "invoice", "user_profile");
// the core never inspects the owning entity itself.
type OwnerRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Asset is the persisted record describing one uploaded file.
//
// IDs are UUIDv7, so lexical/byte order on ID is creation order. StorageKey is
// unique among all records that have not been hard-deleted; soft-deleted rows
// still occupy the key space until purged.
type Asset struct {
	ID        uuid.UUID `json:"id"`
	UserID    *string   `json:"user_id,omitempty"`
	GroupID   *string   `json:"group_id,omitempty"`
	OwnerType *string   `json:"owner_type,omitempty"`
	OwnerID   *string   `json:"owner_id,omitempty"`

	StorageKey       string `json:"storage_key"`
	MimeType         string `json:"mime_type"`
	Extension        string `json:"extension"`
	Size             int64  `json:"size"`
	Name             string `json:"name"`
	OriginalFileName string `json:"original_file_name"`

	Label    *string `json:"label,omitempty"`
	Category *string `json:"category,omitempty"`
	Type     *int    `json:"type,omitempty"`

	SortOrder int `json:"sort_order"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Owner returns the owning-entity reference, or nil when the asset is
// unattached.
func (a *Asset) Owner() *OwnerRef {
	if a.OwnerType == nil || a.OwnerID == nil {
		return nil
	}
	return &OwnerRef{Type: *a.OwnerType, ID: *a.OwnerID}
}

// ListFilters narrows List queries. Nil fields are ignored. Results are
// ordered by ID descending (newest first).
type ListFilters struct {
	Owner    *OwnerRef
	UserID   *string
	GroupID  *string
	Label    *string
	Category *string

	Limit  *int
	Offset *int

	// BeforeID enables cursor pagination: only assets with an ID strictly
	// smaller (older) than the cursor are returned.
	BeforeID *uuid.UUID
}

// SortScope maps scope column names to the value an auto-sort query must
// match. A nil value is an explicit IS NULL constraint.
type SortScope map[string]*string

// Recognized sort scope column names.
const (
	ScopeOwnerType = "owner_type"
	ScopeOwnerID   = "owner_id"
	ScopeUserID    = "user_id"
	ScopeGroupID   = "group_id"
	ScopeLabel     = "label"
	ScopeCategory  = "category"
	ScopeType      = "type"
)
