package atlasassets

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/atlas-labs/atlas-assets/pkg/atlasassets/assetpath"
)

// service implements the Service interface
type service struct {
	repository Repository
	blobStore  BlobStore
	pathRes    *assetpath.Resolver
	guard      *UploadGuard
	sortRes    *SortOrderResolver
	eventSink  EventSink
	signer     StreamURLSigner

	visibility              Visibility
	deleteFilesOnSoftDelete bool

	sortScopes []string
	sortFn     SortOrderFunc
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the asset record repository
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore sets the blob storage backend
func WithBlobStore(store BlobStore) Option {
	return func(s *service) {
		s.blobStore = store
	}
}

// WithPathResolver sets the storage key resolver
func WithPathResolver(resolver *assetpath.Resolver) Option {
	return func(s *service) {
		s.pathRes = resolver
	}
}

// WithUploadGuard sets the upload validation constraints
func WithUploadGuard(cfg GuardConfig) Option {
	return func(s *service) {
		s.guard = NewUploadGuard(cfg)
	}
}

// WithSortScopes sets the scope columns used for auto-assigned sort order
func WithSortScopes(scopes ...string) Option {
	return func(s *service) {
		s.sortScopes = scopes
	}
}

// WithSortOrderFunc sets a caller-supplied sort order strategy, which takes
// precedence over configured scopes
func WithSortOrderFunc(fn SortOrderFunc) Option {
	return func(s *service) {
		s.sortFn = fn
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithVisibility sets the blob visibility applied on every write
func WithVisibility(v Visibility) Option {
	return func(s *service) {
		s.visibility = v
	}
}

// WithDeleteFilesOnSoftDelete makes soft deletes also remove the blob
func WithDeleteFilesOnSoftDelete(enabled bool) Option {
	return func(s *service) {
		s.deleteFilesOnSoftDelete = enabled
	}
}

// WithStreamURLSigner sets the signer used for the temporary-URL fallback
func WithStreamURLSigner(signer StreamURLSigner) Option {
	return func(s *service) {
		s.signer = signer
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		visibility: VisibilityPrivate,
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.blobStore == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if s.pathRes == nil {
		return nil, fmt.Errorf("path resolver is required")
	}
	if s.guard == nil {
		s.guard = NewUploadGuard(GuardConfig{})
	}

	s.sortRes = NewSortOrderResolver(s.repository, s.sortScopes, s.sortFn)

	return s, nil
}

// storedFile holds the facts recorded after a blob write.
type storedFile struct {
	key          string
	mimeType     string
	extension    string
	size         int64
	originalName string
}

// Lifecycle operations

func (s *service) Upload(ctx context.Context, req UploadRequest) (*Asset, error) {
	stored, err := s.storeFile(ctx, req.File, req.Owner, req.UserID, req.AllowedExtensions, req.MaxUploadSize)
	if err != nil {
		return nil, err
	}

	inUse, err := s.repository.StorageKeyInUse(ctx, stored.key, nil)
	if err != nil {
		return nil, err
	}
	if inUse {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateStorageKey, stored.key)
	}

	label := sanitizeString(req.Label)
	category := sanitizeString(req.Category)
	typeTag, err := sanitizeType(req.Type)
	if err != nil {
		return nil, err
	}
	name := stored.originalName
	if n := sanitizeString(req.Name); n != nil {
		name = *n
	}

	sortOrder := 0
	if manual := normalizeSortOrder(req.SortOrder); manual != nil {
		sortOrder = *manual
	} else {
		scope := buildSortScope(req.Owner, req.UserID, req.GroupID, label, category, typeTag)
		next, err := s.sortRes.Next(ctx, req.Owner, scope)
		if err != nil {
			return nil, err
		}
		if next != nil {
			sortOrder = *next
		}
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate asset id: %w", err)
	}

	now := time.Now().UTC()
	asset := &Asset{
		ID:               id,
		UserID:           sanitizeString(req.UserID),
		GroupID:          sanitizeString(req.GroupID),
		StorageKey:       stored.key,
		MimeType:         stored.mimeType,
		Extension:        stored.extension,
		Size:             stored.size,
		Name:             name,
		OriginalFileName: stored.originalName,
		Label:            label,
		Category:         category,
		Type:             typeTag,
		SortOrder:        sortOrder,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if req.Owner != nil {
		asset.OwnerType = &req.Owner.Type
		asset.OwnerID = &req.Owner.ID
	}

	if err := s.repository.Create(ctx, asset); err != nil {
		return nil, &AssetError{AssetID: asset.ID, Op: "upload", Err: err}
	}

	if s.eventSink != nil {
		// Events are best-effort; the record is already committed.
		_ = s.eventSink.AssetUploaded(ctx, asset)
	}

	return asset, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*Asset, error) {
	asset, err := s.repository.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	changed := false

	if req.Owner != nil {
		asset.OwnerType = &req.Owner.Type
		asset.OwnerID = &req.Owner.ID
		changed = true
	}

	if req.File != nil {
		owner := req.Owner
		if owner == nil {
			owner = asset.Owner()
		}
		userID := req.UserID
		if userID == nil {
			userID = asset.UserID
		}

		stored, err := s.storeFile(ctx, *req.File, owner, userID, req.AllowedExtensions, req.MaxUploadSize)
		if err != nil {
			return nil, err
		}

		oldKey := asset.StorageKey

		asset.StorageKey = stored.key
		asset.MimeType = stored.mimeType
		asset.Extension = stored.extension
		asset.Size = stored.size
		asset.OriginalFileName = stored.originalName
		asset.Name = stored.originalName
		if n := sanitizeString(req.Name); n != nil {
			asset.Name = *n
		}
		changed = true

		// Same-key replacement overwrites in place; only a key change makes
		// the superseded blob garbage.
		if stored.key != oldKey {
			s.deleteBlob(ctx, oldKey)
		}
	}

	if req.Name != nil && req.File == nil {
		if n := sanitizeString(req.Name); n != nil {
			asset.Name = *n
			changed = true
		}
	}
	if req.Label != nil {
		asset.Label = sanitizeString(req.Label)
		changed = true
	}
	if req.Category != nil {
		asset.Category = sanitizeString(req.Category)
		changed = true
	}
	if req.Type != nil {
		typeTag, err := sanitizeType(req.Type)
		if err != nil {
			return nil, err
		}
		asset.Type = typeTag
		changed = true
	}
	if req.UserID != nil {
		asset.UserID = sanitizeString(req.UserID)
		changed = true
	}
	if req.GroupID != nil {
		asset.GroupID = sanitizeString(req.GroupID)
		changed = true
	}
	if req.SortOrder != nil {
		asset.SortOrder = *normalizeSortOrder(req.SortOrder)
		changed = true
	}

	if !changed {
		return asset, nil
	}

	inUse, err := s.repository.StorageKeyInUse(ctx, asset.StorageKey, &asset.ID)
	if err != nil {
		return nil, err
	}
	if inUse {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateStorageKey, asset.StorageKey)
	}

	asset.UpdatedAt = time.Now().UTC()
	if err := s.repository.Update(ctx, asset); err != nil {
		return nil, &AssetError{AssetID: asset.ID, Op: "update", Err: err}
	}

	if s.eventSink != nil {
		_ = s.eventSink.AssetUpdated(ctx, asset)
	}

	return asset, nil
}

func (s *service) Replace(ctx context.Context, id uuid.UUID, file FileUpload, req UpdateRequest) (*Asset, error) {
	req.File = &file
	return s.Update(ctx, id, req)
}

func (s *service) Delete(ctx context.Context, id uuid.UUID, force bool) error {
	var (
		asset *Asset
		err   error
	)
	if force {
		// Force deletion reaches soft-deleted rows too.
		asset, err = s.repository.GetIncludingDeleted(ctx, id)
	} else {
		asset, err = s.repository.Get(ctx, id)
	}
	if err != nil {
		return err
	}

	if force {
		s.deleteBlob(ctx, asset.StorageKey)
		if err := s.repository.HardDelete(ctx, id); err != nil {
			return &AssetError{AssetID: id, Op: "force_delete", Err: err}
		}
	} else {
		if err := s.repository.SoftDelete(ctx, id); err != nil {
			return &AssetError{AssetID: id, Op: "delete", Err: err}
		}
		if s.deleteFilesOnSoftDelete {
			s.deleteBlob(ctx, asset.StorageKey)
		}
	}

	if s.eventSink != nil {
		_ = s.eventSink.AssetDeleted(ctx, id)
	}

	return nil
}

func (s *service) Purge(ctx context.Context, batchSize int) (int, error) {
	if batchSize < 1 {
		batchSize = 1
	}

	purged := 0
	after := uuid.Nil
	for {
		batch, err := s.repository.ListSoftDeleted(ctx, after, batchSize)
		if err != nil {
			return purged, err
		}
		if len(batch) == 0 {
			return purged, nil
		}

		for _, asset := range batch {
			s.deleteBlob(ctx, asset.StorageKey)
			if err := s.repository.HardDelete(ctx, asset.ID); err != nil {
				return purged, &AssetError{AssetID: asset.ID, Op: "purge", Err: err}
			}
			purged++

			if s.eventSink != nil {
				_ = s.eventSink.AssetPurged(ctx, asset.ID)
			}
		}

		after = batch[len(batch)-1].ID
	}
}

// Retrieval operations

func (s *service) Get(ctx context.Context, id uuid.UUID) (*Asset, error) {
	return s.repository.Get(ctx, id)
}

func (s *service) List(ctx context.Context, filters ListFilters) ([]*Asset, error) {
	return s.repository.List(ctx, filters)
}

func (s *service) Download(ctx context.Context, id uuid.UUID) ([]byte, error) {
	asset, err := s.repository.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guardFileExists(ctx, asset); err != nil {
		return nil, err
	}

	rc, err := s.blobStore.Download(ctx, asset.StorageKey)
	if err != nil {
		return nil, &StorageError{Key: asset.StorageKey, Op: "download", Err: err}
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, &StorageError{Key: asset.StorageKey, Op: "download", Err: err}
	}
	return data, nil
}

func (s *service) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	asset, err := s.repository.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return s.blobStore.Exists(ctx, asset.StorageKey)
}

func (s *service) TemporaryURL(ctx context.Context, id uuid.UUID, expiresIn time.Duration) (string, error) {
	asset, err := s.repository.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if err := s.guardFileExists(ctx, asset); err != nil {
		return "", err
	}

	url, err := s.blobStore.TemporaryURL(ctx, asset.StorageKey, expiresIn)
	if err == nil {
		return url, nil
	}
	if s.signer == nil {
		return "", err
	}

	// Unsupported or failed native issuance falls back to the signed
	// streaming endpoint.
	return s.signer.SignStreamURL(asset.ID, expiresIn)
}

func (s *service) Stream(ctx context.Context, id uuid.UUID) (*AssetStream, error) {
	asset, err := s.repository.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guardFileExists(ctx, asset); err != nil {
		return nil, err
	}

	rc, err := s.blobStore.Download(ctx, asset.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrStreamUnreadable, asset.StorageKey)
	}

	return &AssetStream{Asset: asset, Body: rc}, nil
}

// Helpers

func (s *service) storeFile(ctx context.Context, file FileUpload, owner *OwnerRef, userID *string, allowedOverride []string, sizeOverride *int64) (*storedFile, error) {
	if err := s.guard.Validate(file, allowedOverride, sizeOverride); err != nil {
		return nil, err
	}

	pathCtx := assetpath.Context{}
	if owner != nil {
		pathCtx.OwnerType = owner.Type
		pathCtx.OwnerID = owner.ID
	}
	if userID != nil {
		pathCtx.UserID = *userID
	}

	key, err := s.pathRes.Resolve(pathCtx, assetpath.File{OriginalName: file.FileName})
	if err != nil {
		return nil, err
	}

	mimeType := file.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	err = s.blobStore.Upload(ctx, key, file.Reader, UploadParams{
		MimeType:   mimeType,
		Visibility: s.visibility,
	})
	if err != nil {
		return nil, &StorageError{Key: key, Op: "upload", Err: err}
	}

	size := file.Size
	if size < 0 {
		size = 0
	}

	originalName := "file"
	if n := sanitizeString(&file.FileName); n != nil {
		originalName = *n
	}

	return &storedFile{
		key:          key,
		mimeType:     mimeType,
		extension:    fileExtension(file.FileName),
		size:         size,
		originalName: originalName,
	}, nil
}

// deleteBlob removes a blob when present. Missing blobs are not an error
// here: delete flows stay idempotent and purge tolerates orphaned records.
func (s *service) deleteBlob(ctx context.Context, key string) {
	if key == "" {
		return
	}
	exists, err := s.blobStore.Exists(ctx, key)
	if err != nil || !exists {
		return
	}
	_ = s.blobStore.Delete(ctx, key)
}

func (s *service) guardFileExists(ctx context.Context, asset *Asset) error {
	exists, err := s.blobStore.Exists(ctx, asset.StorageKey)
	if err != nil {
		return &StorageError{Key: asset.StorageKey, Op: "exists", Err: err}
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrFileNotFound, asset.StorageKey)
	}
	return nil
}

func buildSortScope(owner *OwnerRef, userID, groupID, label, category *string, typeTag *int) SortScope {
	scope := SortScope{
		ScopeOwnerType: nil,
		ScopeOwnerID:   nil,
		ScopeUserID:    sanitizeString(userID),
		ScopeGroupID:   sanitizeString(groupID),
		ScopeLabel:     label,
		ScopeCategory:  category,
		ScopeType:      nil,
	}
	if owner != nil {
		ownerType := owner.Type
		ownerID := owner.ID
		scope[ScopeOwnerType] = &ownerType
		scope[ScopeOwnerID] = &ownerID
	}
	if typeTag != nil {
		t := strconv.Itoa(*typeTag)
		scope[ScopeType] = &t
	}
	return scope
}
