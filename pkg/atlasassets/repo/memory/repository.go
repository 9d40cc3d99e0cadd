package memory

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/atlas-labs/atlas-assets/pkg/atlasassets"
)

// Repository implements atlasassets.Repository using in-memory storage
type Repository struct {
	mu     sync.RWMutex
	assets map[uuid.UUID]*atlasassets.Asset
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		assets: make(map[uuid.UUID]*atlasassets.Asset),
	}
}

func (r *Repository) Create(ctx context.Context, asset *atlasassets.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Unique-constraint backstop: the service check is advisory only.
	for _, existing := range r.assets {
		if existing.StorageKey == asset.StorageKey && existing.ID != asset.ID {
			return atlasassets.ErrDuplicateStorageKey
		}
	}

	// Store a copy to avoid external modifications
	assetCopy := *asset
	r.assets[asset.ID] = &assetCopy

	return nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*atlasassets.Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	asset, exists := r.assets[id]
	if !exists || asset.DeletedAt != nil {
		return nil, atlasassets.ErrAssetNotFound
	}

	assetCopy := *asset
	return &assetCopy, nil
}

func (r *Repository) GetIncludingDeleted(ctx context.Context, id uuid.UUID) (*atlasassets.Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	asset, exists := r.assets[id]
	if !exists {
		return nil, atlasassets.ErrAssetNotFound
	}

	assetCopy := *asset
	return &assetCopy, nil
}

func (r *Repository) Update(ctx context.Context, asset *atlasassets.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.assets[asset.ID]
	if !exists || existing.DeletedAt != nil {
		return atlasassets.ErrAssetNotFound
	}

	for _, other := range r.assets {
		if other.ID != asset.ID && other.StorageKey == asset.StorageKey {
			return atlasassets.ErrDuplicateStorageKey
		}
	}

	assetCopy := *asset
	r.assets[asset.ID] = &assetCopy

	return nil
}

func (r *Repository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	asset, exists := r.assets[id]
	if !exists || asset.DeletedAt != nil {
		return atlasassets.ErrAssetNotFound
	}

	now := time.Now().UTC()
	asset.DeletedAt = &now
	asset.UpdatedAt = now
	return nil
}

func (r *Repository) HardDelete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.assets[id]; !exists {
		return atlasassets.ErrAssetNotFound
	}

	delete(r.assets, id)
	return nil
}

func (r *Repository) List(ctx context.Context, filters atlasassets.ListFilters) ([]*atlasassets.Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*atlasassets.Asset
	for _, asset := range r.assets {
		if asset.DeletedAt != nil {
			continue
		}
		if !matchesFilters(asset, filters) {
			continue
		}
		assetCopy := *asset
		result = append(result, &assetCopy)
	}

	// UUIDv7 IDs order by creation time, newest first.
	sort.Slice(result, func(i, j int) bool {
		return bytes.Compare(result[i].ID[:], result[j].ID[:]) > 0
	})

	if filters.BeforeID != nil {
		cursor := *filters.BeforeID
		trimmed := result[:0]
		for _, asset := range result {
			if bytes.Compare(asset.ID[:], cursor[:]) < 0 {
				trimmed = append(trimmed, asset)
			}
		}
		result = trimmed
	}

	if filters.Offset != nil && *filters.Offset > 0 {
		if *filters.Offset >= len(result) {
			return nil, nil
		}
		result = result[*filters.Offset:]
	}

	if filters.Limit != nil && *filters.Limit >= 0 && len(result) > *filters.Limit {
		result = result[:*filters.Limit]
	}

	return result, nil
}

func (r *Repository) StorageKeyInUse(ctx context.Context, key string, ignoreID *uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Soft-deleted assets still occupy the key space until purged.
	for _, asset := range r.assets {
		if ignoreID != nil && asset.ID == *ignoreID {
			continue
		}
		if asset.StorageKey == key {
			return true, nil
		}
	}
	return false, nil
}

func (r *Repository) MaxSortOrder(ctx context.Context, scope atlasassets.SortScope) (*int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for column := range scope {
		if !validScopeColumn(column) {
			return nil, fmt.Errorf("unsupported sort scope column: %s", column)
		}
	}

	var max *int
	for _, asset := range r.assets {
		if asset.DeletedAt != nil {
			continue
		}
		if !matchesScope(asset, scope) {
			continue
		}
		if max == nil || asset.SortOrder > *max {
			v := asset.SortOrder
			max = &v
		}
	}
	return max, nil
}

func (r *Repository) ListSoftDeleted(ctx context.Context, afterID uuid.UUID, limit int) ([]*atlasassets.Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*atlasassets.Asset
	for _, asset := range r.assets {
		if asset.DeletedAt == nil {
			continue
		}
		if bytes.Compare(asset.ID[:], afterID[:]) <= 0 {
			continue
		}
		assetCopy := *asset
		result = append(result, &assetCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return bytes.Compare(result[i].ID[:], result[j].ID[:]) < 0
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

func matchesFilters(asset *atlasassets.Asset, filters atlasassets.ListFilters) bool {
	if filters.Owner != nil {
		if asset.OwnerType == nil || asset.OwnerID == nil {
			return false
		}
		if *asset.OwnerType != filters.Owner.Type || *asset.OwnerID != filters.Owner.ID {
			return false
		}
	}
	if filters.UserID != nil && !equalPtr(asset.UserID, filters.UserID) {
		return false
	}
	if filters.GroupID != nil && !equalPtr(asset.GroupID, filters.GroupID) {
		return false
	}
	if filters.Label != nil && !equalPtr(asset.Label, filters.Label) {
		return false
	}
	if filters.Category != nil && !equalPtr(asset.Category, filters.Category) {
		return false
	}
	return true
}

func matchesScope(asset *atlasassets.Asset, scope atlasassets.SortScope) bool {
	for column, want := range scope {
		got := scopeValue(asset, column)
		if want == nil {
			if got != nil {
				return false
			}
			continue
		}
		if got == nil || *got != *want {
			return false
		}
	}
	return true
}

func validScopeColumn(column string) bool {
	switch column {
	case atlasassets.ScopeOwnerType, atlasassets.ScopeOwnerID, atlasassets.ScopeUserID,
		atlasassets.ScopeGroupID, atlasassets.ScopeLabel, atlasassets.ScopeCategory,
		atlasassets.ScopeType:
		return true
	}
	return false
}

func scopeValue(asset *atlasassets.Asset, column string) *string {
	switch column {
	case atlasassets.ScopeOwnerType:
		return asset.OwnerType
	case atlasassets.ScopeOwnerID:
		return asset.OwnerID
	case atlasassets.ScopeUserID:
		return asset.UserID
	case atlasassets.ScopeGroupID:
		return asset.GroupID
	case atlasassets.ScopeLabel:
		return asset.Label
	case atlasassets.ScopeCategory:
		return asset.Category
	case atlasassets.ScopeType:
		if asset.Type == nil {
			return nil
		}
		v := strconv.Itoa(*asset.Type)
		return &v
	}
	return nil
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
