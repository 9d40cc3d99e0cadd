package atlasassets

import (
	"context"
	"strings"
)

// SortOrderFunc is a caller-supplied strategy for computing the next sort
// order. Results are normalized to non-negative integers.
type SortOrderFunc func(owner *OwnerRef, scope SortScope) int

// SortOrderResolver computes the next ordering value for a new asset within
// the configured grouping scope, or defers to a caller-supplied function.
type SortOrderResolver struct {
	repo   Repository
	scopes []string
	fn     SortOrderFunc
}

// NewSortOrderResolver creates a resolver over the given repository. scopes
// lists the columns that group assets for auto-incrementing order; when both
// scopes and fn are empty, ordering is disabled and Next returns nil.
func NewSortOrderResolver(repo Repository, scopes []string, fn SortOrderFunc) *SortOrderResolver {
	cleaned := make([]string, 0, len(scopes))
	for _, s := range scopes {
		if v := strings.TrimSpace(s); v != "" {
			cleaned = append(cleaned, v)
		}
	}
	return &SortOrderResolver{repo: repo, scopes: cleaned, fn: fn}
}

// Next returns the sort order for a new asset, or nil when ordering is
// disabled (the caller then defaults to zero).
func (r *SortOrderResolver) Next(ctx context.Context, owner *OwnerRef, scope SortScope) (*int, error) {
	if r.fn != nil {
		v := r.fn(owner, scope)
		if v < 0 {
			v = 0
		}
		return &v, nil
	}

	if len(r.scopes) == 0 {
		return nil, nil
	}

	constrained := make(SortScope, len(r.scopes))
	for _, column := range r.scopes {
		value := scope[column]
		if value != nil && strings.TrimSpace(*value) == "" {
			value = nil
		}
		constrained[column] = value
	}

	max, err := r.repo.MaxSortOrder(ctx, constrained)
	if err != nil {
		return nil, err
	}

	next := 0
	if max != nil {
		next = *max + 1
	}
	if next < 0 {
		next = 0
	}
	return &next, nil
}
