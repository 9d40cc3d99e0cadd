package atlasassets

import (
	"context"

	"github.com/google/uuid"
)

// NoopEventSink is an EventSink that ignores all events
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-op event sink
func NewNoopEventSink() *NoopEventSink {
	return &NoopEventSink{}
}

func (s *NoopEventSink) AssetUploaded(ctx context.Context, asset *Asset) error { return nil }

func (s *NoopEventSink) AssetUpdated(ctx context.Context, asset *Asset) error { return nil }

func (s *NoopEventSink) AssetDeleted(ctx context.Context, assetID uuid.UUID) error { return nil }

func (s *NoopEventSink) AssetPurged(ctx context.Context, assetID uuid.UUID) error { return nil }
