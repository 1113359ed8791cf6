package domain

import (
	"context"
	"time"
)

// CacheRepository stores serialized prediction results
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// BundleStore persists model bundles. Save must be atomic: a reader never
// observes a partially written bundle.
type BundleStore interface {
	Save(ctx context.Context, bundle *ModelBundle) (string, error)
	Load(ctx context.Context, category Category) (*ModelBundle, error)
	Metadata(ctx context.Context, category Category) (*BundleMetadata, error)
	Versions(ctx context.Context, category Category) ([]string, error)
}

// ListingSource supplies raw listings for a training run
type ListingSource interface {
	Listings(ctx context.Context, category Category) ([]RawListingRecord, error)
}
