package config

import (
	"fmt"
	"time"

	"github.com/atlas-labs/atlas-assets/pkg/atlasassets"
	"github.com/atlas-labs/atlas-assets/pkg/atlasassets/assetpath"
)

// WithDatabase configures the database backend
func WithDatabase(dbType, url string) Option {
	return func(c *Config) error {
		if dbType != "memory" && dbType != "postgres" {
			return fmt.Errorf("database type must be 'memory' or 'postgres', got: %s", dbType)
		}
		if dbType == "postgres" && url == "" {
			return fmt.Errorf("database URL is required for postgres")
		}
		c.DatabaseType = dbType
		c.DatabaseURL = url
		return nil
	}
}

// WithDatabaseSchema sets the Postgres schema
func WithDatabaseSchema(schema string) Option {
	return func(c *Config) error {
		c.DBSchema = schema
		return nil
	}
}

// WithTableName sets the assets table name
func WithTableName(table string) Option {
	return func(c *Config) error {
		if table == "" {
			return fmt.Errorf("table name cannot be empty")
		}
		c.TableName = table
		return nil
	}
}

// WithMemoryStorage selects the in-memory storage backend
func WithMemoryStorage() Option {
	return func(c *Config) error {
		c.StorageBackend = "memory"
		return nil
	}
}

// WithFilesystemStorage selects filesystem storage rooted at baseDir
func WithFilesystemStorage(baseDir string) Option {
	return func(c *Config) error {
		if baseDir == "" {
			return fmt.Errorf("filesystem base directory cannot be empty")
		}
		c.StorageBackend = "fs"
		c.FSBaseDir = baseDir
		return nil
	}
}

// WithS3Storage selects the S3 storage backend
func WithS3Storage(s3 S3Config) Option {
	return func(c *Config) error {
		if s3.Bucket == "" {
			return fmt.Errorf("s3 bucket cannot be empty")
		}
		c.StorageBackend = "s3"
		c.S3 = s3
		return nil
	}
}

// WithPathPattern sets the storage key pattern
func WithPathPattern(pattern string) Option {
	return func(c *Config) error {
		if pattern == "" {
			return fmt.Errorf("path pattern cannot be empty")
		}
		c.PathPattern = pattern
		return nil
	}
}

// WithPathResolver sets a pre-built resolver, bypassing PathPattern
func WithPathResolver(resolver *assetpath.Resolver) Option {
	return func(c *Config) error {
		c.PathResolver = resolver
		return nil
	}
}

// WithUploadPolicy sets the extension lists and size cap applied to uploads
func WithUploadPolicy(allowed, blocked []string, maxSize int64) Option {
	return func(c *Config) error {
		c.AllowedExtensions = allowed
		c.BlockedExtensions = blocked
		c.MaxUploadSize = maxSize
		return nil
	}
}

// WithSortScopes sets the scope columns for auto-assigned sort order
func WithSortScopes(scopes ...string) Option {
	return func(c *Config) error {
		c.SortScopes = scopes
		return nil
	}
}

// WithSortOrderFunc sets a caller-supplied sort order strategy
func WithSortOrderFunc(fn atlasassets.SortOrderFunc) Option {
	return func(c *Config) error {
		c.SortOrderFunc = fn
		return nil
	}
}

// WithVisibility sets the blob visibility applied on upload
func WithVisibility(v atlasassets.Visibility) Option {
	return func(c *Config) error {
		if v != atlasassets.VisibilityPublic && v != atlasassets.VisibilityPrivate {
			return fmt.Errorf("visibility must be 'public' or 'private', got: %s", v)
		}
		c.Visibility = v
		return nil
	}
}

// WithDeleteFilesOnSoftDelete makes soft deletes also remove the blob
func WithDeleteFilesOnSoftDelete(enabled bool) Option {
	return func(c *Config) error {
		c.DeleteFilesOnSoftDelete = enabled
		return nil
	}
}

// WithStreamSigning configures the HMAC-signed stream URL fallback
func WithStreamSigning(secretKey string, ttl time.Duration) Option {
	return func(c *Config) error {
		if secretKey == "" {
			return fmt.Errorf("stream secret key cannot be empty")
		}
		c.StreamSecretKey = secretKey
		if ttl > 0 {
			c.StreamTTL = ttl
		}
		return nil
	}
}

// WithStreamRoute sets the stream route pattern and optional absolute base URL
func WithStreamRoute(pattern, baseURL string) Option {
	return func(c *Config) error {
		if pattern != "" {
			c.StreamRoute = pattern
		}
		c.StreamBaseURL = baseURL
		return nil
	}
}

// WithEventSink sets the lifecycle event sink
func WithEventSink(sink atlasassets.EventSink) Option {
	return func(c *Config) error {
		c.EventSink = sink
		return nil
	}
}
