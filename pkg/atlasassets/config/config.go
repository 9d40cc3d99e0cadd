// Package config assembles an atlasassets.Service from explicit
// configuration. It wires the repository, the storage backend and the
// upload policy together so applications only need to describe what
// they want, not how to build it.
package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-labs/atlas-assets/pkg/atlasassets"
	"github.com/atlas-labs/atlas-assets/pkg/atlasassets/assetpath"
	"github.com/atlas-labs/atlas-assets/pkg/atlasassets/presigned"
	repomemory "github.com/atlas-labs/atlas-assets/pkg/atlasassets/repo/memory"
	repopg "github.com/atlas-labs/atlas-assets/pkg/atlasassets/repo/postgres"
	fsstorage "github.com/atlas-labs/atlas-assets/pkg/atlasassets/storage/fs"
	memorystorage "github.com/atlas-labs/atlas-assets/pkg/atlasassets/storage/memory"
	s3storage "github.com/atlas-labs/atlas-assets/pkg/atlasassets/storage/s3"
)

// Option applies configuration to a Config instance.
type Option func(*Config) error

// Load constructs a Config by applying the supplied options on top of
// library defaults, then validates it.
func Load(opts ...Option) (*Config, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() Config {
	return Config{
		DatabaseType:   "memory",
		TableName:      "atlas_assets",
		StorageBackend: "memory",
		PathPattern:    "{model_type}/{model_id}/{file_name}_{random}.{extension}",
		Visibility:     atlasassets.VisibilityPrivate,
		StreamTTL:      5 * time.Minute,
		StreamRoute:    "/assets/{id}/stream",
	}
}

// Config describes a complete asset service deployment.
type Config struct {
	// Database configuration
	DatabaseType string // "memory", "postgres"
	DatabaseURL  string
	DBSchema     string // Postgres schema to use
	TableName    string // assets table name (default: atlas_assets)

	// Storage configuration
	StorageBackend string // "memory", "fs", "s3"
	FSBaseDir      string
	S3             S3Config

	// Storage key pattern, see assetpath for the supported placeholders
	PathPattern  string
	PathResolver *assetpath.Resolver // overrides PathPattern when set

	// Upload policy
	AllowedExtensions []string
	BlockedExtensions []string
	MaxUploadSize     int64 // bytes, <= 0 means unlimited

	// Ordering
	SortScopes    []string
	SortOrderFunc atlasassets.SortOrderFunc

	// Blob handling
	Visibility              atlasassets.Visibility
	DeleteFilesOnSoftDelete bool

	// Signed stream URLs, used when the storage backend cannot mint
	// temporary URLs itself
	StreamSecretKey string
	StreamRoute     string
	StreamBaseURL   string
	StreamTTL       time.Duration

	// Lifecycle hooks
	EventSink atlasassets.EventSink
}

// S3Config holds the S3 backend settings.
type S3Config struct {
	Region                 string
	Bucket                 string
	AccessKeyID            string
	SecretAccessKey        string
	Endpoint               string
	UsePathStyle           bool
	EnableSSE              bool
	SSEAlgorithm           string
	SSEKMSKeyID            string
	CreateBucketIfNotExist bool
}

// Validate checks the configuration for inconsistencies. The path
// pattern is parsed here so an unsupported placeholder fails at load
// time rather than on the first upload.
func (c *Config) Validate() error {
	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}
	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	switch c.StorageBackend {
	case "memory":
	case "fs":
		if c.FSBaseDir == "" {
			return errors.New("fs_base_dir is required when using fs storage")
		}
	case "s3":
		if c.S3.Bucket == "" {
			return errors.New("s3 bucket is required when using s3 storage")
		}
	default:
		return fmt.Errorf("unsupported storage backend: %s", c.StorageBackend)
	}

	if c.Visibility != atlasassets.VisibilityPublic && c.Visibility != atlasassets.VisibilityPrivate {
		return fmt.Errorf("visibility must be 'public' or 'private', got: %s", c.Visibility)
	}

	if c.PathResolver == nil {
		if _, err := assetpath.NewPatternResolver(c.PathPattern); err != nil {
			return fmt.Errorf("invalid path pattern: %w", err)
		}
	}

	return nil
}

// BuildService creates a Service instance from the configuration.
func (c *Config) BuildService() (atlasassets.Service, error) {
	repo, err := c.buildRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}

	store, err := c.buildStorageBackend()
	if err != nil {
		return nil, fmt.Errorf("failed to build storage backend: %w", err)
	}

	pathRes := c.PathResolver
	if pathRes == nil {
		pathRes, err = assetpath.NewPatternResolver(c.PathPattern)
		if err != nil {
			return nil, fmt.Errorf("invalid path pattern: %w", err)
		}
	}

	options := []atlasassets.Option{
		atlasassets.WithRepository(repo),
		atlasassets.WithBlobStore(store),
		atlasassets.WithPathResolver(pathRes),
		atlasassets.WithUploadGuard(atlasassets.GuardConfig{
			AllowedExtensions: c.AllowedExtensions,
			BlockedExtensions: c.BlockedExtensions,
			MaxSize:           c.MaxUploadSize,
		}),
		atlasassets.WithVisibility(c.Visibility),
	}

	if len(c.SortScopes) > 0 {
		options = append(options, atlasassets.WithSortScopes(c.SortScopes...))
	}
	if c.SortOrderFunc != nil {
		options = append(options, atlasassets.WithSortOrderFunc(c.SortOrderFunc))
	}
	if c.DeleteFilesOnSoftDelete {
		options = append(options, atlasassets.WithDeleteFilesOnSoftDelete(true))
	}
	if c.EventSink != nil {
		options = append(options, atlasassets.WithEventSink(c.EventSink))
	}
	if c.StreamSecretKey != "" {
		signer := c.BuildStreamSigner()
		options = append(options, atlasassets.WithStreamURLSigner(signer))
	}

	return atlasassets.New(options...)
}

// BuildStreamSigner creates the HMAC signer for the stream endpoint.
// Returns a disabled signer when no secret key is configured.
func (c *Config) BuildStreamSigner() *presigned.Signer {
	opts := []presigned.Option{
		presigned.WithRoutePattern(c.StreamRoute),
	}
	if c.StreamSecretKey != "" {
		opts = append(opts, presigned.WithSecretKey(c.StreamSecretKey))
	}
	if c.StreamTTL > 0 {
		opts = append(opts, presigned.WithDefaultExpiration(c.StreamTTL))
	}
	if c.StreamBaseURL != "" {
		opts = append(opts, presigned.WithBaseURL(c.StreamBaseURL))
	}
	return presigned.New(opts...)
}

func (c *Config) buildRepository() (atlasassets.Repository, error) {
	switch c.DatabaseType {
	case "memory":
		return repomemory.New(), nil
	case "postgres":
		if c.DatabaseURL == "" {
			return nil, errors.New("database_url is required for postgres")
		}
		cfg, err := pgxpool.ParseConfig(c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		schema := c.DBSchema
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			if schema == "" {
				return nil
			}
			_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", schema))
			return err
		}
		pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create pgx pool: %w", err)
		}
		if c.TableName != "" {
			return repopg.NewWithTable(pool, c.TableName), nil
		}
		return repopg.NewWithPool(pool), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

func (c *Config) buildStorageBackend() (atlasassets.BlobStore, error) {
	switch c.StorageBackend {
	case "memory":
		return memorystorage.New(), nil
	case "fs":
		return fsstorage.New(fsstorage.Config{BaseDir: c.FSBaseDir})
	case "s3":
		return s3storage.New(s3storage.Config{
			Region:                 c.S3.Region,
			Bucket:                 c.S3.Bucket,
			AccessKeyID:            c.S3.AccessKeyID,
			SecretAccessKey:        c.S3.SecretAccessKey,
			Endpoint:               c.S3.Endpoint,
			UsePathStyle:           c.S3.UsePathStyle,
			EnableSSE:              c.S3.EnableSSE,
			SSEAlgorithm:           c.S3.SSEAlgorithm,
			SSEKMSKeyID:            c.S3.SSEKMSKeyID,
			CreateBucketIfNotExist: c.S3.CreateBucketIfNotExist,
		})
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", c.StorageBackend)
	}
}

// PingPostgres verifies connectivity to Postgres and optionally sets
// search_path for the session. It fails if the schema (when provided)
// does not exist.
func PingPostgres(databaseURL, schema string) error {
	if databaseURL == "" {
		return errors.New("database_url is required")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", schema))
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("failed to create pgx pool: %w", err)
	}
	defer pool.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
