package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-labs/atlas-assets/pkg/atlasassets"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements atlasassets.Repository using PostgreSQL.
//
// Expected schema (see migrations/): an assets table with a partial unique
// index on storage_key, soft deletes via deleted_at.
type Repository struct {
	db    DBTX
	table string
}

// New creates a new PostgreSQL repository over the given connection
func New(db DBTX) *Repository {
	return &Repository{db: db, table: "atlas_assets"}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool, table: "atlas_assets"}
}

// NewWithTable creates a repository against a custom table name
func NewWithTable(db DBTX, table string) *Repository {
	if table == "" {
		table = "atlas_assets"
	}
	return &Repository{db: db, table: table}
}

const assetColumns = `
	id, user_id, group_id, owner_type, owner_id,
	storage_key, mime_type, extension, size, name, original_file_name,
	label, category, type, sort_order,
	created_at, updated_at, deleted_at`

func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if strings.Contains(pgErr.ConstraintName, "storage_key") {
				return atlasassets.ErrDuplicateStorageKey
			}
			return fmt.Errorf("duplicate entry")
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table %s does not exist - database migration required", r.table)
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return atlasassets.ErrAssetNotFound
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

func (r *Repository) Create(ctx context.Context, asset *atlasassets.Asset) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s) VALUES
		($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		r.table, assetColumns)

	_, err := r.db.Exec(ctx, query,
		asset.ID, asset.UserID, asset.GroupID, asset.OwnerType, asset.OwnerID,
		asset.StorageKey, asset.MimeType, asset.Extension, asset.Size, asset.Name, asset.OriginalFileName,
		asset.Label, asset.Category, asset.Type, asset.SortOrder,
		asset.CreatedAt, asset.UpdatedAt, asset.DeletedAt)

	if err != nil {
		return r.handlePostgresError("create asset", err)
	}

	return nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*atlasassets.Asset, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 AND deleted_at IS NULL`, assetColumns, r.table)

	asset, err := r.scanAsset(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, atlasassets.ErrAssetNotFound
		}
		return nil, err
	}
	return asset, nil
}

func (r *Repository) GetIncludingDeleted(ctx context.Context, id uuid.UUID) (*atlasassets.Asset, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, assetColumns, r.table)

	asset, err := r.scanAsset(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, atlasassets.ErrAssetNotFound
		}
		return nil, err
	}
	return asset, nil
}

func (r *Repository) Update(ctx context.Context, asset *atlasassets.Asset) error {
	query := fmt.Sprintf(`
		UPDATE %s SET
			user_id = $2, group_id = $3, owner_type = $4, owner_id = $5,
			storage_key = $6, mime_type = $7, extension = $8, size = $9,
			name = $10, original_file_name = $11, label = $12, category = $13,
			type = $14, sort_order = $15, updated_at = $16
		WHERE id = $1 AND deleted_at IS NULL`, r.table)

	tag, err := r.db.Exec(ctx, query,
		asset.ID, asset.UserID, asset.GroupID, asset.OwnerType, asset.OwnerID,
		asset.StorageKey, asset.MimeType, asset.Extension, asset.Size,
		asset.Name, asset.OriginalFileName, asset.Label, asset.Category,
		asset.Type, asset.SortOrder, asset.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("update asset", err)
	}
	if tag.RowsAffected() == 0 {
		return atlasassets.ErrAssetNotFound
	}
	return nil
}

func (r *Repository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	query := fmt.Sprintf(`UPDATE %s SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, r.table)

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return r.handlePostgresError("soft delete asset", err)
	}
	if tag.RowsAffected() == 0 {
		return atlasassets.ErrAssetNotFound
	}
	return nil
}

func (r *Repository) HardDelete(ctx context.Context, id uuid.UUID) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.table)

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return r.handlePostgresError("hard delete asset", err)
	}
	if tag.RowsAffected() == 0 {
		return atlasassets.ErrAssetNotFound
	}
	return nil
}

func (r *Repository) List(ctx context.Context, filters atlasassets.ListFilters) ([]*atlasassets.Asset, error) {
	var (
		conditions = []string{"deleted_at IS NULL"}
		args       []interface{}
	)

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.Owner != nil {
		conditions = append(conditions, "owner_type = "+arg(filters.Owner.Type))
		conditions = append(conditions, "owner_id = "+arg(filters.Owner.ID))
	}
	if filters.UserID != nil {
		conditions = append(conditions, "user_id = "+arg(*filters.UserID))
	}
	if filters.GroupID != nil {
		conditions = append(conditions, "group_id = "+arg(*filters.GroupID))
	}
	if filters.Label != nil {
		conditions = append(conditions, "label = "+arg(*filters.Label))
	}
	if filters.Category != nil {
		conditions = append(conditions, "category = "+arg(*filters.Category))
	}
	if filters.BeforeID != nil {
		conditions = append(conditions, "id < "+arg(*filters.BeforeID))
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY id DESC`,
		assetColumns, r.table, strings.Join(conditions, " AND "))

	if filters.Limit != nil && *filters.Limit >= 0 {
		query += " LIMIT " + arg(*filters.Limit)
	}
	if filters.Offset != nil && *filters.Offset > 0 {
		query += " OFFSET " + arg(*filters.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError("list assets", err)
	}
	defer rows.Close()

	return r.scanAssets(rows)
}

func (r *Repository) StorageKeyInUse(ctx context.Context, key string, ignoreID *uuid.UUID) (bool, error) {
	// Soft-deleted rows still hold their key until purged, so no
	// deleted_at filter here.
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE storage_key = $1 AND ($2::uuid IS NULL OR id <> $2))`, r.table)

	var inUse bool
	if err := r.db.QueryRow(ctx, query, key, ignoreID).Scan(&inUse); err != nil {
		return false, r.handlePostgresError("storage key lookup", err)
	}
	return inUse, nil
}

func (r *Repository) MaxSortOrder(ctx context.Context, scope atlasassets.SortScope) (*int, error) {
	var (
		conditions = []string{"deleted_at IS NULL"}
		args       []interface{}
	)

	for column, value := range scope {
		if !validScopeColumn(column) {
			return nil, fmt.Errorf("unsupported sort scope column: %s", column)
		}
		if value == nil {
			conditions = append(conditions, column+" IS NULL")
		} else {
			args = append(args, *value)
			conditions = append(conditions, fmt.Sprintf("%s::text = $%d", column, len(args)))
		}
	}

	query := fmt.Sprintf(`SELECT MAX(sort_order) FROM %s WHERE %s`,
		r.table, strings.Join(conditions, " AND "))

	var max *int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&max); err != nil {
		return nil, r.handlePostgresError("max sort order", err)
	}
	return max, nil
}

func (r *Repository) ListSoftDeleted(ctx context.Context, afterID uuid.UUID, limit int) ([]*atlasassets.Asset, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE deleted_at IS NOT NULL AND id > $1
		ORDER BY id ASC LIMIT $2`, assetColumns, r.table)

	rows, err := r.db.Query(ctx, query, afterID, limit)
	if err != nil {
		return nil, r.handlePostgresError("list soft deleted", err)
	}
	defer rows.Close()

	return r.scanAssets(rows)
}

func (r *Repository) scanAsset(row pgx.Row) (*atlasassets.Asset, error) {
	var asset atlasassets.Asset
	err := row.Scan(
		&asset.ID, &asset.UserID, &asset.GroupID, &asset.OwnerType, &asset.OwnerID,
		&asset.StorageKey, &asset.MimeType, &asset.Extension, &asset.Size, &asset.Name, &asset.OriginalFileName,
		&asset.Label, &asset.Category, &asset.Type, &asset.SortOrder,
		&asset.CreatedAt, &asset.UpdatedAt, &asset.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

func (r *Repository) scanAssets(rows pgx.Rows) ([]*atlasassets.Asset, error) {
	var assets []*atlasassets.Asset
	for rows.Next() {
		asset, err := r.scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return assets, nil
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
