// Package postgres provides a PostgreSQL-backed config store with versioning.
//
// Current state lives in the configs table and every revision is appended to
// config_versions. Each mutating operation writes both tables inside one
// transaction, so state and history never diverge.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/txn2/gamedna/pkg/configstore"
)

// uniqueViolation is the SQLSTATE for unique constraint violations.
const uniqueViolation = "23505"

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Store persists configs and their version history in PostgreSQL.
type Store struct {
	db    *sql.DB
	now   func() time.Time
	newID func() string
}

// New creates a Store on db. The store takes ownership of db and closes it
// in Close.
func New(db *sql.DB) *Store {
	return &Store{
		db:    db,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// DB returns the underlying connection pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Create persists a new config and its version-1 snapshot.
func (s *Store) Create(ctx context.Context, cfg *configstore.Config) (*configstore.Config, error) {
	if cfg == nil {
		return nil, configstore.NewError(configstore.OpCreate, "", configstore.ErrNilConfig)
	}
	stored := cfg.Clone()
	configstore.PrepareCreate(stored, s.newID, s.now())
	return s.insert(ctx, configstore.OpCreate, stored)
}

func (s *Store) insert(ctx context.Context, op string, cfg *configstore.Config) (*configstore.Config, error) {
	payload, err := marshalConfig(cfg)
	if err != nil {
		return nil, configstore.NewError(op, cfg.ID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, dbError(op, cfg.ID, "beginning transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO configs (id, name, version, data, checksum, is_locked, created_at, updated_at, created_by, tags)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		cfg.ID, cfg.Name, cfg.Version, payload, cfg.Checksum, cfg.IsLocked,
		cfg.CreatedAt, cfg.LastModified, cfg.CreatedBy, tagsArray(cfg.Tags),
	)
	if err != nil {
		return nil, dbError(op, cfg.ID, "inserting config", err)
	}

	if err := insertVersion(ctx, tx, op, cfg, 1, payload, cfg.CreatedAt, cfg.CreatedBy); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, dbError(op, cfg.ID, "committing config", err)
	}
	return cfg, nil
}

// Read returns the config with the given ID.
func (s *Store) Read(ctx context.Context, id string) (*configstore.Config, error) {
	var payload string
	var locked bool
	err := s.db.QueryRowContext(ctx,
		`SELECT data, is_locked FROM configs WHERE id = $1`, id,
	).Scan(&payload, &locked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, configstore.NewError(configstore.OpRead, id, configstore.ErrNotFound)
	}
	if err != nil {
		return nil, dbError(configstore.OpRead, id, "reading config", err)
	}

	cfg, err := unmarshalConfig(payload)
	if err != nil {
		return nil, configstore.NewError(configstore.OpRead, id, err)
	}
	cfg.IsLocked = locked
	return cfg, nil
}

// Update replaces an unlocked config and appends the next snapshot.
func (s *Store) Update(ctx context.Context, cfg *configstore.Config) (*configstore.Config, error) {
	const op = configstore.OpUpdate
	if cfg == nil {
		return nil, configstore.NewError(op, "", configstore.ErrNilConfig)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, dbError(op, cfg.ID, "beginning transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := lockConfig(ctx, tx, op, cfg.ID)
	if err != nil {
		return nil, err
	}
	if existing.IsLocked {
		return nil, configstore.NewError(op, cfg.ID, configstore.ErrLocked)
	}

	next := cfg.Clone()
	configstore.PrepareUpdate(next, existing, s.now())
	if err := writeRevision(ctx, tx, op, next, next.CreatedBy); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, dbError(op, cfg.ID, "committing update", err)
	}
	return next, nil
}

// Delete removes a config. Its versions are removed by ON DELETE CASCADE.
func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM configs WHERE id = $1`, id)
	if err != nil {
		return dbError(configstore.OpDelete, id, "deleting config", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return dbError(configstore.OpDelete, id, "checking rows affected", err)
	}
	if rows == 0 {
		return configstore.NewError(configstore.OpDelete, id, configstore.ErrNotFound)
	}
	return nil
}

// applyListFilters adds filter conditions to a SELECT builder.
func applyListFilters(qb sq.SelectBuilder, filters configstore.ListFilters) sq.SelectBuilder {
	if filters.Genre != "" {
		qb = qb.Where(sq.Eq{"data->>'genre'": filters.Genre})
	}
	if filters.NameContains != "" {
		qb = qb.Where(sq.ILike{"name": "%" + escapeLike(filters.NameContains) + "%"})
	}
	if len(filters.Tags) > 0 {
		qb = qb.Where(sq.Expr("tags @> ?", pq.Array(filters.Tags)))
	}
	return qb
}

// List returns one page of configs matching filters, newest first, and the
// total number of matches.
func (s *Store) List(ctx context.Context, filters configstore.ListFilters, page configstore.Pagination) ([]*configstore.Config, int, error) {
	const op = configstore.OpList
	page = page.Normalize()

	countQuery, countArgs, err := applyListFilters(psq.Select("COUNT(*)").From("configs"), filters).ToSql()
	if err != nil {
		return nil, 0, configstore.NewError(op, "", fmt.Errorf("building count query: %w", err))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, dbError(op, "", "counting configs", err)
	}

	offset := page.Offset()
	if offset >= total {
		return []*configstore.Config{}, total, nil
	}

	query, args, err := applyListFilters(psq.Select("data", "is_locked").From("configs"), filters).
		OrderBy("created_at DESC", "id ASC").
		Limit(uint64(page.PageSize)). // #nosec G115 -- normalized to a positive value
		Offset(uint64(offset)).       // #nosec G115 -- non-negative and below total
		ToSql()
	if err != nil {
		return nil, 0, configstore.NewError(op, "", fmt.Errorf("building list query: %w", err))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, dbError(op, "", "listing configs", err)
	}
	defer func() { _ = rows.Close() }()

	configs := make([]*configstore.Config, 0, min(page.PageSize, total-offset))
	for rows.Next() {
		var payload string
		var locked bool
		if err := rows.Scan(&payload, &locked); err != nil {
			return nil, 0, dbError(op, "", "scanning config row", err)
		}
		cfg, err := unmarshalConfig(payload)
		if err != nil {
			return nil, 0, configstore.NewError(op, "", err)
		}
		cfg.IsLocked = locked
		configs = append(configs, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, dbError(op, "", "iterating config rows", err)
	}
	return configs, total, nil
}

// GetVersionHistory returns all snapshots of a config, newest first.
func (s *Store) GetVersionHistory(ctx context.Context, configID string) ([]*configstore.VersionSnapshot, error) {
	const op = configstore.OpHistory

	rows, err := s.db.QueryContext(ctx,
		`SELECT version_num, checksum, created_at, created_by, data
		 FROM config_versions
		 WHERE config_id = $1
		 ORDER BY version_num DESC`,
		configID,
	)
	if err != nil {
		return nil, dbError(op, configID, "querying version history", err)
	}
	defer func() { _ = rows.Close() }()

	var history []*configstore.VersionSnapshot
	for rows.Next() {
		v := configstore.VersionSnapshot{ConfigID: configID}
		var payload string
		if err := rows.Scan(&v.VersionNumber, &v.Checksum, &v.CreatedAt, &v.CreatedBy, &payload); err != nil {
			return nil, dbError(op, configID, "scanning version row", err)
		}
		if v.Data, err = unmarshalConfig(payload); err != nil {
			return nil, configstore.NewError(op, configID, err)
		}
		history = append(history, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(op, configID, "iterating version rows", err)
	}

	// Every stored config has at least version 1.
	if len(history) == 0 {
		return nil, configstore.NewError(op, configID, configstore.ErrNotFound)
	}
	return history, nil
}

// RollbackToVersion restores a snapshot as the current state and records
// the restored content as a new version.
func (s *Store) RollbackToVersion(ctx context.Context, configID string, versionNumber int64, actor string) (*configstore.Config, error) {
	const op = configstore.OpRollback

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, dbError(op, configID, "beginning transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := lockConfig(ctx, tx, op, configID)
	if err != nil {
		return nil, err
	}
	if existing.IsLocked {
		return nil, configstore.NewError(op, configID, configstore.ErrLocked)
	}

	var payload string
	err = tx.QueryRowContext(ctx,
		`SELECT data FROM config_versions WHERE config_id = $1 AND version_num = $2`,
		configID, versionNumber,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, configstore.VersionNotFound(op, configID, versionNumber)
	}
	if err != nil {
		return nil, dbError(op, configID, "reading version", err)
	}

	data, err := unmarshalConfig(payload)
	if err != nil {
		return nil, configstore.NewError(op, configID, err)
	}

	restored := configstore.PrepareRollback(data, existing, actor, s.now())
	if err := writeRevision(ctx, tx, op, restored, actor); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, dbError(op, configID, "committing rollback", err)
	}
	return restored, nil
}

// PublishVersion locks a config in place. It only touches the configs table.
func (s *Store) PublishVersion(ctx context.Context, configID, actor string) (*configstore.Config, error) {
	const op = configstore.OpPublish

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, dbError(op, configID, "beginning transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	cfg, err := lockConfig(ctx, tx, op, configID)
	if err != nil {
		return nil, err
	}
	if cfg.IsLocked {
		return nil, configstore.NewError(op, configID, configstore.ErrConflict)
	}

	cfg.IsLocked = true
	cfg.LastModified = s.now()
	if cfg.LastModified.Before(cfg.CreatedAt) {
		cfg.LastModified = cfg.CreatedAt
	}
	if actor != "" {
		cfg.CreatedBy = actor
	}

	payload, err := marshalConfig(cfg)
	if err != nil {
		return nil, configstore.NewError(op, configID, err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE configs SET is_locked = TRUE, data = $1, updated_at = $2, created_by = $3 WHERE id = $4`,
		payload, cfg.LastModified, cfg.CreatedBy, configID,
	)
	if err != nil {
		return nil, dbError(op, configID, "publishing config", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, dbError(op, configID, "committing publish", err)
	}
	return cfg, nil
}

// Clone copies a config into a new unlocked config with its own history.
func (s *Store) Clone(ctx context.Context, id, newName, actor string) (*configstore.Config, error) {
	src, err := s.Read(ctx, id)
	if err != nil {
		var storeErr *configstore.Error
		if errors.As(err, &storeErr) {
			return nil, configstore.NewError(configstore.OpClone, id, storeErr.Err)
		}
		return nil, err
	}

	cloned := configstore.CloneAs(src, newName, actor, s.now())
	configstore.PrepareCreate(cloned, s.newID, cloned.CreatedAt)
	return s.insert(ctx, configstore.OpClone, cloned)
}

// Mode returns "database".
func (*Store) Mode() string {
	return configstore.ModeDatabase
}

// Close closes the connection pool.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// lockConfig loads the current state of id and holds its row lock until the
// transaction ends.
func lockConfig(ctx context.Context, tx *sql.Tx, op, id string) (*configstore.Config, error) {
	var payload string
	var locked bool
	err := tx.QueryRowContext(ctx,
		`SELECT data, is_locked FROM configs WHERE id = $1 FOR UPDATE`, id,
	).Scan(&payload, &locked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, configstore.NewError(op, id, configstore.ErrNotFound)
	}
	if err != nil {
		return nil, dbError(op, id, "locking config", err)
	}

	cfg, err := unmarshalConfig(payload)
	if err != nil {
		return nil, configstore.NewError(op, id, err)
	}
	cfg.IsLocked = locked
	return cfg, nil
}

// writeRevision replaces the current state of cfg and appends the next version.
func writeRevision(ctx context.Context, tx *sql.Tx, op string, cfg *configstore.Config, actor string) error {
	payload, err := marshalConfig(cfg)
	if err != nil {
		return configstore.NewError(op, cfg.ID, err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE configs
		 SET name = $1, version = $2, data = $3, checksum = $4, is_locked = $5,
		     updated_at = $6, created_by = $7, tags = $8
		 WHERE id = $9`,
		cfg.Name, cfg.Version, payload, cfg.Checksum, cfg.IsLocked,
		cfg.LastModified, cfg.CreatedBy, tagsArray(cfg.Tags), cfg.ID,
	)
	if err != nil {
		return dbError(op, cfg.ID, "updating config", err)
	}

	var next int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version_num), 0) + 1 FROM config_versions WHERE config_id = $1`,
		cfg.ID,
	).Scan(&next)
	if err != nil {
		return dbError(op, cfg.ID, "getting next version", err)
	}

	return insertVersion(ctx, tx, op, cfg, next, payload, cfg.LastModified, actor)
}

func insertVersion(ctx context.Context, tx *sql.Tx, op string, cfg *configstore.Config, n int64, payload string, at time.Time, actor string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO config_versions (config_id, version_num, data, checksum, created_at, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		cfg.ID, n, payload, cfg.Checksum, at, actor,
	)
	if err != nil {
		return dbError(op, cfg.ID, "inserting version", err)
	}
	return nil
}

// dbError wraps a database error, mapping unique violations to ErrConflict.
func dbError(op, id, action string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return configstore.NewError(op, id, fmt.Errorf("%s: %w: %w", action, configstore.ErrConflict, err))
	}
	return configstore.NewError(op, id, fmt.Errorf("%s: %w", action, err))
}

func marshalConfig(cfg *configstore.Config) (string, error) {
	b, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshaling config: %w", err)
	}
	return string(b), nil
}

func unmarshalConfig(payload string) (*configstore.Config, error) {
	var cfg configstore.Config
	if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// tagsArray never returns NULL so the NOT NULL tags column accepts it.
func tagsArray(tags []string) any {
	if tags == nil {
		tags = []string{}
	}
	return pq.Array(tags)
}

// escapeLike escapes LIKE metacharacters so the filter matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Verify interface compliance.
var _ configstore.Store = (*Store)(nil)
