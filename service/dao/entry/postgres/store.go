package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/viant/geoflow/model/output"
	"github.com/viant/geoflow/service/dao"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS geoflow_cache_entries (
    fingerprint TEXT PRIMARY KEY,
    descriptor  JSONB NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_geoflow_cache_entries_created ON geoflow_cache_entries(created_at);
`

// Store implements the cache entry DAO on PostgreSQL via pgx.
type Store struct {
	db *pgxpool.Pool
}

var _ dao.Service[string, output.Entry] = (*Store)(nil)

// New creates a store backed by the given pool.
func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Connect opens a pool for databaseURL and ensures the schema exists.
func Connect(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("cache: connect: %w", err)
	}
	ret := New(pool)
	if err = ret.CreateSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return ret, nil
}

// CreateSchema creates the entry table if it does not exist.
func (s *Store) CreateSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("cache: create schema: %w", err)
	}
	return nil
}

// DropSchema drops the entry table.
func (s *Store) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `DROP TABLE IF EXISTS geoflow_cache_entries`)
	return err
}

// Close releases the pool.
func (s *Store) Close() {
	s.db.Close()
}

func (s *Store) Save(ctx context.Context, entry *output.Entry) error {
	if entry == nil {
		return dao.ErrNilEntity
	}
	if entry.Fingerprint == "" {
		return dao.ErrInvalidID
	}
	data, err := json.Marshal(entry.Descriptor)
	if err != nil {
		return fmt.Errorf("cache: marshal descriptor: %w", err)
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO geoflow_cache_entries (fingerprint, descriptor, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (fingerprint) DO UPDATE SET descriptor = EXCLUDED.descriptor, created_at = EXCLUDED.created_at`,
		entry.Fingerprint, data, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("cache: save entry %s: %w", entry.Fingerprint, err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, fingerprint string) (*output.Entry, error) {
	if fingerprint == "" {
		return nil, dao.ErrInvalidID
	}
	row := s.db.QueryRow(ctx,
		`SELECT fingerprint, descriptor, created_at FROM geoflow_cache_entries WHERE fingerprint = $1`, fingerprint)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, dao.ErrNotFound
		}
		return nil, fmt.Errorf("cache: load entry %s: %w", fingerprint, err)
	}
	return entry, nil
}

func (s *Store) Delete(ctx context.Context, fingerprint string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM geoflow_cache_entries WHERE fingerprint = $1`, fingerprint)
	if err != nil {
		return fmt.Errorf("cache: delete entry %s: %w", fingerprint, err)
	}
	if tag.RowsAffected() == 0 {
		return dao.ErrNotFound
	}
	return nil
}

// List supports the IDs and OlderThan parameters.
func (s *Store) List(ctx context.Context, parameters ...*dao.Parameter) ([]*output.Entry, error) {
	query := `SELECT fingerprint, descriptor, created_at FROM geoflow_cache_entries`
	var conditions []string
	var args []interface{}
	for _, parameter := range parameters {
		switch parameter.Name {
		case dao.ParamIDs:
			ids, ok := parameter.Value.([]string)
			if !ok {
				if id, isString := parameter.Value.(string); isString {
					ids = []string{id}
				}
			}
			args = append(args, ids)
			conditions = append(conditions, fmt.Sprintf("fingerprint = ANY($%d)", len(args)))
		case dao.ParamOlderThan:
			if limit, ok := parameter.Value.(time.Time); ok {
				args = append(args, limit)
				conditions = append(conditions, fmt.Sprintf("created_at < $%d", len(args)))
			}
		}
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	rows, err := s.db.Query(ctx, query+" ORDER BY created_at", args...)
	if err != nil {
		return nil, fmt.Errorf("cache: list entries: %w", err)
	}
	defer rows.Close()
	var result []*output.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("cache: scan entry: %w", err)
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func scanEntry(row pgx.Row) (*output.Entry, error) {
	entry := &output.Entry{}
	var data []byte
	if err := row.Scan(&entry.Fingerprint, &data, &entry.CreatedAt); err != nil {
		return nil, err
	}
	entry.Descriptor = &output.Descriptor{}
	if err := json.Unmarshal(data, entry.Descriptor); err != nil {
		return nil, err
	}
	return entry, nil
}
