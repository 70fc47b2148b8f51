// Package store keeps extracted records in named SQLite tables.
//
// Each table holds one row per primary key. Rows keep the source name, the
// full record as JSON and the time it was last loaded. Merging the same key
// again replaces the row.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/ajitpratap0/adagent/pkg/errors"
	"github.com/ajitpratap0/adagent/pkg/json"
	"github.com/ajitpratap0/adagent/pkg/metrics"
	"github.com/ajitpratap0/adagent/pkg/models"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store is a SQLite-backed record store.
type Store struct {
	db     *sql.DB
	path   string
	logger *zap.Logger

	mu     sync.Mutex
	tables map[string]bool
}

// Open opens or creates the database at path.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec
			return nil, errors.Wrap(err, errors.ErrorTypeStorage, "failed to create store directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "failed to open database")
	}
	// One connection keeps in-memory databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "failed to configure database")
	}

	return &Store{
		db:     db,
		path:   path,
		logger: logger.With(zap.String("component", "store")),
		tables: make(map[string]bool),
	}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) ensureTable(ctx context.Context, table string) error {
	if !tableName.MatchString(table) {
		return errors.Newf(errors.ErrorTypeValidation, "invalid table name %q", table)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tables[table] {
		return nil
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
		pk TEXT PRIMARY KEY,
		source TEXT,
		payload TEXT NOT NULL,
		loaded_at TEXT NOT NULL
	)`, table)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return errors.Wrap(err, errors.ErrorTypeStorage, "failed to create table "+table)
	}
	s.tables[table] = true
	return nil
}

// Merge upserts records into table keyed by primaryKey and returns the
// number of rows written. Every record must carry the primary key.
func (s *Store) Merge(ctx context.Context, table, primaryKey string, records []models.Record) (int, error) {
	if err := s.ensureTable(ctx, table); err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeStorage, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %q (pk, source, payload, loaded_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(pk) DO UPDATE SET
			source = excluded.source,
			payload = excluded.payload,
			loaded_at = excluded.loaded_at`, table))
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeStorage, "failed to prepare merge")
	}
	defer stmt.Close()

	loadedAt := time.Now().UTC().Format(time.RFC3339Nano)
	for i, r := range records {
		key, ok := r.Key(primaryKey)
		if !ok {
			return 0, errors.Newf(errors.ErrorTypeValidation, "record %d has no primary key field %q", i, primaryKey)
		}
		payload, err := json.Marshal(r)
		if err != nil {
			return 0, errors.Wrap(err, errors.ErrorTypeStorage, "failed to encode record")
		}
		if _, err := stmt.ExecContext(ctx, formatKey(key), r.Source(), string(payload), loadedAt); err != nil {
			return 0, errors.Wrap(err, errors.ErrorTypeStorage, "failed to merge record")
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeStorage, "failed to commit merge")
	}

	metrics.RecordsMerged.WithLabelValues(table).Add(float64(len(records)))
	s.logger.Debug("merged records", zap.String("table", table), zap.Int("count", len(records)))
	return len(records), nil
}

// Get returns the record stored under key.
func (s *Store) Get(ctx context.Context, table, key string) (models.Record, bool, error) {
	if err := s.ensureTable(ctx, table); err != nil {
		return nil, false, err
	}
	var payload string
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT payload FROM %q WHERE pk = ?`, table), key).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, errors.ErrorTypeStorage, "failed to read record")
	}
	var r models.Record
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return nil, false, errors.Wrap(err, errors.ErrorTypeStorage, "failed to decode record")
	}
	return r, true, nil
}

// Count returns the number of rows in table.
func (s *Store) Count(ctx context.Context, table string) (int, error) {
	if err := s.ensureTable(ctx, table); err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %q`, table)).Scan(&n); err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeStorage, "failed to count rows")
	}
	return n, nil
}

// Tables lists the record tables in name order.
func (s *Store) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "failed to list tables")
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeStorage, "failed to list tables")
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func formatKey(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	}
	return fmt.Sprint(v)
}
