// Package storex provides a configuration source persisted in a SQL table.
//
// Overview:
//   - Responsibility: Serve rows of an existing name/value table as a string source and keep them fresh
//   - Key Types: Options, TableSource
//   - Concurrency Model: All methods are safe for concurrent use
//   - Error Semantics: Database failures return CodeUnavailable; the last good snapshot is kept
//   - Performance Notes: Lookups read an in-memory snapshot; Refresh reloads the whole table
//
// Usage:
//
//	db, _ := storex.OpenSQLite("file:config.db", logger)
//	src, _ := storex.NewTableSource(db, storex.Options{Name: "db", Logger: logger})
//	_ = src.Refresh(ctx)
//	go src.Watch(ctx, 10*time.Second)
package storex

import (
	"context"
	"maps"
	"sync"
	"time"

	"gorm.io/gorm"

	"go.eggybyte.com/scf/core/errors"
	"go.eggybyte.com/scf/core/log"
	"go.eggybyte.com/scf/core/utils"
	"go.eggybyte.com/scf/core/validate"
	"go.eggybyte.com/scf/sourcex"
	"go.eggybyte.com/scf/storex/internal"
)

// DefaultTable is the table used when Options.Table is empty.
const DefaultTable = "scf_properties"

// Options holds configuration for a table source.
type Options struct {
	Name   string     `validate:"notblank"` // Source name
	Table  string     // Table name (default: DefaultTable)
	Logger log.Logger `validate:"-"`
}

// OpenSQLite opens a SQLite database with a small connection pool. Queries
// are logged through logger at debug level.
func OpenSQLite(dsn string, logger log.Logger) (*gorm.DB, error) {
	opts := internal.DefaultGORMOptions()
	opts.DSN = dsn
	opts.Logger = logger
	db, err := internal.OpenSQLite(opts)
	if err != nil {
		return nil, errors.Wrap(errors.CodeUnavailable, "storex.OpenSQLite", err)
	}
	return db, nil
}

// TableSource serves the rows of a name/value table owned by another
// system. It never writes. Data is read by Refresh; until then the source is
// empty. The table has a "name" primary key column and a "value" column.
type TableSource struct {
	*sourcex.Base
	db    *gorm.DB
	table string

	mu     sync.RWMutex
	values map[string]string
}

// NewTableSource creates a source over db.
func NewTableSource(db *gorm.DB, opts Options) (*TableSource, error) {
	if db == nil {
		return nil, errors.New(errors.CodeInvalidArgument, "database is required")
	}
	if err := validate.Struct("storex.NewTableSource", opts); err != nil {
		return nil, err
	}
	if opts.Table == "" {
		opts.Table = DefaultTable
	}
	cfg, err := sourcex.NewConfig(opts.Name)
	if err != nil {
		return nil, err
	}
	s := &TableSource{db: db, table: opts.Table, values: map[string]string{}}
	s.Base = sourcex.NewBase(s, cfg, opts.Logger, sourcex.StringLookup(s.GetStringValue))
	return s, nil
}

// DB returns the database the source reads.
func (s *TableSource) DB() *gorm.DB {
	return s.db
}

// Table returns the backing table name.
func (s *TableSource) Table() string {
	return s.table
}

// Refresh reloads the table and raises a change event when its content differs.
// On failure the previous content is kept.
func (s *TableSource) Refresh(ctx context.Context) error {
	values, err := internal.Load(ctx, s.db, s.table)
	if err != nil {
		return errors.Wrapf(errors.CodeUnavailable, "storex.Refresh", err, "load table %s", s.table)
	}

	s.mu.Lock()
	if maps.Equal(s.values, values) {
		s.mu.Unlock()
		return nil
	}
	s.values = values
	s.mu.Unlock()

	s.Logger().Info("table reloaded", log.Str("table", s.table), log.Int("keys", len(values)))
	s.RaiseChange()
	return nil
}

// Watch refreshes the table every interval until ctx is done. Failures are
// logged and retried on the next tick.
func (s *TableSource) Watch(ctx context.Context, interval time.Duration) {
	utils.Poll(ctx, interval, func() {
		if err := s.Refresh(ctx); err != nil {
			s.Logger().Error(err, "failed to refresh table", log.Str("table", s.table))
		}
	})
}

// GetStringValue returns the row value stored under key.
func (s *TableSource) GetStringValue(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

// Snapshot returns a copy of the last loaded rows.
func (s *TableSource) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.values)
}

// Name returns the source name. Together with Check it makes the source
// usable as a runtimex.HealthChecker.
func (s *TableSource) Name() string {
	return s.Config().Name
}

// Check pings the database.
func (s *TableSource) Check(ctx context.Context) error {
	if err := internal.Ping(ctx, s.db); err != nil {
		return errors.Wrap(errors.CodeUnavailable, "storex.Check", err)
	}
	return nil
}
