// Package internal contains the GORM adapter behind the table source.
package internal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"go.eggybyte.com/scf/core/log"
)

// Row is one table entry.
type Row struct {
	Name      string `gorm:"column:name;primaryKey;size:255"`
	Value     string `gorm:"column:value;not null"`
	UpdatedAt time.Time
}

// GORMOptions holds configuration for GORM database connections.
type GORMOptions struct {
	DSN             string        // Database connection string
	MaxIdleConns    int           // Maximum number of idle connections
	MaxOpenConns    int           // Maximum number of open connections
	ConnMaxLifetime time.Duration // Maximum connection lifetime
	Logger          log.Logger    // Logger for database operations
}

// DefaultGORMOptions returns default GORM options.
func DefaultGORMOptions() GORMOptions {
	return GORMOptions{
		MaxIdleConns:    2,
		MaxOpenConns:    4,
		ConnMaxLifetime: time.Hour,
	}
}

// OpenSQLite opens a SQLite database and configures its connection pool.
func OpenSQLite(opts GORMOptions) (*gorm.DB, error) {
	if opts.DSN == "" {
		return nil, fmt.Errorf("DSN is required")
	}

	var gormLogger logger.Interface
	if opts.Logger != nil {
		gormLogger = &gormLogAdapter{logger: opts.Logger}
	} else {
		gormLogger = logger.Default.LogMode(logger.Silent)
	}

	db, err := gorm.Open(sqlite.Open(opts.DSN), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	return db, nil
}

// Load reads every row of table.
func Load(ctx context.Context, db *gorm.DB, table string) (map[string]string, error) {
	var rows []Row
	if err := db.WithContext(ctx).Table(table).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Name] = r.Value
	}
	return out, nil
}

// Ping checks if the database connection is healthy.
func Ping(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// gormLogAdapter adapts our logger to GORM's logger interface.
type gormLogAdapter struct {
	logger log.Logger
}

func (l *gormLogAdapter) LogMode(level logger.LogLevel) logger.Interface {
	return l
}

func (l *gormLogAdapter) Info(ctx context.Context, msg string, data ...interface{}) {
	l.logger.Info(fmt.Sprintf(msg, data...))
}

func (l *gormLogAdapter) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.logger.Warn(fmt.Sprintf(msg, data...))
}

func (l *gormLogAdapter) Error(ctx context.Context, msg string, data ...interface{}) {
	l.logger.Error(nil, fmt.Sprintf(msg, data...))
}

func (l *gormLogAdapter) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if err != nil {
		if isConnectionError(err) {
			l.logger.Error(err, "database query failed", log.Str("error_type", "connection_error"))
		} else {
			l.logger.Debug("database query completed with error", log.Str("error", err.Error()))
		}
		return
	}
	duration := time.Since(begin)
	if duration > 100*time.Millisecond {
		sql, rows := fc()
		l.logger.Debug("slow database query",
			log.Str("sql", sql),
			log.Int("rows", int(rows)),
			log.Dur("duration", duration))
	}
}

// isConnectionError reports whether err looks like a transport failure
// rather than a statement error.
func isConnectionError(err error) bool {
	if err == nil || err == gorm.ErrRecordNotFound {
		return false
	}
	errStr := err.Error()
	for _, s := range []string{"connection refused", "connection reset", "timeout", "broken pipe", "database is locked", "EOF"} {
		if strings.Contains(errStr, s) {
			return true
		}
	}
	return false
}
