// Package relational implements the account and refresh-token repositories
// on top of gorm. Two dialects are supported: SQLite (through the pure-Go
// modernc.org/sqlite driver, the default for development and tests) and
// PostgreSQL.
package relational

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	gormpostgres "gorm.io/driver/postgres"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	msqlite "modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"

	"github.com/neoori/profile-api/internal/config"
	"github.com/neoori/profile-api/internal/model"
)

// DB owns the gorm connection pool.
type DB struct {
	gorm   *gorm.DB
	driver string
}

// Open connects to the configured database and migrates the schema.
//
// For SQLite the pool is limited to one connection: writes are serialized
// by SQLite anyway, and ":memory:" databases are per connection.
func Open(cfg config.DatabaseConfig, logger *slog.Logger) (*DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverSQLite:
		if err := ensureSQLiteDir(cfg.DSN); err != nil {
			return nil, err
		}
		dialector = gormsqlite.New(gormsqlite.Config{DriverName: "sqlite", DSN: cfg.DSN})
	case config.DriverPostgres:
		dialector = gormpostgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("relational: unsupported driver %q", cfg.Driver)
	}

	g, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newSlogLogger(logger),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("relational: opening %s database: %w", cfg.Driver, err)
	}

	db := &DB{gorm: g, driver: cfg.Driver}

	if cfg.Driver == config.DriverSQLite {
		if err := db.configureSQLite(); err != nil {
			db.Close()
			return nil, err
		}
	}

	if err := db.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("relational: running migrations: %w", err)
	}

	return db, nil
}

func (db *DB) configureSQLite() error {
	sqlDB, err := db.gorm.DB()
	if err != nil {
		return fmt.Errorf("relational: getting sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.gorm.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		return fmt.Errorf("relational: setting WAL mode: %w", err)
	}
	if err := db.gorm.Exec("PRAGMA foreign_keys=ON").Error; err != nil {
		return fmt.Errorf("relational: enabling foreign keys: %w", err)
	}
	return nil
}

func (db *DB) migrate() error {
	return db.gorm.AutoMigrate(&model.Account{}, &model.RefreshToken{})
}

func (db *DB) Close() error {
	sqlDB, err := db.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (db *DB) Ping(ctx context.Context) error {
	sqlDB, err := db.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (db *DB) Accounts() *AccountDB {
	return &AccountDB{db: db.gorm}
}

func (db *DB) RefreshTokens() *RefreshTokenDB {
	return &RefreshTokenDB{db: db.gorm}
}

func ensureSQLiteDir(dsn string) error {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("relational: creating database directory %s: %w", dir, err)
	}
	return nil
}

// isUniqueViolation recognizes duplicate-key errors from both dialects.
// Postgres errors are translated by gorm; the SQLite dialector only knows
// the cgo driver's error type, so modernc errors are checked here.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var se *msqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlitelib.SQLITE_CONSTRAINT_UNIQUE, sqlitelib.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlitelib.SQLITE_CONSTRAINT:
		// extended result codes disabled
		return strings.Contains(se.Error(), "UNIQUE constraint failed")
	}
	return false
}

// slogLogger routes gorm's logging through slog. SQL traces are logged at
// debug; failed statements at warn.
type slogLogger struct {
	logger *slog.Logger
	level  gormlogger.LogLevel
}

func newSlogLogger(logger *slog.Logger) gormlogger.Interface {
	return &slogLogger{logger: logger.With(slog.String("component", "gorm")), level: gormlogger.Warn}
}

func (l *slogLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *slogLogger) Info(ctx context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Info {
		l.logger.InfoContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (l *slogLogger) Warn(ctx context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Warn {
		l.logger.WarnContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (l *slogLogger) Error(ctx context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Error {
		l.logger.ErrorContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (l *slogLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	sql, rows := fc()
	attrs := []any{
		slog.String("sql", sql),
		slog.Int64("rows", rows),
		slog.Duration("elapsed", time.Since(begin)),
	}

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && !isUniqueViolation(err):
		l.logger.WarnContext(ctx, "query failed", append(attrs, slog.String("error", err.Error()))...)
	case l.level >= gormlogger.Info:
		l.logger.DebugContext(ctx, "query", attrs...)
	}
}
