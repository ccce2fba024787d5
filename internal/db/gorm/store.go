package gorm

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store represents the GORM database connection.
type Store struct {
	DB      *gorm.DB
	sqlDB   *sql.DB
	dialect string
}

// Config holds database configuration.
type Config struct {
	// DSN is a SQLite file path or a postgres:// URL.
	DSN      string
	MaxConns int             // Maximum number of open connections (default: 4)
	LogLevel logger.LogLevel // GORM log level (logger.Silent for production)
}

// IsPostgres reports whether dsn names a PostgreSQL server.
func IsPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// NewStore opens the database, runs migrations and, for SQLite, enables WAL.
func NewStore(cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("open database: empty DSN")
	}

	gormCfg := &gorm.Config{
		Logger:      logger.Default.LogMode(cfg.LogLevel),
		PrepareStmt: true,
	}

	var (
		db      *gorm.DB
		sqlDB   *sql.DB
		dialect string
		err     error
	)
	if IsPostgres(cfg.DSN) {
		dialect = "postgres"
		db, err = gorm.Open(postgres.Open(cfg.DSN), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("open gorm: %w", err)
		}
		sqlDB, err = db.DB()
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
	} else {
		dialect = "sqlite"
		sqlDB, err = sql.Open("sqlite3", cfg.DSN+"?_foreign_keys=ON")
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		db, err = gorm.Open(sqlite.Dialector{Conn: sqlDB}, gormCfg)
		if err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("open gorm: %w", err)
		}
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 4
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns)
	sqlDB.SetConnMaxLifetime(0)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &Store{DB: db, sqlDB: sqlDB, dialect: dialect}

	// Migrations run before the PRAGMAs.
	if err := runMigrations(db); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if dialect == "sqlite" {
		pragmas := []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA synchronous=NORMAL",
			"PRAGMA busy_timeout=5000",
		}
		for _, p := range pragmas {
			if _, err := sqlDB.Exec(p); err != nil {
				_ = sqlDB.Close()
				return nil, fmt.Errorf("%s: %w", p, err)
			}
		}
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.sqlDB.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping() error {
	return s.sqlDB.Ping()
}

// Dialect returns "sqlite" or "postgres".
func (s *Store) Dialect() string {
	return s.dialect
}

// GetRawDB returns the underlying *sql.DB.
func (s *Store) GetRawDB() *sql.DB {
	return s.sqlDB
}
