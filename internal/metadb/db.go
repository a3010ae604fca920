package metadb

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"archivecore.io/core/internal/obs"
)

// Config configures the connection pool, sized by deployment per
// §4.5 (2-100 connections), mirroring the teacher's db/postgres.go
// pool tuning but exposing the bounds instead of hardcoding them.
type Config struct {
	Host           string
	Port           int
	Name           string
	User           string
	Password       string
	MinConnections int
	MaxConnections int
}

func (c Config) dsn() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
		c.Host, c.Port, c.Name, c.User, c.Password)
}

// DB wraps a *gorm.DB bound to the archive-core schema.
type DB struct {
	gdb *gorm.DB
}

// Open connects to Postgres and configures the pool. Failures here are
// init-time and fatal to the caller, matching the teacher's PGInfo
// panic-on-connect posture translated into a returned error instead
// of a panic (the HTTP server's boot sequence decides what to do with
// a failed dependency, per §9 "Global singletons").
func Open(cfg Config) (*DB, error) {
	gdb, err := gorm.Open(postgres.Open(cfg.dsn()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to metadata db: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrap sql.DB: %w", err)
	}
	maxConn := cfg.MaxConnections
	if maxConn <= 0 {
		maxConn = 100
	}
	minConn := cfg.MinConnections
	if minConn <= 0 {
		minConn = 2
	}
	sqlDB.SetMaxOpenConns(maxConn)
	sqlDB.SetMaxIdleConns(minConn)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &DB{gdb: gdb}, nil
}

// Migrate creates/updates the objects, versions, audit, hooks, users
// and routing_log tables and their indices (§4.5). The full-text tsvector column and its GIN index are raw SQL
// because gorm has no first-class tsvector type.
func (d *DB) Migrate() error {
	if err := d.gdb.AutoMigrate(&ObjectRow{}, &VersionRow{}, &AuditRow{}, &HookExecutionRow{}, &UserRow{}, &RoutingRow{}); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}

	stmts := []string{
		`ALTER TABLE objects ADD COLUMN IF NOT EXISTS search_vector tsvector
			GENERATED ALWAYS AS (
				setweight(to_tsvector('simple', coalesce(object_key,'') || ' ' || coalesce(content_type,'')), 'A') ||
				setweight(to_tsvector('simple', coalesce(metadata_json,'')), 'B')
			) STORED`,
		`CREATE INDEX IF NOT EXISTS idx_objects_search_vector ON objects USING GIN (search_vector)`,
		`CREATE INDEX IF NOT EXISTS idx_objects_prefix ON objects (object_key text_pattern_ops)`,
	}
	for _, stmt := range stmts {
		if err := d.gdb.Exec(stmt).Error; err != nil {
			obs.Logger.WithField("stmt", stmt).WithError(err).Warn("metadb migration statement failed, continuing")
		}
	}
	return nil
}

// Close releases the underlying connection pool.
func (d *DB) Close() error {
	sqlDB, err := d.gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
