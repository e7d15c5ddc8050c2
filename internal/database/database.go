// Package database manages the gorm connection backing the recording
// archive: Postgres when configured and reachable, with a local SQLite
// fallback so saves never depend on an external service.
package database

import (
	"database/sql"
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Manager handles the database connection lifecycle.
type Manager struct {
	DB         *gorm.DB
	SqlDB      *sql.DB
	IsValid    bool
	UsingLocal bool
	Logger     zerolog.Logger
}

// NewManager creates an unconnected database manager.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{Logger: log}
}

// Connect establishes a database connection, falling back to SQLite if
// Postgres is not configured or cannot be reached.
func (m *Manager) Connect() error {
	var err error

	if viper.GetString("db.host") != "" {
		m.DB, err = m.openPostgres()
		if err != nil {
			m.Logger.Error().Err(err).Msg("Failed to connect to Postgres, falling back to SQLite")
		}
	}

	if m.DB == nil {
		m.UsingLocal = true
		m.DB, err = m.openSqlite(viper.GetString("db.sqlitePath"))
		if err != nil {
			m.IsValid = false
			return fmt.Errorf("failed to open local SQLite DB: %w", err)
		}
	}

	m.SqlDB, err = m.DB.DB()
	if err != nil {
		m.IsValid = false
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err := m.SqlDB.Ping(); err != nil && !m.UsingLocal {
		m.Logger.Error().Err(err).Msg("Failed to validate Postgres connection, falling back to SQLite")
		m.UsingLocal = true
		m.DB, err = m.openSqlite(viper.GetString("db.sqlitePath"))
		if err != nil {
			m.IsValid = false
			return fmt.Errorf("failed to open local SQLite DB: %w", err)
		}
	}

	if !m.UsingLocal {
		m.SqlDB.SetMaxOpenConns(10)
	}
	m.IsValid = true
	m.Logger.Info().Bool("local", m.UsingLocal).Msg("Connected to database")
	return nil
}

// Migrate runs schema migration for the given models.
func (m *Manager) Migrate(models ...any) error {
	if err := m.DB.AutoMigrate(models...); err != nil {
		m.IsValid = false
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close releases the underlying connection.
func (m *Manager) Close() error {
	if m.SqlDB == nil {
		return nil
	}
	return m.SqlDB.Close()
}

func (m *Manager) openPostgres() (*gorm.DB, error) {
	dsn := fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		viper.GetString("db.host"),
		viper.GetString("db.port"),
		viper.GetString("db.username"),
		viper.GetString("db.password"),
		viper.GetString("db.database"),
	)

	m.Logger.Debug().Str("host", viper.GetString("db.host")).Msg("Connecting to Postgres")

	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
}

// openSqlite opens a file-backed SQLite database, or an in-memory one when
// path is empty.
func (m *Manager) openSqlite(path string) (*gorm.DB, error) {
	dsn := path
	if dsn == "" {
		dsn = "file::memory:?cache=shared"
		m.Logger.Info().Msg("Using in-memory SQLite DB")
	} else {
		m.Logger.Info().Str("path", path).Msg("Using local SQLite DB")
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	pragmas := []string{
		"PRAGMA user_version = 1;",
		"PRAGMA journal_mode = MEMORY;",
		"PRAGMA synchronous = OFF;",
		"PRAGMA cache_size = -32000;",
		"PRAGMA temp_store = MEMORY;",
	}
	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %w", err)
		}
	}
	return db, nil
}
