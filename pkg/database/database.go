package database

import (
	"fmt"
	"strings"

	"github.com/suteetoe/scouting-service/internal/model"
	"github.com/suteetoe/scouting-service/pkg/config"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var db *gorm.DB

// InitDB opens the database from configuration, sets pool limits and runs migrations.
func InitDB(cfg *config.Config, log *zap.Logger) error {
	dialector, err := dialectorFor(&cfg.DB)
	if err != nil {
		return err
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(cfg.DB.LogLevel),
		// unique violations surface as gorm.ErrDuplicatedKey
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get generic database object SQL
	sqlDB, err := conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get database object: %w", err)
	}

	// Set connection pool settings from config
	if cfg.DB.Driver == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(cfg.DB.MaxIdleConns)
		sqlDB.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	}
	sqlDB.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

	log.Info("Database connected", zap.String("driver", cfg.DB.Driver))

	if err := Migrate(conn); err != nil {
		return err
	}

	moved, err := MigrateAvatarTags(conn)
	if err != nil {
		return fmt.Errorf("failed to migrate avatar tags: %w", err)
	}
	if moved > 0 {
		log.Info("Moved legacy avatar tags to avatar_url", zap.Int("players", moved))
	}

	db = conn
	return nil
}

func dialectorFor(c *config.DBConfig) (gorm.Dialector, error) {
	dsn := c.GetDSN()
	switch {
	case c.Driver == "sqlite":
		return sqlite.Open(dsn), nil
	case c.Driver == "postgres", strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true, // Disables implicit prepared statement usage
		}), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", c.Driver)
	}
}

// Migrate creates or updates every table.
func Migrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(model.AllModels()...); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return db
}

// SetDB replaces the database instance.
func SetDB(conn *gorm.DB) {
	db = conn
}

// Ping reports whether the database answers.
func Ping() error {
	if db == nil {
		return fmt.Errorf("database is not initialized")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
