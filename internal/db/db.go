package db

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"taskmarket/internal/model"
)

// Options configures the connection pool.
type Options struct {
	MaxOpenConns int
	MaxIdleConns int
}

// Open returns a connected GORM DB instance for driver (mysql, postgres or sqlite).
func Open(driver, dsn string, opts Options) (*gorm.DB, error) {
	dialector, err := dialectorFor(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return db, nil
}

func dialectorFor(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "mysql":
		return mysql.Open(dsn), nil
	case "postgres":
		return postgres.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q (supported: mysql, postgres, sqlite)", driver)
	}
}

// tables lists models in dependency order.
var tables = []interface{}{
	&model.User{},
	&model.Project{},
	&model.Task{},
	&model.Payment{},
	&model.TaskEvent{},
}

// Migrate creates or updates the schema for all models.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(tables...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// DropAll drops every table, dependents first.
func DropAll(db *gorm.DB) error {
	for i := len(tables) - 1; i >= 0; i-- {
		if err := db.Migrator().DropTable(tables[i]); err != nil {
			return fmt.Errorf("drop table: %w", err)
		}
	}
	return nil
}
