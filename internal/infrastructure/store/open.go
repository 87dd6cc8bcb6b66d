// Package store opens the account repository selected by configuration.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"kwala.backend/internal/config"
	"kwala.backend/internal/domain/repositories"
	pgconn "kwala.backend/internal/infrastructure/datasources/postgres"
	"kwala.backend/internal/infrastructure/mongostore"
	gormrepo "kwala.backend/internal/infrastructure/repositories"
)

// CloseFunc releases the underlying connection.
type CloseFunc func(ctx context.Context) error

var (
	connectMongo    = mongostore.Connect
	connectPostgres = pgconn.NewConnection
)

var gormConfig = &gorm.Config{
	TranslateError: true,
	Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
}

// Open connects to the configured driver and returns its account repository.
func Open(ctx context.Context, cfg *config.Config) (repositories.AccountRepository, CloseFunc, error) {
	switch cfg.Store.Driver {
	case config.StoreMongo:
		repo, disconnect, err := connectMongo(ctx, cfg.Store.MongoURI, cfg.Store.MongoDatabase, cfg.Store.MongoCollection)
		if err != nil {
			return nil, nil, err
		}
		return repo, CloseFunc(disconnect), nil

	case config.StorePostgres:
		sqlDB, err := connectPostgres(cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), gormConfig)
		if err != nil {
			_ = sqlDB.Close()
			return nil, nil, fmt.Errorf("failed to open gorm: %w", err)
		}
		return gormrepo.NewAccountRepository(db), closeSQL(sqlDB), nil

	case config.StoreSQLite:
		db, err := gorm.Open(sqlite.Open(cfg.Store.SQLitePath), gormConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, err
		}
		return gormrepo.NewAccountRepository(db), closeSQL(sqlDB), nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func closeSQL(db *sql.DB) CloseFunc {
	return func(context.Context) error { return db.Close() }
}
