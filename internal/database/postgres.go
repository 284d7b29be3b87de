package database

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"

	"github.com/kyvra-tech/geoipmap-backend/internal/config"
	"github.com/kyvra-tech/geoipmap-backend/pkg/errors"
)

// NewPostgresDB opens the connection pool and verifies it with a ping.
func NewPostgresDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabaseConnection, err.Error())
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrapf(errors.ErrDatabaseConnection, "ping %s:%d: %v", cfg.Host, cfg.Port, err)
	}

	return db, nil
}
