// Package postgres records telemetry into PostgreSQL through the GORM backend.
package postgres

import (
	"fmt"
	"log/slog"

	"github.com/tucoflyer/botcontrol/internal/database"
	gormstorage "github.com/tucoflyer/botcontrol/internal/storage/gorm"
	"github.com/tucoflyer/botcontrol/pkg/core"
)

// Backend connects on Init and then behaves as the GORM backend.
type Backend struct {
	*gormstorage.Backend
	dsn string
	log *slog.Logger
}

// New creates a backend for dsn; nothing is opened until Init.
func New(dsn string, log *slog.Logger) *Backend {
	if log == nil {
		log = slog.Default()
	}
	return &Backend{dsn: dsn, log: log}
}

// Init connects, migrates the schema and starts the writer.
func (b *Backend) Init() error {
	db, err := database.OpenPostgres(b.dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	b.Backend = gormstorage.New(gormstorage.Dependencies{DB: db, Logger: b.log})
	if err := b.Backend.Init(); err != nil {
		return err
	}
	b.log.Info("connected to postgres")
	return nil
}

// Close is safe to call even if Init failed.
func (b *Backend) Close() error {
	if b.Backend == nil {
		return nil
	}
	return b.Backend.Close()
}

// StartSession fails if Init has not succeeded.
func (b *Backend) StartSession(s *core.Session) error {
	if b.Backend == nil {
		return fmt.Errorf("postgres backend not initialized")
	}
	return b.Backend.StartSession(s)
}
