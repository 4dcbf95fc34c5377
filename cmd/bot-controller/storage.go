package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/tucoflyer/botcontrol/internal/config"
	"github.com/tucoflyer/botcontrol/internal/database"
	"github.com/tucoflyer/botcontrol/internal/logging"
	"github.com/tucoflyer/botcontrol/internal/storage"
	"github.com/tucoflyer/botcontrol/internal/storage/influx"
	"github.com/tucoflyer/botcontrol/internal/storage/memory"
	pgstorage "github.com/tucoflyer/botcontrol/internal/storage/postgres"
	sqlitestorage "github.com/tucoflyer/botcontrol/internal/storage/sqlite"
	wsstorage "github.com/tucoflyer/botcontrol/internal/storage/websocket"
)

// createStorageBackend picks the recorder named by cfg.Type. zlogOut
// receives the influx backend's zerolog output.
func createStorageBackend(cfg config.StorageConfig, logger *slog.Logger, zlogOut io.Writer, level string) (storage.Backend, error) {
	switch cfg.Type {
	case "memory":
		logger.Info("memory storage backend selected", "dir", cfg.Memory.OutputDir)
		return memory.New(cfg.Memory), nil

	case "sqlite":
		backend, err := sqlitestorage.New(cfg.SQLite, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		logger.Info("sqlite storage backend selected", "dump", cfg.SQLite.DumpPath)
		return backend, nil

	case "postgres":
		logger.Info("postgres storage backend selected")
		return pgstorage.New(database.PostgresDSN(), logger), nil

	case "influx":
		opts := influx.OptionsFromConfig()
		logger.Info("influx storage backend selected", "url", opts.URL, "bucket", opts.Bucket)
		return influx.New(opts, logging.NewZerolog(zlogOut, level)), nil

	case "websocket":
		logger.Info("websocket storage backend selected", "url", cfg.WebSocket.URL)
		return wsstorage.New(cfg.WebSocket, logger), nil

	case "none", "":
		return storage.None{}, nil

	default:
		return nil, fmt.Errorf("%w: unknown storage.type %q", config.ErrInvalidConfig, cfg.Type)
	}
}

// droppedCounter is implemented by recorders that can shed load.
type droppedCounter interface {
	Dropped() int64
}

func recordsDropped(b storage.Backend) func() uint64 {
	dc, ok := b.(droppedCounter)
	if !ok {
		return nil
	}
	return func() uint64 {
		if n := dc.Dropped(); n > 0 {
			return uint64(n)
		}
		return 0
	}
}
