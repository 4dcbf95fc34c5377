package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/tucoflyer/botcontrol/internal/api"
	"github.com/tucoflyer/botcontrol/internal/config"
	"github.com/tucoflyer/botcontrol/internal/database"
	"github.com/tucoflyer/botcontrol/internal/export"
	"gorm.io/gorm"
)

var (
	exportDB     string
	exportSQLite string
	exportOut    string
	exportUpload bool
	exportTag    string
)

func openExportDB() (*gorm.DB, error) {
	switch exportDB {
	case "postgres":
		return database.OpenPostgres(database.PostgresDSN())
	case "sqlite":
		path := exportSQLite
		if path == "" {
			path = config.GetStorageConfig().SQLite.DumpPath
		}
		if path == "" {
			return nil, fmt.Errorf("no sqlite file to export from")
		}
		return database.OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown --db %q", exportDB)
	}
}

// archiveClient returns the upload client, or nil when --upload is off.
func archiveClient() (*api.Client, error) {
	if !exportUpload {
		return nil, nil
	}
	url := config.GetString("archive.url")
	if url == "" {
		return nil, fmt.Errorf("%w: --upload needs archive.url", config.ErrInvalidConfig)
	}
	c := api.New(url, config.GetString("archive.secret"))
	if err := c.Healthcheck(); err != nil {
		return nil, fmt.Errorf("archive unreachable: %w", err)
	}
	return c, nil
}

func exportSessions(cmd *cobra.Command, ids []string) error {
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
	if err := loadServiceConfig(logger); err != nil {
		return err
	}

	client, err := archiveClient()
	if err != nil {
		return err
	}

	db, err := openExportDB()
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	for _, id := range ids {
		rec, err := export.Load(db, id)
		if err != nil {
			return err
		}
		path, err := export.Write(rec, exportOut)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)

		if client == nil {
			continue
		}
		err = client.Upload(path, api.UploadMetadata{
			SessionID:  rec.Session.ID,
			StartTime:  rec.Session.StartTime,
			Duration:   rec.Duration(),
			WinchCount: rec.Session.WinchCount,
			Tag:        exportTag,
		})
		if err != nil {
			return fmt.Errorf("upload %s: %w", id, err)
		}
		logger.Info("session uploaded", "session", id, "path", path)
	}
	return nil
}
