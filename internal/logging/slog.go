package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// ServiceName is the instrumentation scope used for the OTel bridge.
const ServiceName = "bot-controller"

// Options selects the sinks a SlogManager writes to.
type Options struct {
	Level string

	// Stdout defaults to os.Stdout.
	Stdout io.Writer
	// File receives a copy of every record when set.
	File io.Writer
	// Provider enables the OTel bridge when set.
	Provider *sdklog.LoggerProvider
	// GraylogAddr enables GELF output to host:port over UDP when set.
	GraylogAddr string
	// Context adds dynamic attributes, such as the current mode, to every record.
	Context ContextProvider
}

// SlogManager owns the process logger and the sinks behind it.
type SlogManager struct {
	logger      *slog.Logger
	logProvider *sdklog.LoggerProvider
	gelf        *GELFHandler
}

// NewSlogManager returns a manager whose Logger is slog.Default until Setup.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// ParseLevel converts a level name to slog.Level, case-insensitive.
// Unknown names map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func handlerOptions(lvl slog.Level) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339Nano))
				}
			}
			return a
		},
	}
}

// Setup replaces the logger with one that fans out to every sink in opts.
// A previous GELF connection is closed.
func (m *SlogManager) Setup(opts Options) error {
	lvl := ParseLevel(opts.Level)
	hopts := handlerOptions(lvl)

	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	handlers := []slog.Handler{slog.NewTextHandler(stdout, hopts)}
	if opts.File != nil {
		handlers = append(handlers, slog.NewTextHandler(opts.File, hopts))
	}
	if opts.Provider != nil {
		handlers = append(handlers, otelslog.NewHandler(ServiceName, otelslog.WithLoggerProvider(opts.Provider)))
	}

	var gh *GELFHandler
	if opts.GraylogAddr != "" {
		var err error
		gh, err = DialGELF(opts.GraylogAddr, lvl)
		if err != nil {
			return fmt.Errorf("graylog: %w", err)
		}
		handlers = append(handlers, gh)
	}

	if m.gelf != nil {
		_ = m.gelf.Close()
	}
	m.gelf = gh
	m.logProvider = opts.Provider

	var h slog.Handler = NewFanoutHandler(handlers...)
	if opts.Context != nil {
		h = NewContextHandler(h, opts.Context)
	}
	m.logger = slog.New(h)
	m.logger.Debug("logging initialized", "level", lvl.String(), "graylog", opts.GraylogAddr != "")
	return nil
}

// Logger returns the configured logger, or slog.Default before Setup.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Flush pushes pending OTel records.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider != nil {
		return m.logProvider.ForceFlush(ctx)
	}
	return nil
}

// Close releases the GELF connection, if any.
func (m *SlogManager) Close() error {
	if m.gelf == nil {
		return nil
	}
	err := m.gelf.Close()
	m.gelf = nil
	return err
}
