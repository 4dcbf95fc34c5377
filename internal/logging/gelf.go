package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
)

// messageWriter is the part of *gelf.Writer the handler needs.
type messageWriter interface {
	WriteMessage(m *gelf.Message) error
	Close() error
}

// GELFHandler sends each record to Graylog as one GELF message.
// Attributes become additional fields named "_<group>.<key>".
type GELFHandler struct {
	w      messageWriter
	mu     *sync.Mutex
	level  slog.Leveler
	host   string
	prefix string
	attrs  map[string]any
}

// DialGELF opens a UDP GELF writer to addr.
func DialGELF(addr string, level slog.Leveler) (*GELFHandler, error) {
	w, err := gelf.NewWriter(addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	w.Facility = ServiceName
	return newGELFHandler(w, level), nil
}

func newGELFHandler(w messageWriter, level slog.Leveler) *GELFHandler {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return &GELFHandler{w: w, mu: &sync.Mutex{}, level: level, host: host, attrs: map[string]any{}}
}

// syslogLevel maps slog levels onto the syslog severities GELF expects.
func syslogLevel(l slog.Level) int32 {
	switch {
	case l >= slog.LevelError:
		return 3
	case l >= slog.LevelWarn:
		return 4
	case l >= slog.LevelInfo:
		return 6
	default:
		return 7
	}
}

func (h *GELFHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *GELFHandler) Handle(_ context.Context, r slog.Record) error {
	extra := make(map[string]any, len(h.attrs)+r.NumAttrs()+1)
	for k, v := range h.attrs {
		extra[k] = v
	}
	r.Attrs(func(a slog.Attr) bool {
		addGELFAttr(extra, h.prefix, a)
		return true
	})
	extra["_level_name"] = r.Level.String()

	t := r.Time
	if t.IsZero() {
		t = time.Now()
	}
	msg := &gelf.Message{
		Version:  "1.1",
		Host:     h.host,
		Short:    r.Message,
		TimeUnix: float64(t.UnixNano()) / float64(time.Second),
		Level:    syslogLevel(r.Level),
		Facility: ServiceName,
		Extra:    extra,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.w.WriteMessage(msg)
}

func addGELFAttr(extra map[string]any, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p = prefix + a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			addGELFAttr(extra, p, ga)
		}
		return
	}
	key := "_" + prefix + a.Key
	switch a.Value.Kind() {
	case slog.KindString:
		extra[key] = a.Value.String()
	case slog.KindInt64, slog.KindUint64, slog.KindFloat64, slog.KindBool:
		extra[key] = a.Value.Any()
	default:
		extra[key] = a.Value.String()
	}
}

func (h *GELFHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	for _, a := range attrs {
		addGELFAttr(c.attrs, c.prefix, a)
	}
	return c
}

func (h *GELFHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	c.prefix = h.prefix + name + "."
	return c
}

func (h *GELFHandler) clone() *GELFHandler {
	attrs := make(map[string]any, len(h.attrs))
	for k, v := range h.attrs {
		attrs[k] = v
	}
	return &GELFHandler{w: h.w, mu: h.mu, level: h.level, host: h.host, prefix: h.prefix, attrs: attrs}
}

// Close closes the underlying writer. Handlers derived with WithAttrs or
// WithGroup share it.
func (h *GELFHandler) Close() error {
	return h.w.Close()
}
