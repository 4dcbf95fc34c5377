// Package monitor periodically reports process health to a status file and
// to dashboard clients.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// TypeBotStatus is the broadcast kind of a Status.
const TypeBotStatus = "bot_status"

// Status is one health snapshot. Every field must be readable from any
// goroutine; controller state is not sampled here.
type Status struct {
	Time             time.Time     `json:"time"`
	Uptime           time.Duration `json:"uptime"`
	Mode             string        `json:"mode"`
	DatagramsIn      uint64        `json:"datagrams_in"`
	DatagramsDropped uint64        `json:"datagrams_dropped"`
	RecordsDropped   uint64        `json:"records_dropped"`
	LastDBWrite      time.Duration `json:"last_db_write"`
	DashboardClients int           `json:"dashboard_clients"`
}

// Lines renders s for the status file.
func (s Status) Lines() []string {
	return []string{
		fmt.Sprintf("time: %s", s.Time.UTC().Format(time.RFC3339)),
		fmt.Sprintf("uptime: %s", s.Uptime.Round(time.Second)),
		fmt.Sprintf("mode: %s", s.Mode),
		fmt.Sprintf("datagrams: %d in, %d dropped", s.DatagramsIn, s.DatagramsDropped),
		fmt.Sprintf("records dropped: %d", s.RecordsDropped),
		fmt.Sprintf("last db write: %s", s.LastDBWrite),
		fmt.Sprintf("dashboard clients: %d", s.DashboardClients),
	}
}

// Broadcaster pushes a status to dashboard clients.
type Broadcaster interface {
	Broadcast(typ string, payload any)
}

// Dependencies holds all dependencies for the monitor service. Any source
// may be nil.
type Dependencies struct {
	Mode           func() string
	Datagrams      func() (received, dropped uint64)
	RecordsDropped func() uint64
	LastDBWrite    func() time.Duration
	Clients        func() int

	Hub        Broadcaster
	StatusFile string
	Interval   time.Duration
	Logger     *slog.Logger
}

// Service samples Dependencies every Interval.
type Service struct {
	deps    Dependencies
	started time.Time

	mu      sync.RWMutex
	running bool
	last    Status
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{deps: deps, started: time.Now()}
}

// IsRunning returns whether Run is active.
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Last returns the most recent sample.
func (s *Service) Last() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Collect takes one sample now.
func (s *Service) Collect() Status {
	now := time.Now()
	st := Status{Time: now, Uptime: now.Sub(s.started)}
	if s.deps.Mode != nil {
		st.Mode = s.deps.Mode()
	}
	if s.deps.Datagrams != nil {
		st.DatagramsIn, st.DatagramsDropped = s.deps.Datagrams()
	}
	if s.deps.RecordsDropped != nil {
		st.RecordsDropped = s.deps.RecordsDropped()
	}
	if s.deps.LastDBWrite != nil {
		st.LastDBWrite = s.deps.LastDBWrite()
	}
	if s.deps.Clients != nil {
		st.DashboardClients = s.deps.Clients()
	}
	return st
}

// Run samples until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ticker := time.NewTicker(s.deps.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.report(s.Collect())
		}
	}
}

func (s *Service) report(st Status) {
	s.mu.Lock()
	s.last = st
	s.mu.Unlock()

	if s.deps.Hub != nil {
		s.deps.Hub.Broadcast(TypeBotStatus, st)
	}
	if s.deps.StatusFile != "" {
		if err := writeStatusFile(s.deps.StatusFile, st); err != nil {
			s.deps.Logger.Warn("writing status file", "path", s.deps.StatusFile, "error", err)
		}
	}
}

// writeStatusFile replaces path with the text lines followed by the JSON form.
func writeStatusFile(path string, st Status) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	for _, line := range st.Lines() {
		if _, err := f.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	_, err = f.Write(append(raw, '\n'))
	return err
}
