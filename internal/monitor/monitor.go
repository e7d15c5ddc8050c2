// Package monitor periodically snapshots the controller's state to a status
// file next to the recordings, so server admins can watch the recorder from
// outside the game. Snapshots are also persisted to the database when one is
// connected, which gives a coarse activity history per session.
package monitor

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/kag-tools/matchreplay/internal/controller"
)

// Models are the database tables the monitor persists.
var Models = []any{&StatusRow{}}

// StatusRow is one persisted controller snapshot.
type StatusRow struct {
	ID               uint      `gorm:"primarykey"`
	Time             time.Time `gorm:"index"`
	SessionName      string
	Mode             string
	Autorecord       bool
	MatchNumber      int
	RecordingNumber  int
	RecordedTicks    int
	ReplayTick       int
	ReplayStarts     int
	DriftCorrections int
}

// Source provides the snapshot the monitor reports.
type Source interface {
	Status() controller.Status
}

// Dependencies holds all dependencies for the monitor service.
type Dependencies struct {
	Source          Source
	DB              *gorm.DB
	Logger          *slog.Logger
	SessionName     string
	StatusDir       string
	Interval        time.Duration
	IsDatabaseValid func() bool
}

// Service manages status monitoring.
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
}

// NewService creates a new monitor service.
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	if deps.IsDatabaseValid == nil {
		deps.IsDatabaseValid = func() bool { return false }
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running.
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Snapshot builds the current status row.
func (s *Service) Snapshot() StatusRow {
	st := s.deps.Source.Status()
	return StatusRow{
		Time:             time.Now(),
		SessionName:      s.deps.SessionName,
		Mode:             st.Mode,
		Autorecord:       st.Autorecord,
		MatchNumber:      st.MatchNumber,
		RecordingNumber:  st.RecordingNumber,
		RecordedTicks:    st.RecordedTicks,
		ReplayTick:       st.ReplayTick,
		ReplayStarts:     st.ReplayStarts,
		DriftCorrections: st.DriftCorrections,
	}
}

// Start starts the status monitor goroutine.
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.Logger
		logger.Debug("Starting status monitor goroutine")

		statusFile, err := os.Create(filepath.Join(s.deps.StatusDir, "status.json"))
		if err != nil {
			logger.Error("Error creating status file", "error", err)
		}
		defer func() {
			if statusFile != nil {
				statusFile.Close()
			}
		}()

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopChan:
				return
			case <-ticker.C:
				row := s.Snapshot()

				if statusFile != nil {
					body, err := json.MarshalIndent(row, "", "  ")
					if err != nil {
						logger.Error("Error marshalling status", "error", err)
						continue
					}
					statusFile.Truncate(0)
					statusFile.Seek(0, 0)
					statusFile.Write(append(body, '\n'))
				}

				if s.deps.IsDatabaseValid() {
					if err := s.deps.DB.Create(&row).Error; err != nil {
						logger.Error("Error writing status row to database", "error", err)
					}
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		close(s.stopChan)
	}
}
