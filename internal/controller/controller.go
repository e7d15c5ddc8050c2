// Package controller owns the extension's mode state machine. Exactly one of
// idle, recording or replaying is active at a time; every transition happens
// through a command handler, and the game loop drives whichever mode is
// active through Update.
package controller

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kag-tools/matchreplay/internal/recording"
	"github.com/kag-tools/matchreplay/internal/replay"
	"github.com/kag-tools/matchreplay/internal/sim"
	"github.com/kag-tools/matchreplay/internal/storage"
)

// Mode is the controller's exclusive activity state.
type Mode int

const (
	ModeIdle Mode = iota
	ModeRecording
	ModeReplaying
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeRecording:
		return "recording"
	case ModeReplaying:
		return "replaying"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ErrInvalidTransition marks a command that is a no-op in the current mode.
var ErrInvalidTransition = errors.New("invalid mode transition")

// ErrNoRecording marks commands that need a current recording when none is
// loaded.
var ErrNoRecording = errors.New("no current recording")

// Metrics is the optional sink for controller counters. All methods must be
// cheap; they run on the tick path.
type Metrics interface {
	TickCaptured(d time.Duration)
	RecordingSaved(ticks int)
	ReplayRestarted()
}

// Uploader pushes a saved recording file to a remote frontend.
type Uploader interface {
	Upload(path string) error
}

// Deps is the controller's explicit wiring. Host, Log and Store are
// required; the rest are optional side channels.
type Deps struct {
	Host     sim.Host
	Log      *slog.Logger
	Store    storage.Store
	Archive  *storage.Archive
	Metrics  Metrics
	Uploader Uploader
}

// Config carries the operator-facing knobs.
type Config struct {
	SessionName   string
	SnapThreshold float64
	Autorecord    bool
}

// Controller coordinates recording and replaying against one host. All
// methods are safe to call from a multi-threaded host; a single mutex guards
// the mode state.
type Controller struct {
	mu sync.Mutex

	deps Deps
	cfg  Config

	mode       Mode
	autorecord bool

	matchNumber     int
	recordingNumber int

	rec *recording.Recording
	rep *replay.Replay

	// status is the published snapshot behind Status. It lives outside mu
	// so that log handlers reading it re-entrantly from locked paths never
	// block.
	status atomic.Pointer[Status]
}

// New creates an idle controller.
func New(deps Deps, cfg Config) *Controller {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if cfg.SessionName == "" {
		cfg.SessionName = "session"
	}
	c := &Controller{
		deps:        deps,
		cfg:         cfg,
		autorecord:  cfg.Autorecord,
		matchNumber: 1,
	}
	c.publishStatusLocked()
	return c
}

// Mode returns the current mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Autorecord returns whether the standing autorecord flag is set.
func (c *Controller) Autorecord() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.autorecord
}

// CurrentRecording returns the recording being captured or last captured.
func (c *Controller) CurrentRecording() *recording.Recording {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rec
}

// Status is a point-in-time snapshot of the controller for monitoring.
type Status struct {
	Mode             string `json:"mode"`
	Autorecord       bool   `json:"autorecord"`
	MatchNumber      int    `json:"matchNumber"`
	RecordingNumber  int    `json:"recordingNumber"`
	RecordedTicks    int    `json:"recordedTicks"`
	ReplayTick       int    `json:"replayTick"`
	ReplayStarts     int    `json:"replayStarts"`
	DriftCorrections int    `json:"driftCorrections"`
}

// Status reports the controller's state for the status monitor. It reads the
// published snapshot without taking the mutex, so the logging context
// provider may call it while a command handler holds the lock and logs.
func (c *Controller) Status() Status {
	return *c.status.Load()
}

// publishStatusLocked refreshes the snapshot behind Status. Called with mu
// held whenever a locked section that may have changed state releases it.
func (c *Controller) publishStatusLocked() {
	s := Status{
		Mode:            c.mode.String(),
		Autorecord:      c.autorecord,
		MatchNumber:     c.matchNumber,
		RecordingNumber: c.recordingNumber,
	}
	if c.rec != nil {
		s.RecordedTicks = c.rec.NumRecordedTicks()
	}
	if c.rep != nil {
		s.ReplayTick = c.rep.CurrentTick()
		s.ReplayStarts = c.rep.Starts()
		s.DriftCorrections = c.rep.DriftCorrections()
	}
	c.status.Store(&s)
}

// unlockAndPublish republishes the status snapshot and releases mu. Deferred
// by every entry point that can change state.
func (c *Controller) unlockAndPublish() {
	c.publishStatusLocked()
	c.mu.Unlock()
}

// LoadRecording installs a previously parsed recording as the current one,
// ready for StartReplay. Refused unless idle.
func (c *Controller) LoadRecording(rec *recording.Recording) error {
	c.mu.Lock()
	defer c.unlockAndPublish()
	return c.loadRecordingLocked(rec)
}

func (c *Controller) loadRecordingLocked(rec *recording.Recording) error {
	if c.mode != ModeIdle {
		return c.refuse("load a recording")
	}
	c.rec = rec
	c.rep = nil
	return nil
}

// LoadRecordingNamed fetches a saved recording from the store by file name,
// parses it and installs it for replay. When the archive has indexed the
// file its save points are announced so operators know what start-replay
// accepts.
func (c *Controller) LoadRecordingNamed(name string) error {
	c.mu.Lock()
	defer c.unlockAndPublish()

	data, err := c.deps.Store.Load(name)
	if err != nil {
		c.broadcast("no saved recording named " + name)
		return fmt.Errorf("load recording %s: %w", name, err)
	}
	rec, err := recording.Parse(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("parse recording %s: %w", name, err)
	}
	if err := c.loadRecordingLocked(rec); err != nil {
		return err
	}
	c.broadcast(fmt.Sprintf("loaded %s: %d ticks on %s", name, rec.NumRecordedTicks(), rec.MapName()))
	c.announceSavePointsLocked(name)
	return nil
}

// announceSavePointsLocked broadcasts the save point names the archive has
// indexed for a file. Best effort; a missing archive row is not an error.
func (c *Controller) announceSavePointsLocked(name string) {
	if c.deps.Archive == nil {
		return
	}
	row, err := c.deps.Archive.ByFileName(name)
	if err != nil {
		return
	}
	points, err := row.SavePointMap()
	if err != nil || len(points) == 0 {
		return
	}
	names := make([]string, 0, len(points))
	for n := range points {
		names = append(names, n)
	}
	sort.Strings(names)
	c.broadcast("save points: " + strings.Join(names, ", "))
}

// ListRecordings names the saved recordings available to LoadRecordingNamed
// and broadcasts the list. The archive index supplies them newest first;
// without a database the store's listing is used instead.
func (c *Controller) ListRecordings() ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	names, err := c.listRecordingNamesLocked()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		c.broadcast("no saved recordings")
		return names, nil
	}
	c.broadcast("saved recordings: " + strings.Join(names, ", "))
	return names, nil
}

func (c *Controller) listRecordingNamesLocked() ([]string, error) {
	if c.deps.Archive != nil {
		rows, err := c.deps.Archive.Recent(20)
		if err != nil {
			c.deps.Log.Error("archive listing failed, falling back to store", "error", err)
		} else {
			names := make([]string, 0, len(rows))
			for _, row := range rows {
				names = append(names, row.FileName)
			}
			return names, nil
		}
	}
	names, err := c.deps.Store.List()
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	return names, nil
}

// StartRecording begins capturing a new recording. Refused unless idle.
func (c *Controller) StartRecording() error {
	c.mu.Lock()
	defer c.unlockAndPublish()
	return c.startRecordingLocked()
}

func (c *Controller) startRecordingLocked() error {
	if c.mode != ModeIdle {
		return c.refuse("start recording")
	}
	c.rec = recording.New(c.deps.Log)
	c.rep = nil
	c.rec.Start(c.deps.Host)
	c.mode = ModeRecording
	c.broadcast("match recording started")
	return nil
}

// StopRecording ends the capture, keeping the recording in memory for a
// later save or replay. Refused unless recording.
func (c *Controller) StopRecording() error {
	c.mu.Lock()
	defer c.unlockAndPublish()
	return c.stopRecordingLocked()
}

func (c *Controller) stopRecordingLocked() error {
	if c.mode != ModeRecording {
		return c.refuse("stop recording")
	}
	c.rec.End(c.deps.Host)
	c.mode = ModeIdle
	c.broadcast(fmt.Sprintf("match recording stopped after %d ticks", c.rec.NumRecordedTicks()))
	return nil
}

// SaveRecording persists the current recording through the store, stopping
// the capture first if one is running. Refused while replaying.
func (c *Controller) SaveRecording() error {
	c.mu.Lock()
	defer c.unlockAndPublish()
	return c.saveRecordingLocked()
}

func (c *Controller) saveRecordingLocked() error {
	if c.mode == ModeReplaying {
		return c.refuse("save a recording")
	}
	if c.mode == ModeRecording {
		if err := c.stopRecordingLocked(); err != nil {
			return err
		}
	}
	if c.rec == nil {
		c.broadcast("nothing to save, no recording exists")
		return ErrNoRecording
	}

	var buf bytes.Buffer
	if err := c.rec.Serialize(&buf); err != nil {
		return fmt.Errorf("serialize recording: %w", err)
	}

	name := fmt.Sprintf("%s_match%drecording%d.cfg",
		c.cfg.SessionName, c.matchNumber, c.recordingNumber+1)
	path, err := c.deps.Store.Save(name, buf.Bytes())
	if err != nil {
		return fmt.Errorf("save recording: %w", err)
	}
	c.recordingNumber++

	c.deps.Log.Info("recording saved",
		"file", name, "ticks", c.rec.NumRecordedTicks(), "bytes", buf.Len())
	c.broadcast("recording saved as " + name)
	if c.deps.Metrics != nil {
		c.deps.Metrics.RecordingSaved(c.rec.NumRecordedTicks())
	}

	if c.deps.Archive != nil {
		if _, err := c.deps.Archive.Index(c.rec, name, path); err != nil {
			c.deps.Log.Error("failed to index recording in archive", "file", name, "error", err)
		}
	}
	if c.deps.Uploader != nil {
		go func(p string) {
			if err := c.deps.Uploader.Upload(p); err != nil {
				c.deps.Log.Error("failed to upload recording", "path", p, "error", err)
			}
		}(path)
	}
	return nil
}

// StartReplay begins replaying the current recording. Refused unless idle,
// and refused while autorecord is active, which always takes precedence.
func (c *Controller) StartReplay() error {
	c.mu.Lock()
	defer c.unlockAndPublish()

	if c.autorecord {
		c.deps.Log.Warn("replay refused, autorecord is active")
		return c.refuse("start a replay")
	}
	if c.mode != ModeIdle {
		return c.refuse("start a replay")
	}
	if c.rec == nil {
		c.broadcast("no recording to replay")
		return ErrNoRecording
	}

	c.rep = replay.New(c.deps.Host, c.rec, c.cfg.SnapThreshold, c.deps.Log)
	if err := c.rep.Start(); err != nil {
		// Mode stays idle; an empty recording is an operator mistake, not
		// a crash.
		c.rep = nil
		c.broadcast("cannot replay: " + err.Error())
		return err
	}
	c.mode = ModeReplaying
	c.broadcast("replay started")
	return nil
}

// StartReplayAt begins a partial replay from a named save point.
func (c *Controller) StartReplayAt(savePoint string) error {
	c.mu.Lock()
	defer c.unlockAndPublish()

	if c.autorecord {
		c.deps.Log.Warn("replay refused, autorecord is active")
		return c.refuse("start a replay")
	}
	if c.mode != ModeIdle {
		return c.refuse("start a replay")
	}
	if c.rec == nil {
		c.broadcast("no recording to replay")
		return ErrNoRecording
	}
	tick, ok := c.rec.SavePoint(savePoint)
	if !ok {
		c.broadcast("no save point named " + savePoint)
		return fmt.Errorf("no save point named %q", savePoint)
	}

	c.rep = replay.New(c.deps.Host, c.rec, c.cfg.SnapThreshold, c.deps.Log)
	if err := c.rep.StartAt(tick); err != nil {
		c.rep = nil
		c.broadcast("cannot replay: " + err.Error())
		return err
	}
	c.mode = ModeReplaying
	c.broadcast(fmt.Sprintf("replay started from save point %s (tick %d)", savePoint, tick))
	return nil
}

// StopReplay ends the replay and reloads the recording's map so the live
// session resumes on a clean slate. Refused unless replaying.
func (c *Controller) StopReplay() error {
	c.mu.Lock()
	defer c.unlockAndPublish()

	if c.mode != ModeReplaying {
		return c.refuse("stop a replay")
	}
	c.mode = ModeIdle
	c.rep = nil
	c.broadcast("replay stopped")
	if err := c.deps.Host.LoadMap(c.rec.MapName()); err != nil {
		c.deps.Log.Error("failed to reload map after replay", "map", c.rec.MapName(), "error", err)
	}
	return nil
}

// SetAutorecord flips the standing autorecord flag. The flag only arms the
// match-lifecycle hooks; it never changes the mode by itself.
func (c *Controller) SetAutorecord(on bool) {
	c.mu.Lock()
	defer c.unlockAndPublish()
	c.autorecord = on
	if on {
		c.broadcast("autorecord enabled")
	} else {
		c.broadcast("autorecord disabled")
	}
}

// ForceAllSpectate moves every player to the spectator team. Valid in any
// mode.
func (c *Controller) ForceAllSpectate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deps.Host.ForceAllSpectate()
	c.broadcast("all players moved to spectator")
}

// CreateSavePoint marks the most recently captured tick under a name.
// Refused unless recording.
func (c *Controller) CreateSavePoint(name string) error {
	c.mu.Lock()
	defer c.unlockAndPublish()

	if c.mode != ModeRecording {
		return c.refuse("create a save point")
	}
	tick := c.rec.NumRecordedTicks() - 1
	if err := c.rec.CreateSavePoint(name, tick); err != nil {
		return err
	}
	c.broadcast(fmt.Sprintf("save point %q at tick %d", name, tick))
	return nil
}

// OnMatchRestart is the match-lifecycle hook for a new match starting. With
// autorecord armed it rolls the session to the next match and begins a fresh
// capture.
func (c *Controller) OnMatchRestart() {
	c.mu.Lock()
	defer c.unlockAndPublish()

	c.matchNumber++
	c.recordingNumber = 0
	if !c.autorecord {
		return
	}
	if c.mode == ModeRecording {
		if err := c.stopRecordingLocked(); err != nil {
			return
		}
	}
	if c.mode == ModeIdle {
		if err := c.startRecordingLocked(); err != nil {
			c.deps.Log.Error("autorecord failed to start", "error", err)
		}
	}
}

// OnGameOver is the match-lifecycle hook for a match ending. With autorecord
// armed it stops the capture and saves it.
func (c *Controller) OnGameOver() {
	c.mu.Lock()
	defer c.unlockAndPublish()

	if !c.autorecord || c.mode != ModeRecording {
		return
	}
	if err := c.saveRecordingLocked(); err != nil {
		c.deps.Log.Error("autorecord failed to save", "error", err)
	}
}

// Update runs once per simulation tick and drives whichever mode is active.
// Replays loop: when the cursor reaches the end the replay restarts from
// tick 0 on the next update.
func (c *Controller) Update() {
	c.mu.Lock()
	defer c.unlockAndPublish()

	switch c.mode {
	case ModeRecording:
		start := time.Now()
		c.rec.CaptureTick(c.deps.Host)
		if c.deps.Metrics != nil {
			c.deps.Metrics.TickCaptured(time.Since(start))
		}
	case ModeReplaying:
		if c.rep.Finished() {
			if err := c.rep.Start(); err != nil {
				c.deps.Log.Error("replay restart failed", "error", err)
				c.mode = ModeIdle
				c.rep = nil
				return
			}
			if c.deps.Metrics != nil {
				c.deps.Metrics.ReplayRestarted()
			}
		} else {
			c.rep.Advance()
		}
	}
}

// refuse reports an invalid transition to the operator and returns the
// sentinel. Callers treat it as a no-op.
func (c *Controller) refuse(action string) error {
	msg := fmt.Sprintf("cannot %s while %s", action, c.mode)
	c.deps.Log.Warn("command refused", "action", action, "mode", c.mode.String())
	c.deps.Host.Broadcast(msg)
	return fmt.Errorf("%w: %s", ErrInvalidTransition, msg)
}

func (c *Controller) broadcast(msg string) {
	c.deps.Host.Broadcast(msg)
}
