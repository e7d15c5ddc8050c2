// Package replay drives a recorded session back through a live simulation.
// It re-spawns synthetic blobs for every recorded identity, remaps recorded
// netids to live entity ids, and rubber-bands the live blobs onto the
// recorded trajectory tick by tick.
package replay

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/kag-tools/matchreplay/internal/recording"
	"github.com/kag-tools/matchreplay/internal/sim"
	"github.com/kag-tools/matchreplay/pkg/core"
)

// ErrEmptyRecording is returned by Start when the bound recording has no
// ticks. Nothing in the simulation is touched in that case.
var ErrEmptyRecording = errors.New("recording has no ticks")

// DefaultSnapThreshold is the drift distance, in world units, beyond which a
// live blob is teleported back onto its recorded position.
const DefaultSnapThreshold = 4.0

// Replay is bound to one completed recording and one host for its lifetime.
// It is single-threaded: the controller calls Start/Advance from the tick
// loop only.
type Replay struct {
	rec  *recording.Recording
	host sim.Host
	log  *slog.Logger

	// fakeT is the replay cursor into the recorded tick history: the index
	// of the next tick to apply. It is unrelated to the host clock.
	fakeT int

	// idMap maps recorded netids to the live entities spawned for them.
	// Rebuilt empty at every (re)start.
	idMap map[uint16]sim.EntityID

	// staleWarned holds netids already reported as vanished this run, so a
	// dead mapping is warned about once rather than every tick.
	staleWarned map[uint16]bool

	// spawnFailed holds netids whose spawn already failed this run. The
	// spawn is retried every tick but the error reports only once.
	spawnFailed map[uint16]bool

	snapThreshold float64

	driftCorrections int
	starts           int
}

// New binds a replay to a recording and a host. A snapThreshold <= 0 selects
// DefaultSnapThreshold.
func New(h sim.Host, rec *recording.Recording, snapThreshold float64, log *slog.Logger) *Replay {
	if snapThreshold <= 0 {
		snapThreshold = DefaultSnapThreshold
	}
	if log == nil {
		log = slog.Default()
	}
	return &Replay{
		rec:           rec,
		host:          h,
		log:           log,
		idMap:         make(map[uint16]sim.EntityID),
		staleWarned:   make(map[uint16]bool),
		spawnFailed:   make(map[uint16]bool),
		snapThreshold: snapThreshold,
	}
}

// Start begins (or restarts, when looping) the replay from tick 0: every
// player is forced to spectator, live blobs of the recorded kinds are
// destroyed, the identity map is reset, and tick 0 is applied immediately.
func (p *Replay) Start() error {
	return p.StartAt(0)
}

// StartAt begins the replay from an arbitrary tick index, typically one
// resolved from a named save point. StartAt(0) is exactly Start.
func (p *Replay) StartAt(tick int) error {
	if p.rec.NumRecordedTicks() == 0 {
		return ErrEmptyRecording
	}
	if tick < 0 || tick >= p.rec.NumRecordedTicks() {
		return fmt.Errorf("start tick %d out of range [0,%d)", tick, p.rec.NumRecordedTicks())
	}

	p.host.ForceAllSpectate()
	p.destroyRecordedKinds()

	p.idMap = make(map[uint16]sim.EntityID)
	p.staleWarned = make(map[uint16]bool)
	p.spawnFailed = make(map[uint16]bool)
	p.starts++

	p.log.Info("replay started",
		"map", p.rec.MapName(), "fromTick", tick, "ticks", p.rec.NumRecordedTicks())

	p.applyTick(tick)
	p.fakeT = tick + 1
	return nil
}

// Advance applies the tick at the cursor and steps the cursor forward.
// Callers gate on Finished; advancing past the history is reported and
// ignored.
func (p *Replay) Advance() {
	p.applyTick(p.fakeT)
	p.fakeT++
}

// Finished reports whether the cursor has reached the last recorded tick.
// That tick is never applied through the loop: the controller restarts the
// replay when Finished flips, one tick before the history actually ends.
func (p *Replay) Finished() bool {
	return p.fakeT >= p.rec.NumRecordedTicks()-1
}

// CurrentTick returns the index of the next tick the replay will apply.
func (p *Replay) CurrentTick() int { return p.fakeT }

// Recording returns the bound recording.
func (p *Replay) Recording() *recording.Recording { return p.rec }

// DriftCorrections returns how many snap teleports have fired since New.
func (p *Replay) DriftCorrections() int { return p.driftCorrections }

// Starts returns how many times the replay has (re)started since New.
func (p *Replay) Starts() int { return p.starts }

// destroyRecordedKinds removes every live blob whose kind appears in the
// recording's meta set, so re-spawned synthetic blobs never collide with
// leftovers from the live session.
func (p *Replay) destroyRecordedKinds() {
	kinds := make(map[string]bool)
	for _, k := range p.rec.Kinds() {
		kinds[k] = true
	}
	for _, b := range p.host.Blobs() {
		if kinds[b.Kind()] {
			p.host.DestroyBlob(b.ID())
		}
	}
}

// applyTick pushes one recorded tick onto the live simulation. A fault on one
// sample never aborts the tick; the remaining samples still apply.
func (p *Replay) applyTick(i int) {
	if i < 0 || i >= p.rec.NumRecordedTicks() {
		p.log.Error("replay tick out of range", "tick", i, "ticks", p.rec.NumRecordedTicks())
		return
	}

	for _, s := range p.rec.TickSamples(i) {
		meta, ok := p.rec.Meta(s.NetID)
		if !ok {
			p.log.Error("sample references unknown netid, recording is inconsistent",
				"tick", i, "netid", s.NetID)
			continue
		}

		id, mapped := p.idMap[s.NetID]
		if !mapped {
			b, err := p.spawnBlob(meta, s)
			if err != nil {
				if !p.spawnFailed[s.NetID] {
					p.spawnFailed[s.NetID] = true
					p.log.Error("spawn failed, entity absent until a retry succeeds",
						"tick", i, "netid", s.NetID, "kind", meta.Name, "error", err)
				}
				continue
			}
			delete(p.spawnFailed, s.NetID)
			p.idMap[s.NetID] = b.ID()
			p.applySample(b, s)
			continue
		}

		b, alive := p.host.BlobByID(id)
		if !alive {
			if !p.staleWarned[s.NetID] {
				p.staleWarned[s.NetID] = true
				p.log.Warn("replayed blob vanished, mapping is stale",
					"tick", i, "netid", s.NetID, "kind", meta.Name, "entityID", id)
			}
			continue
		}
		p.applySample(b, s)
	}
}

// applySample rubber-bands one live blob onto its recorded sample: teleport
// only past the snap threshold, aim always, and the full key mask expanded to
// per-key state every tick.
func (p *Replay) applySample(b sim.Blob, s core.BlobSample) {
	live := b.Position()
	if math.Hypot(live.X-s.Position.X, live.Y-s.Position.Y) > p.snapThreshold {
		b.SetPosition(s.Position)
		p.driftCorrections++
	}
	b.SetAimPos(s.AimPos)
	for _, k := range core.Keys() {
		b.SetKeyPressed(k, s.Keys.Pressed(k))
	}
}
