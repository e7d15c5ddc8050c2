// Package recording captures per-tick state of player-controlled blobs into
// an append-only, tick-indexed history that can later be replayed.
package recording

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kag-tools/matchreplay/internal/cache"
	"github.com/kag-tools/matchreplay/internal/sim"
	"github.com/kag-tools/matchreplay/pkg/core"
)

// Predicate decides whether a live blob is captured. It is the single policy
// knob controlling recording scope.
type Predicate func(b sim.Blob) bool

// DefaultPredicate records player-controlled blobs only. Projectiles, items
// and AI blobs never produce metas or samples.
func DefaultPredicate(b sim.Blob) bool {
	_, ok := b.Player()
	return ok
}

// Recording owns the full tick-indexed sample history of one session plus
// the set of observed blob metas. Ticks are strictly ordered by elapsed
// simulation steps since Start; the sequence is append-only.
type Recording struct {
	initT   uint32
	endT    uint32
	mapName string

	metas      *cache.MetaCache
	ticks      [][]core.BlobSample
	savePoints map[string]int

	pred      Predicate
	log       *slog.Logger
	startedAt time.Time
}

// New creates an empty recording using the default predicate.
func New(log *slog.Logger) *Recording {
	if log == nil {
		log = slog.Default()
	}
	return &Recording{
		metas:      cache.NewMetaCache(),
		savePoints: make(map[string]int),
		pred:       DefaultPredicate,
		log:        log,
	}
}

// SetPredicate swaps the recording predicate. Must be called before Start.
func (r *Recording) SetPredicate(p Predicate) {
	if p != nil {
		r.pred = p
	}
}

// Start stamps the recording's t0 and map, and seeds metas for every
// qualifying blob already present in the simulation.
func (r *Recording) Start(h sim.Host) {
	r.initT = h.Time()
	r.mapName = h.MapName()
	r.startedAt = time.Now()

	for _, b := range h.Blobs() {
		if r.pred(b) {
			r.metas.Add(metaFromBlob(b))
		}
	}

	r.log.Info("recording started", "map", r.mapName, "initT", r.initT, "seededMetas", r.metas.Len())
}

// CaptureTick appends one tick-sample built from every qualifying live blob.
// Blobs first seen mid-recording (late joiners) get a meta on the fly. A tick
// with zero qualifying blobs still appends an empty tick-sample so tick
// alignment is preserved.
func (r *Recording) CaptureTick(h sim.Host) {
	var samples []core.BlobSample
	for _, b := range h.Blobs() {
		if !r.pred(b) {
			continue
		}
		if _, ok := r.metas.Get(b.NetID()); !ok {
			r.metas.Add(metaFromBlob(b))
		}
		samples = append(samples, sampleFromBlob(b))
	}
	r.ticks = append(r.ticks, samples)
}

// End stamps the end time. The tick history is untouched; the mode controller
// is responsible for not capturing further ticks afterwards.
func (r *Recording) End(h sim.Host) {
	r.endT = h.Time()
	r.log.Info("recording ended",
		"ticks", len(r.ticks), "metas", r.metas.Len(),
		"wallClock", time.Since(r.startedAt).Round(time.Millisecond))
}

// NumRecordedTicks returns the length of the tick history.
func (r *Recording) NumRecordedTicks() int {
	return len(r.ticks)
}

// TickSamples returns the sample set captured at tick index i.
func (r *Recording) TickSamples(i int) []core.BlobSample {
	return r.ticks[i]
}

// Meta resolves a netid to its meta. Every sample's netid must resolve; a
// miss during replay is a data-integrity fault in the recording.
func (r *Recording) Meta(netID uint16) (core.BlobMeta, bool) {
	return r.metas.Get(netID)
}

// Metas returns all observed metas in ascending netid order.
func (r *Recording) Metas() []core.BlobMeta {
	return r.metas.Sorted()
}

// Kinds returns the distinct blob kinds present in the meta set. The replay
// destroys exactly these kinds before re-spawning.
func (r *Recording) Kinds() []string {
	return r.metas.Kinds()
}

func (r *Recording) InitT() uint32   { return r.initT }
func (r *Recording) EndT() uint32    { return r.endT }
func (r *Recording) MapName() string { return r.mapName }

// CreateSavePoint marks the given tick index under a name, for partial
// replays. The latest mark under the same name wins.
func (r *Recording) CreateSavePoint(name string, tick int) error {
	if name == "" {
		return fmt.Errorf("save point needs a name")
	}
	if tick < 0 || tick >= len(r.ticks) {
		return fmt.Errorf("save point tick %d out of range [0,%d)", tick, len(r.ticks))
	}
	r.savePoints[name] = tick
	return nil
}

// SavePoint resolves a named save point to its tick index.
func (r *Recording) SavePoint(name string) (int, bool) {
	tick, ok := r.savePoints[name]
	return tick, ok
}

// SavePoints returns a copy of all named save points.
func (r *Recording) SavePoints() map[string]int {
	points := make(map[string]int, len(r.savePoints))
	for name, tick := range r.savePoints {
		points[name] = tick
	}
	return points
}

func metaFromBlob(b sim.Blob) core.BlobMeta {
	meta := core.BlobMeta{
		NetID:   b.NetID(),
		Name:    b.Kind(),
		TeamNum: b.TeamNum(),
		SexNum:  b.SexNum(),
		HeadNum: b.HeadNum(),
	}
	if player, ok := b.Player(); ok {
		meta.Player = player
	}
	return meta
}

func sampleFromBlob(b sim.Blob) core.BlobSample {
	var keys core.KeyMask
	for _, k := range core.Keys() {
		keys = keys.Set(k, b.KeyPressed(k))
	}
	return core.BlobSample{
		NetID:    b.NetID(),
		Position: b.Position(),
		AimPos:   b.AimPos(),
		Keys:     keys,
		Health:   b.Health(),
	}
}
