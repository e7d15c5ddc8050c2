package replay

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kag-tools/matchreplay/internal/recording"
	"github.com/kag-tools/matchreplay/internal/sim"
	"github.com/kag-tools/matchreplay/internal/sim/headless"
	"github.com/kag-tools/matchreplay/pkg/core"
)

// recordKnightPath captures one knight walking the given path, one tick per
// waypoint.
func recordKnightPath(t *testing.T, path []geom.XY) *recording.Recording {
	t.Helper()

	h := headless.New("CTF_Cove")
	b := h.AddPlayerBlob("knight", 2, path[0], core.PlayerInfo{ID: 9, Username: "alice", CharName: "Alice"})
	b.SetSexNum(1)
	b.SetHeadNum(42)

	r := recording.New(nil)
	r.Start(h)
	for _, pos := range path {
		b.SetPosition(pos)
		r.CaptureTick(h)
		h.Advance(1)
	}
	r.End(h)
	return r
}

func soleBlobOfKind(t *testing.T, h *headless.Host, kind string) *headless.Blob {
	t.Helper()
	blobs := h.BlobsOfKind(kind)
	require.Len(t, blobs, 1)
	return blobs[0]
}

func TestReplay_StartSpawnsAvatarWithRecordedIdentity(t *testing.T) {
	rec := recordKnightPath(t, []geom.XY{{X: 100, Y: 50}, {X: 101, Y: 50}})

	h := headless.New("CTF_Cove")
	p := New(h, rec, 0, nil)
	require.NoError(t, p.Start())

	assert.Equal(t, 1, h.SpectateCalls())
	b := soleBlobOfKind(t, h, "knight")
	assert.True(t, b.Initialized())
	assert.Equal(t, 2, b.TeamNum())
	assert.Equal(t, 1, b.SexNum())
	assert.Equal(t, 42, b.HeadNum())
	assert.Equal(t, geom.XY{X: 100, Y: 50}, b.Position())
	_, hasPlayer := b.Player()
	assert.False(t, hasPlayer, "replayed blobs are synthetic, not player-controlled")
}

func TestReplay_StartDestroysOnlyRecordedKinds(t *testing.T) {
	rec := recordKnightPath(t, []geom.XY{{X: 0, Y: 0}, {X: 1, Y: 0}})

	h := headless.New("CTF_Cove")
	h.AddPlayerBlob("knight", 0, geom.XY{X: 500, Y: 500}, core.PlayerInfo{ID: 2, Username: "bob"})
	h.AddBlob("chicken", -1, geom.XY{X: 7, Y: 7})

	p := New(h, rec, 0, nil)
	require.NoError(t, p.Start())

	assert.Len(t, h.BlobsOfKind("knight"), 1, "live knight destroyed, replayed knight spawned")
	assert.Equal(t, geom.XY{X: 0, Y: 0}, soleBlobOfKind(t, h, "knight").Position())
	assert.Len(t, h.BlobsOfKind("chicken"), 1, "unrecorded kinds survive")
}

func TestReplay_EmptyRecordingRejected(t *testing.T) {
	h := headless.New("CTF_Cove")
	r := recording.New(nil)
	r.Start(h)
	r.End(h)

	p := New(h, r, 0, nil)
	err := p.Start()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyRecording)
	assert.Zero(t, h.SpectateCalls(), "rejection must not touch the simulation")
	assert.Zero(t, h.NumBlobs())
}

func TestReplay_DriftBeyondThresholdTeleports(t *testing.T) {
	// Recorded entity stands still at x=100 while the live one is dragged
	// 29 units away, far past the threshold of 4.0.
	rec := recordKnightPath(t, []geom.XY{{X: 100, Y: 50}, {X: 100, Y: 50}, {X: 100, Y: 50}})

	h := headless.New("CTF_Cove")
	p := New(h, rec, 4.0, nil)
	require.NoError(t, p.Start())

	b := soleBlobOfKind(t, h, "knight")
	b.SetPosition(geom.XY{X: 129, Y: 50})

	p.Advance()
	assert.Equal(t, geom.XY{X: 100, Y: 50}, b.Position(), "drift of 29 snaps back")
	assert.Equal(t, 1, p.DriftCorrections())
}

func TestReplay_DriftAtThresholdLeftAlone(t *testing.T) {
	rec := recordKnightPath(t, []geom.XY{{X: 100, Y: 50}, {X: 100, Y: 50}})

	h := headless.New("CTF_Cove")
	p := New(h, rec, 4.0, nil)
	require.NoError(t, p.Start())

	b := soleBlobOfKind(t, h, "knight")
	b.SetPosition(geom.XY{X: 104, Y: 50}) // exactly at threshold, not beyond

	p.Advance()
	assert.Equal(t, geom.XY{X: 104, Y: 50}, b.Position(), "threshold is strict")
	assert.Zero(t, p.DriftCorrections())
}

func TestReplay_KeysAndAimAppliedEveryTick(t *testing.T) {
	h := headless.New("TDM_Arena")
	src := h.AddPlayerBlob("archer", 0, geom.XY{X: 10, Y: 10}, core.PlayerInfo{ID: 1, Username: "alice"})

	r := recording.New(nil)
	r.Start(h)
	src.SetKeyPressed(core.KeyRight, true)
	src.SetAimPos(geom.XY{X: 50, Y: 0})
	r.CaptureTick(h)
	src.SetKeyPressed(core.KeyRight, false)
	src.SetKeyPressed(core.KeyAction1, true)
	src.SetAimPos(geom.XY{X: 60, Y: 5})
	r.CaptureTick(h)
	r.End(h)

	target := headless.New("TDM_Arena")
	p := New(target, r, 0, nil)
	require.NoError(t, p.Start())

	b := soleBlobOfKind(t, target, "archer")
	assert.True(t, b.KeyPressed(core.KeyRight))
	assert.False(t, b.KeyPressed(core.KeyAction1))
	assert.Equal(t, geom.XY{X: 50, Y: 0}, b.AimPos())

	p.Advance()
	assert.False(t, b.KeyPressed(core.KeyRight), "released keys are cleared, not latched")
	assert.True(t, b.KeyPressed(core.KeyAction1))
	assert.Equal(t, geom.XY{X: 60, Y: 5}, b.AimPos())
}

func TestReplay_FinishedBoundaryAndLoop(t *testing.T) {
	rec := recordKnightPath(t, []geom.XY{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}})

	h := headless.New("CTF_Cove")
	p := New(h, rec, 0, nil)
	require.NoError(t, p.Start())

	// Cursor sits one past the applied tick; the last tick trips Finished
	// before it is ever applied.
	assert.Equal(t, 1, p.CurrentTick())
	assert.False(t, p.Finished())
	p.Advance()
	assert.True(t, p.Finished())
	assert.Equal(t, geom.XY{X: 1, Y: 0}, soleBlobOfKind(t, h, "knight").Position())

	// Looping: restart rewinds to tick 0 with a fresh identity map.
	require.NoError(t, p.Start())
	assert.Equal(t, 2, p.Starts())
	assert.Equal(t, 1, p.CurrentTick())
	assert.Len(t, h.BlobsOfKind("knight"), 1, "restart replaces, never accumulates")
	assert.Equal(t, geom.XY{X: 0, Y: 0}, soleBlobOfKind(t, h, "knight").Position())
}

func TestReplay_SingleTickRecordingIsImmediatelyFinished(t *testing.T) {
	rec := recordKnightPath(t, []geom.XY{{X: 5, Y: 5}})

	h := headless.New("CTF_Cove")
	p := New(h, rec, 0, nil)
	require.NoError(t, p.Start())
	assert.True(t, p.Finished())
	assert.Equal(t, geom.XY{X: 5, Y: 5}, soleBlobOfKind(t, h, "knight").Position())
}

func TestReplay_StaleMappingSkippedWithoutRespawn(t *testing.T) {
	rec := recordKnightPath(t, []geom.XY{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}})

	h := headless.New("CTF_Cove")
	p := New(h, rec, 0, nil)
	require.NoError(t, p.Start())

	h.DestroyBlob(soleBlobOfKind(t, h, "knight").ID())

	p.Advance()
	assert.Empty(t, h.BlobsOfKind("knight"), "a vanished mapping is never respawned mid-run")

	// A restart rebuilds the identity map and spawns fresh.
	require.NoError(t, p.Start())
	assert.Len(t, h.BlobsOfKind("knight"), 1)
}

func TestReplay_SpawnFailureLeavesEntityAbsentThisTick(t *testing.T) {
	rec := recordKnightPath(t, []geom.XY{{X: 0, Y: 0}, {X: 1, Y: 0}})

	h := headless.New("CTF_Cove")
	h.FailNextSpawn(errors.New("no spawn markers on map"))

	p := New(h, rec, 0, nil)
	require.NoError(t, p.Start())
	assert.Empty(t, h.BlobsOfKind("knight"))

	// Still unmapped, so the next tick tries again.
	p.Advance()
	assert.Len(t, h.BlobsOfKind("knight"), 1)
	assert.Equal(t, geom.XY{X: 1, Y: 0}, soleBlobOfKind(t, h, "knight").Position())
}

func TestReplay_SpawnFailureReportedOncePerNetID(t *testing.T) {
	rec := recordKnightPath(t, []geom.XY{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}})

	var logBuf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logBuf, nil))

	h := headless.New("CTF_Cove")
	p := New(h, rec, 0, log)

	h.FailNextSpawn(errors.New("no spawn markers on map"))
	require.NoError(t, p.Start())
	h.FailNextSpawn(errors.New("no spawn markers on map"))
	p.Advance()

	assert.Equal(t, 1, strings.Count(logBuf.String(), "spawn failed"),
		"repeated failures for one netid report a single error")

	// The retry itself is untouched: the next tick spawns and places the blob.
	p.Advance()
	assert.Equal(t, geom.XY{X: 2, Y: 0}, soleBlobOfKind(t, h, "knight").Position())

	// A restart clears the ledger, so a fresh run reports again.
	h.FailNextSpawn(errors.New("no spawn markers on map"))
	require.NoError(t, p.Start())
	assert.Equal(t, 2, strings.Count(logBuf.String(), "spawn failed"))
}

func TestReplay_StartAtSavePoint(t *testing.T) {
	path := make([]geom.XY, 10)
	for i := range path {
		path[i] = geom.XY{X: float64(i * 10), Y: 0}
	}
	rec := recordKnightPath(t, path)
	require.NoError(t, rec.CreateSavePoint("overtime", 7))

	h := headless.New("CTF_Cove")
	p := New(h, rec, 0, nil)

	tick, ok := rec.SavePoint("overtime")
	require.True(t, ok)
	require.NoError(t, p.StartAt(tick))

	assert.Equal(t, geom.XY{X: 70, Y: 0}, soleBlobOfKind(t, h, "knight").Position())
	assert.Equal(t, 8, p.CurrentTick())

	assert.Error(t, p.StartAt(10), "out-of-range start tick rejected")
	assert.Error(t, p.StartAt(-1))
}

func TestReplay_GenericKindUsesDirectSpawn(t *testing.T) {
	h := headless.New("CTF_Cove")
	h.AddBlob("catapult", 1, geom.XY{X: 30, Y: 40})

	r := recording.New(nil)
	r.SetPredicate(func(b sim.Blob) bool { return true })
	r.Start(h)
	r.CaptureTick(h)
	r.CaptureTick(h)
	r.End(h)

	target := headless.New("CTF_Cove")
	p := New(target, r, 0, nil)
	require.NoError(t, p.Start())

	b := soleBlobOfKind(t, target, "catapult")
	assert.True(t, b.Initialized())
	assert.Equal(t, 1, b.TeamNum())
	assert.Equal(t, geom.XY{X: 30, Y: 40}, b.Position())
}
