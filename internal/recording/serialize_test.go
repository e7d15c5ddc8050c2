package recording

import (
	"bytes"
	"strings"
	"testing"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kag-tools/matchreplay/internal/sim"
	"github.com/kag-tools/matchreplay/internal/sim/headless"
	"github.com/kag-tools/matchreplay/internal/wire"
	"github.com/kag-tools/matchreplay/pkg/core"
)

func recordSession(t *testing.T, ticks int) *Recording {
	t.Helper()

	h := headless.New("CTF_Cove")
	h.Advance(1000)
	knight := h.AddPlayerBlob("knight", 0, geom.XY{X: 10, Y: 0}, core.PlayerInfo{ID: 3, Username: "alice", CharName: "Alice"})
	knight.SetHeadNum(30)
	h.AddPlayerBlob("archer", 1, geom.XY{X: 90, Y: 4}, core.PlayerInfo{ID: 4, Username: "bob", CharName: "Bob"})
	h.AddBlob("chicken", -1, geom.XY{})

	r := New(nil)
	r.Start(h)
	for i := 0; i < ticks; i++ {
		knight.SetPosition(geom.XY{X: 10 + float64(i), Y: 0})
		knight.SetKeyPressed(core.KeyRight, true)
		r.CaptureTick(h)
	}
	h.Advance(uint32(ticks))
	r.End(h)
	return r
}

func TestSerialize_RoundTrip(t *testing.T) {
	r := recordSession(t, 3)
	require.NoError(t, r.CreateSavePoint("mid", 1))

	var buf bytes.Buffer
	require.NoError(t, r.Serialize(&buf))

	got, err := Parse(&buf)
	require.NoError(t, err)

	assert.Equal(t, r.InitT(), got.InitT())
	assert.Equal(t, r.EndT(), got.EndT())
	assert.Equal(t, r.MapName(), got.MapName())
	assert.Equal(t, r.NumRecordedTicks(), got.NumRecordedTicks())
	assert.Equal(t, r.Metas(), got.Metas())
	assert.Equal(t, r.SavePoints(), got.SavePoints())

	for i := 0; i < r.NumRecordedTicks(); i++ {
		assert.Equal(t, r.TickSamples(i), got.TickSamples(i), "tick %d", i)
	}
}

func TestSerialize_TickAlignmentWithEmptyTicks(t *testing.T) {
	h := headless.New("empty")
	r := New(nil)
	r.Start(h)
	for i := 0; i < 5; i++ {
		r.CaptureTick(h)
	}
	r.End(h)

	var buf bytes.Buffer
	require.NoError(t, r.Serialize(&buf))
	assert.Equal(t, 5, strings.Count(buf.String(), "<tick>"))

	got, err := Parse(&buf)
	require.NoError(t, err)
	assert.Equal(t, 5, got.NumRecordedTicks())
	for i := 0; i < 5; i++ {
		assert.Empty(t, got.TickSamples(i))
	}
}

func TestSerialize_PlayerlessMetaOmitsPlayerBlock(t *testing.T) {
	h := headless.New("map")
	h.AddBlob("catapult", 0, geom.XY{X: 1, Y: 2})

	r := New(nil)
	r.SetPredicate(func(b sim.Blob) bool { return true })
	r.Start(h)
	r.CaptureTick(h)

	var buf bytes.Buffer
	require.NoError(t, r.Serialize(&buf))
	out := buf.String()
	assert.Contains(t, out, "<name>catapult</name>")
	assert.NotContains(t, out, "<playerid>")

	got, err := Parse(strings.NewReader(out))
	require.NoError(t, err)
	metas := got.Metas()
	require.Len(t, metas, 1)
	assert.False(t, metas[0].HasPlayer())
}

func TestSerialize_MetasSortedByNetID(t *testing.T) {
	r := recordSession(t, 1)

	var buf bytes.Buffer
	require.NoError(t, r.Serialize(&buf))
	out := buf.String()

	first := strings.Index(out, "<netid>1</netid>")
	second := strings.Index(out, "<netid>2</netid>")
	require.GreaterOrEqual(t, first, 0)
	require.Greater(t, second, first)
}

func TestParse_RejectsDanglingNetID(t *testing.T) {
	input := `<matchrecording>
	<version>1</version>
	<initT>0</initT>
	<endT>0</endT>
	<mapname>m</mapname>
	<allblobmeta></allblobmeta>
	<recording>
		<tick>
			<blobdata>
				<netid>77</netid>
				<position>1,2</position>
				<aimpos>3,4</aimpos>
				<keys>0</keys>
				<health>1</health>
			</blobdata>
		</tick>
	</recording>
</matchrecording>`

	_, err := Parse(strings.NewReader(input))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "netid 77")
}

func TestParse_RejectsFutureVersion(t *testing.T) {
	input := `<matchrecording><version>2</version><initT>0</initT><endT>0</endT><mapname>m</mapname><allblobmeta></allblobmeta><recording></recording></matchrecording>`

	_, err := Parse(strings.NewReader(input))
	require.Error(t, err)
	assert.ErrorIs(t, err, wire.ErrUnsupportedVersion)
}

func TestParse_RejectsOutOfRangeSavePoint(t *testing.T) {
	input := `<matchrecording><version>1</version><initT>0</initT><endT>0</endT><mapname>m</mapname><allblobmeta></allblobmeta><recording><tick></tick></recording><savepoints><savepoint><name>x</name><tick>5</tick></savepoint></savepoints></matchrecording>`

	_, err := Parse(strings.NewReader(input))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}
