package wire

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDocument() *Document {
	doc := NewDocument()
	doc.InitT = 1000
	doc.EndT = 1090
	doc.MapName = "CTF_Cove"
	doc.SetMetas([]BlobMeta{
		{
			NetID: 12, Name: "knight", TeamNum: 0, SexNum: 0, HeadNum: 30,
			PlayerID: 3, PlayerUsername: "alice", PlayerCharName: "Alice",
		},
		{NetID: 15, Name: "archer", TeamNum: 1, SexNum: 1, HeadNum: 42},
	})
	doc.AppendTick(Tick{Blobs: []BlobData{
		{NetID: 12, Position: Vec2{X: 10.5, Y: -3.25}, AimPos: Vec2{X: 40, Y: 12}, Keys: 0b101, Health: 1.75},
	}})
	doc.AppendTick(Tick{}) // empty tick keeps alignment
	doc.AppendTick(Tick{Blobs: []BlobData{
		{NetID: 12, Position: Vec2{X: 11, Y: -3.25}, AimPos: Vec2{X: 41, Y: 12}, Keys: 0, Health: 1.5},
		{NetID: 15, Position: Vec2{X: 99.125, Y: 7}, AimPos: Vec2{X: 0, Y: 0}, Keys: 0xFFF, Health: 2},
	}})
	return doc
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	doc := sampleDocument()

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, doc))

	got, err := Decode(&buf)
	require.NoError(t, err)

	assert.Equal(t, FormatVersion, got.Version)
	assert.Equal(t, uint32(1000), got.InitT)
	assert.Equal(t, uint32(1090), got.EndT)
	assert.Equal(t, "CTF_Cove", got.MapName)

	require.Len(t, got.MetaBlocks(), 2)
	assert.Equal(t, doc.MetaBlocks(), got.MetaBlocks())

	require.Len(t, got.TickBlocks(), 3)
	assert.Equal(t, doc.TickBlocks()[0], got.TickBlocks()[0])
	assert.Empty(t, got.TickBlocks()[1].Blobs)
	assert.Equal(t, doc.TickBlocks()[2], got.TickBlocks()[2])
}

func TestEncode_OmitsPlayerFieldsWithoutPlayer(t *testing.T) {
	doc := NewDocument()
	doc.SetMetas([]BlobMeta{{NetID: 5, Name: "chicken", TeamNum: -1}})

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, doc))

	out := buf.String()
	assert.NotContains(t, out, "<playerid>")
	assert.NotContains(t, out, "<playerusername>")
	assert.NotContains(t, out, "<playercharname>")
}

func TestEncode_EmptyTicksPreserved(t *testing.T) {
	doc := NewDocument()
	for i := 0; i < 5; i++ {
		doc.AppendTick(Tick{})
	}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, doc))
	assert.Equal(t, 5, strings.Count(buf.String(), "<tick>"))

	got, err := Decode(&buf)
	require.NoError(t, err)
	assert.Len(t, got.TickBlocks(), 5)
}

func TestDecode_RejectsFutureVersion(t *testing.T) {
	input := `<matchrecording><version>99</version><initT>0</initT><endT>0</endT><mapname>x</mapname><allblobmeta></allblobmeta><recording></recording></matchrecording>`

	_, err := Decode(strings.NewReader(input))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestDecode_RejectsMissingVersion(t *testing.T) {
	input := `<matchrecording><initT>0</initT><endT>0</endT><mapname>x</mapname></matchrecording>`

	_, err := Decode(strings.NewReader(input))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

func TestDecode_RejectsGarbage(t *testing.T) {
	_, err := Decode(strings.NewReader("not a recording"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

func TestSavePoints_OptionalBlock(t *testing.T) {
	doc := NewDocument()
	doc.AppendTick(Tick{})

	// absent when empty
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, doc))
	assert.NotContains(t, buf.String(), "<savepoints>")

	got, err := Decode(&buf)
	require.NoError(t, err)
	assert.Nil(t, got.SavePointBlocks())

	// present and round-tripping when set
	doc.SetSavePoints([]SavePoint{{Name: "overtime", Tick: 0}})
	buf.Reset()
	require.NoError(t, Encode(&buf, doc))
	assert.Contains(t, buf.String(), "<savepoints>")

	got, err = Decode(&buf)
	require.NoError(t, err)
	require.Len(t, got.SavePointBlocks(), 1)
	assert.Equal(t, "overtime", got.SavePointBlocks()[0].Name)
	assert.Equal(t, 0, got.SavePointBlocks()[0].Tick)
}

func TestVec2_ExactFloatRoundTrip(t *testing.T) {
	doc := NewDocument()
	doc.AppendTick(Tick{Blobs: []BlobData{{
		NetID:    1,
		Position: Vec2{X: 0.30000000000000004, Y: -123456.789},
		AimPos:   Vec2{X: 1e-9, Y: 3.4028234e38},
		Health:   0.1,
	}}})

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, doc))
	got, err := Decode(&buf)
	require.NoError(t, err)

	want := doc.TickBlocks()[0].Blobs[0]
	assert.Equal(t, want, got.TickBlocks()[0].Blobs[0])
}
