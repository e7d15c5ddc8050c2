package recording

import (
	"fmt"
	"io"
	"sort"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/kag-tools/matchreplay/internal/wire"
	"github.com/kag-tools/matchreplay/pkg/core"
)

// Serialize writes the recording in the versioned tagged-block format.
// Output is deterministic: metas in ascending netid order, ticks in capture
// order, save points in name order.
func (r *Recording) Serialize(w io.Writer) error {
	doc := wire.NewDocument()
	doc.InitT = r.initT
	doc.EndT = r.endT
	doc.MapName = r.mapName

	metas := r.metas.Sorted()
	wireMetas := make([]wire.BlobMeta, 0, len(metas))
	for _, m := range metas {
		wireMetas = append(wireMetas, metaToWire(m))
	}
	doc.SetMetas(wireMetas)

	for _, samples := range r.ticks {
		tick := wire.Tick{}
		for _, s := range samples {
			tick.Blobs = append(tick.Blobs, sampleToWire(s))
		}
		doc.AppendTick(tick)
	}

	if len(r.savePoints) > 0 {
		names := make([]string, 0, len(r.savePoints))
		for name := range r.savePoints {
			names = append(names, name)
		}
		sort.Strings(names)
		points := make([]wire.SavePoint, 0, len(names))
		for _, name := range names {
			points = append(points, wire.SavePoint{Name: name, Tick: r.savePoints[name]})
		}
		doc.SetSavePoints(points)
	}

	return wire.Encode(w, doc)
}

// Parse reads a serialized recording, enforcing the format-version gate and
// the meta/sample referential integrity invariant.
func Parse(rd io.Reader) (*Recording, error) {
	doc, err := wire.Decode(rd)
	if err != nil {
		return nil, err
	}

	r := New(nil)
	r.initT = doc.InitT
	r.endT = doc.EndT
	r.mapName = doc.MapName

	for _, wm := range doc.MetaBlocks() {
		r.metas.Add(metaFromWire(wm))
	}

	for i, tick := range doc.TickBlocks() {
		var samples []core.BlobSample
		for _, wb := range tick.Blobs {
			if _, ok := r.metas.Get(wb.NetID); !ok {
				return nil, fmt.Errorf("tick %d references netid %d with no blobmeta", i, wb.NetID)
			}
			samples = append(samples, sampleFromWire(wb))
		}
		r.ticks = append(r.ticks, samples)
	}

	for _, sp := range doc.SavePointBlocks() {
		if sp.Tick < 0 || sp.Tick >= len(r.ticks) {
			return nil, fmt.Errorf("save point %q tick %d out of range [0,%d)", sp.Name, sp.Tick, len(r.ticks))
		}
		r.savePoints[sp.Name] = sp.Tick
	}

	return r, nil
}

func metaToWire(m core.BlobMeta) wire.BlobMeta {
	wm := wire.BlobMeta{
		NetID:   m.NetID,
		Name:    m.Name,
		TeamNum: m.TeamNum,
		SexNum:  m.SexNum,
		HeadNum: m.HeadNum,
	}
	if m.HasPlayer() {
		wm.PlayerID = m.Player.ID
		wm.PlayerUsername = m.Player.Username
		wm.PlayerCharName = m.Player.CharName
	}
	return wm
}

func metaFromWire(wm wire.BlobMeta) core.BlobMeta {
	return core.BlobMeta{
		NetID:   wm.NetID,
		Name:    wm.Name,
		TeamNum: wm.TeamNum,
		SexNum:  wm.SexNum,
		HeadNum: wm.HeadNum,
		Player: core.PlayerInfo{
			ID:       wm.PlayerID,
			Username: wm.PlayerUsername,
			CharName: wm.PlayerCharName,
		},
	}
}

func sampleToWire(s core.BlobSample) wire.BlobData {
	return wire.BlobData{
		NetID:    s.NetID,
		Position: wire.Vec2{X: s.Position.X, Y: s.Position.Y},
		AimPos:   wire.Vec2{X: s.AimPos.X, Y: s.AimPos.Y},
		Keys:     uint16(s.Keys),
		Health:   s.Health,
	}
}

func sampleFromWire(wb wire.BlobData) core.BlobSample {
	return core.BlobSample{
		NetID:    wb.NetID,
		Position: geom.XY{X: wb.Position.X, Y: wb.Position.Y},
		AimPos:   geom.XY{X: wb.AimPos.X, Y: wb.AimPos.Y},
		Keys:     core.KeyMask(wb.Keys),
		Health:   wb.Health,
	}
}
