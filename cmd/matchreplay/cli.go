package main

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/kag-tools/matchreplay/internal/config"
	"github.com/kag-tools/matchreplay/internal/geo"
	"github.com/kag-tools/matchreplay/internal/recording"
	"github.com/kag-tools/matchreplay/internal/replay"
	"github.com/kag-tools/matchreplay/internal/sim/headless"
)

func loadRecordingFile(path string) (*recording.Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	rec, err := recording.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return rec, nil
}

// pathOf collects the positions of one netid across every tick, in order.
func pathOf(rec *recording.Recording, netID uint16) []geom.XY {
	var points []geom.XY
	for i := 0; i < rec.NumRecordedTicks(); i++ {
		for _, s := range rec.TickSamples(i) {
			if s.NetID == netID {
				points = append(points, s.Position)
			}
		}
	}
	return points
}

func runInspect(args []string) error {
	if len(args) < 1 {
		return errors.New("inspect requires a recording file")
	}
	rec, err := loadRecordingFile(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("map:      %s\n", rec.MapName())
	fmt.Printf("sim time: %d .. %d\n", rec.InitT(), rec.EndT())
	fmt.Printf("ticks:    %d\n", rec.NumRecordedTicks())

	metas := rec.Metas()
	fmt.Printf("blobs:    %d\n", len(metas))
	for _, m := range metas {
		points := pathOf(rec, m.NetID)
		line := fmt.Sprintf("  netid=%d kind=%s team=%d", m.NetID, m.Name, m.TeamNum)
		if m.HasPlayer() {
			line += fmt.Sprintf(" player=%q", m.Player.Username)
		}
		line += fmt.Sprintf(" samples=%d distance=%.1f maxstep=%.1f",
			len(points), geo.PathLength(points), geo.MaxStep(points))
		fmt.Println(line)
	}

	savePoints := rec.SavePoints()
	if len(savePoints) > 0 {
		names := make([]string, 0, len(savePoints))
		for name := range savePoints {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Printf("save points: %d\n", len(savePoints))
		for _, name := range names {
			fmt.Printf("  %s -> tick %d\n", name, savePoints[name])
		}
	}
	return nil
}

// JSON view of a recording for the export command. Field names match the
// wire format's tag names where one exists.
type exportDoc struct {
	MapName    string         `json:"mapName"`
	InitT      uint32         `json:"initT"`
	EndT       uint32         `json:"endT"`
	Blobs      []exportMeta   `json:"blobs"`
	Ticks      [][]exportData `json:"ticks"`
	SavePoints map[string]int `json:"savePoints,omitempty"`
}

type exportMeta struct {
	NetID    uint16 `json:"netid"`
	Kind     string `json:"kind"`
	TeamNum  int    `json:"teamNum"`
	SexNum   int    `json:"sexNum"`
	HeadNum  int    `json:"headNum"`
	PlayerID uint16 `json:"playerid,omitempty"`
	Username string `json:"username,omitempty"`
	CharName string `json:"charactername,omitempty"`
}

type exportData struct {
	NetID    uint16     `json:"netid"`
	Position [2]float64 `json:"position"`
	AimPos   [2]float64 `json:"aimpos"`
	Keys     uint16     `json:"keys"`
	Health   float32    `json:"health"`
}

func runExport(args []string) error {
	if len(args) < 1 {
		return errors.New("export requires a recording file")
	}
	rec, err := loadRecordingFile(args[0])
	if err != nil {
		return err
	}

	outPath := args[0] + ".json.gz"
	if len(args) > 1 {
		outPath = args[1]
	}

	doc := exportDoc{
		MapName: rec.MapName(),
		InitT:   rec.InitT(),
		EndT:    rec.EndT(),
	}
	for _, m := range rec.Metas() {
		doc.Blobs = append(doc.Blobs, exportMeta{
			NetID:    m.NetID,
			Kind:     m.Name,
			TeamNum:  m.TeamNum,
			SexNum:   m.SexNum,
			HeadNum:  m.HeadNum,
			PlayerID: m.Player.ID,
			Username: m.Player.Username,
			CharName: m.Player.CharName,
		})
	}
	for i := 0; i < rec.NumRecordedTicks(); i++ {
		samples := rec.TickSamples(i)
		tick := make([]exportData, 0, len(samples))
		for _, s := range samples {
			tick = append(tick, exportData{
				NetID:    s.NetID,
				Position: [2]float64{s.Position.X, s.Position.Y},
				AimPos:   [2]float64{s.AimPos.X, s.AimPos.Y},
				Keys:     uint16(s.Keys),
				Health:   s.Health,
			})
		}
		doc.Ticks = append(doc.Ticks, tick)
	}
	if sp := rec.SavePoints(); len(sp) > 0 {
		doc.SavePoints = sp
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer out.Close()

	zw := gzip.NewWriter(out)
	enc := json.NewEncoder(zw)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode recording: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	fmt.Printf("wrote %s\n", outPath)
	return nil
}

func runVerify(args []string) error {
	if len(args) < 1 {
		return errors.New("verify requires a recording file")
	}
	rec, err := loadRecordingFile(args[0])
	if err != nil {
		return err
	}

	host := headless.New(rec.MapName())
	rep := replay.New(host, rec, config.GetFloat64("snapThreshold"), logger)
	if err := rep.Start(); err != nil {
		return fmt.Errorf("start replay: %w", err)
	}

	applied := 1
	for !rep.Finished() {
		rep.Advance()
		applied++
	}

	fmt.Printf("replayed %d of %d ticks on %q\n", applied, rec.NumRecordedTicks(), rec.MapName())
	fmt.Printf("spawned blobs:      %d\n", host.NumBlobs())
	fmt.Printf("drift corrections:  %d\n", rep.DriftCorrections())

	var all []geom.XY
	for _, m := range rec.Metas() {
		all = append(all, pathOf(rec, m.NetID)...)
	}
	if len(all) > 0 {
		min, max := geo.Bounds(all)
		fmt.Printf("world bounds:       (%.1f, %.1f) .. (%.1f, %.1f)\n", min.X, min.Y, max.X, max.Y)
	}
	return nil
}
