// Package headless is an in-memory implementation of sim.Host. It backs the
// package tests and the `matchreplay verify` command, which drives a full
// replay pass without a live game server.
package headless

import (
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/kag-tools/matchreplay/internal/queue"
	"github.com/kag-tools/matchreplay/internal/sim"
	"github.com/kag-tools/matchreplay/pkg/core"
)

// Blob is a live entity in the headless simulation.
type Blob struct {
	id      sim.EntityID
	netID   uint16
	kind    string
	team    int
	pos     geom.XY
	aim     geom.XY
	keys    core.KeyMask
	health  float32
	player  core.PlayerInfo
	sexNum  int
	headNum int

	// initialized is false for blobs created through the uninitialized
	// spawn path until InitBlob runs.
	initialized bool
}

func (b *Blob) ID() sim.EntityID       { return b.id }
func (b *Blob) NetID() uint16          { return b.netID }
func (b *Blob) Kind() string           { return b.kind }
func (b *Blob) TeamNum() int           { return b.team }
func (b *Blob) SetTeamNum(team int)    { b.team = team }
func (b *Blob) Position() geom.XY      { return b.pos }
func (b *Blob) SetPosition(p geom.XY)  { b.pos = p }
func (b *Blob) AimPos() geom.XY        { return b.aim }
func (b *Blob) SetAimPos(p geom.XY)    { b.aim = p }
func (b *Blob) Health() float32        { return b.health }
func (b *Blob) SetHealth(h float32)    { b.health = h }
func (b *Blob) SexNum() int            { return b.sexNum }
func (b *Blob) SetSexNum(sex int)      { b.sexNum = sex }
func (b *Blob) HeadNum() int           { return b.headNum }
func (b *Blob) SetHeadNum(head int)    { b.headNum = head }
func (b *Blob) Initialized() bool      { return b.initialized }

func (b *Blob) KeyPressed(k core.Key) bool { return b.keys.Pressed(k) }
func (b *Blob) SetKeyPressed(k core.Key, pressed bool) {
	b.keys = b.keys.Set(k, pressed)
}

func (b *Blob) Player() (core.PlayerInfo, bool) {
	return b.player, b.player.ID != 0
}

// Host is the in-memory simulation. Enumeration order is creation order so
// tests are deterministic.
type Host struct {
	blobs   map[sim.EntityID]*Blob
	order   []sim.EntityID
	nextID  sim.EntityID
	mapName string
	time    uint32

	broadcasts *queue.Queue[string]

	// spawnErr, when set, makes the next spawn call fail.
	spawnErr error

	spectateCalls int
	loadedMaps    []string
}

// New creates an empty headless host on the given map.
func New(mapName string) *Host {
	return &Host{
		blobs:      make(map[sim.EntityID]*Blob),
		mapName:    mapName,
		broadcasts: queue.New[string](),
	}
}

func (h *Host) Blobs() []sim.Blob {
	out := make([]sim.Blob, 0, len(h.order))
	for _, id := range h.order {
		if b, ok := h.blobs[id]; ok {
			out = append(out, b)
		}
	}
	return out
}

func (h *Host) BlobByID(id sim.EntityID) (sim.Blob, bool) {
	b, ok := h.blobs[id]
	if !ok {
		return nil, false
	}
	return b, true
}

func (h *Host) CreateBlob(kind string, team int, pos geom.XY) (sim.Blob, error) {
	if h.spawnErr != nil {
		err := h.spawnErr
		h.spawnErr = nil
		return nil, err
	}
	b := h.newBlob(kind)
	b.team = team
	b.pos = pos
	b.initialized = true
	return b, nil
}

func (h *Host) CreateBlobUninitialized(kind string) (sim.Blob, error) {
	if h.spawnErr != nil {
		err := h.spawnErr
		h.spawnErr = nil
		return nil, err
	}
	return h.newBlob(kind), nil
}

func (h *Host) InitBlob(b sim.Blob) error {
	blob, ok := h.blobs[b.ID()]
	if !ok {
		return fmt.Errorf("init of unknown blob %d", b.ID())
	}
	blob.initialized = true
	return nil
}

func (h *Host) DestroyBlob(id sim.EntityID) {
	delete(h.blobs, id)
	for i, oid := range h.order {
		if oid == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

func (h *Host) ForceAllSpectate() {
	h.spectateCalls++
}

func (h *Host) LoadMap(name string) error {
	h.mapName = name
	h.loadedMaps = append(h.loadedMaps, name)
	return nil
}

func (h *Host) MapName() string { return h.mapName }
func (h *Host) Time() uint32    { return h.time }

func (h *Host) Broadcast(msg string) {
	h.broadcasts.Push(msg)
}

func (h *Host) newBlob(kind string) *Blob {
	h.nextID++
	b := &Blob{
		id:     h.nextID,
		netID:  uint16(h.nextID),
		kind:   kind,
		health: 1,
	}
	h.blobs[b.id] = b
	h.order = append(h.order, b.id)
	return b
}

// Test/driver helpers below. These are not part of sim.Host.

// AddPlayerBlob creates an initialized blob controlled by a player.
func (h *Host) AddPlayerBlob(kind string, team int, pos geom.XY, player core.PlayerInfo) *Blob {
	b := h.newBlob(kind)
	b.team = team
	b.pos = pos
	b.player = player
	b.initialized = true
	return b
}

// AddBlob creates an initialized playerless blob (AI, item, etc).
func (h *Host) AddBlob(kind string, team int, pos geom.XY) *Blob {
	b := h.newBlob(kind)
	b.team = team
	b.pos = pos
	b.initialized = true
	return b
}

// Advance moves the simulation clock forward by n ticks.
func (h *Host) Advance(n uint32) {
	h.time += n
}

// FailNextSpawn makes the next spawn call return err.
func (h *Host) FailNextSpawn(err error) {
	h.spawnErr = err
}

// Broadcasts drains and returns all chat messages sent so far.
func (h *Host) Broadcasts() []string {
	return h.broadcasts.GetAndEmpty()
}

// SpectateCalls returns how many times ForceAllSpectate ran.
func (h *Host) SpectateCalls() int { return h.spectateCalls }

// LoadedMaps returns every map load requested, in order.
func (h *Host) LoadedMaps() []string { return h.loadedMaps }

// NumBlobs returns the live blob count.
func (h *Host) NumBlobs() int { return len(h.blobs) }

// BlobsOfKind returns live blobs of one kind, in creation order.
func (h *Host) BlobsOfKind(kind string) []*Blob {
	var out []*Blob
	for _, id := range h.order {
		if b := h.blobs[id]; b != nil && b.kind == kind {
			out = append(out, b)
		}
	}
	return out
}
