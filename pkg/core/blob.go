// Package core contains the plain domain types shared between the recorder,
// the replayer and external consumers of saved recordings.
package core

import geom "github.com/peterstace/simplefeatures/geom"

// PlayerInfo identifies the player controlling a blob at recording time.
// A zero ID means no player was attached.
type PlayerInfo struct {
	ID       uint16
	Username string
	CharName string
}

// BlobMeta is the immutable identity/appearance snapshot of one recorded
// blob, captured once at first observation. NetID is the join key between
// the meta set and every sample in the same recording.
type BlobMeta struct {
	NetID   uint16
	Name    string // blob kind/config name, e.g. "knight"
	TeamNum int
	SexNum  int
	HeadNum int
	Player  PlayerInfo
}

// HasPlayer reports whether a player was attached to the blob when the meta
// was captured.
func (m BlobMeta) HasPlayer() bool {
	return m.Player.ID != 0
}

// BlobSample is one blob's dynamic state at a single tick. Samples are
// created fresh every tick and never mutated; they have no identity beyond
// (tick index, NetID).
type BlobSample struct {
	NetID    uint16
	Position geom.XY
	AimPos   geom.XY
	Keys     KeyMask
	Health   float32
}
