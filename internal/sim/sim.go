// Package sim defines the boundary to the host simulation. The recorder and
// replayer only ever touch live entities through these interfaces; spawning,
// destruction, team management and the tick loop itself belong to the host.
package sim

import (
	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/kag-tools/matchreplay/pkg/core"
)

// EntityID is the simulation-assigned identifier of a live blob. It is only
// valid while the blob exists and is distinct from the recording-time netid.
type EntityID uint32

// Blob is one live entity in the host simulation.
type Blob interface {
	ID() EntityID
	NetID() uint16
	Kind() string
	TeamNum() int
	SetTeamNum(team int)

	Position() geom.XY
	SetPosition(pos geom.XY)
	AimPos() geom.XY
	SetAimPos(pos geom.XY)

	KeyPressed(k core.Key) bool
	SetKeyPressed(k core.Key, pressed bool)

	Health() float32

	// Player returns the controlling player, if any.
	Player() (core.PlayerInfo, bool)

	SexNum() int
	SetSexNum(sex int)
	HeadNum() int
	SetHeadNum(head int)
}

// Host exposes the simulation primitives the recorder core consumes.
type Host interface {
	// Blobs enumerates all currently-live blobs.
	Blobs() []Blob

	// BlobByID resolves a live blob by its simulation id.
	BlobByID(id EntityID) (Blob, bool)

	// CreateBlob spawns and initializes a blob in one call. Kinds needing
	// appearance setup must go through CreateBlobUninitialized instead.
	CreateBlob(kind string, team int, pos geom.XY) (Blob, error)

	// CreateBlobUninitialized spawns a blob without running its init so the
	// caller can set team/position/appearance first, then call InitBlob.
	CreateBlobUninitialized(kind string) (Blob, error)
	InitBlob(b Blob) error

	DestroyBlob(id EntityID)

	// ForceAllSpectate moves every connected player to the spectator team.
	ForceAllSpectate()

	LoadMap(name string) error
	MapName() string

	// Time returns the simulation clock in ticks.
	Time() uint32

	// Broadcast sends a chat message to all connected players.
	Broadcast(msg string)
}
