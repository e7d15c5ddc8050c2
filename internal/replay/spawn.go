package replay

import (
	"fmt"

	"github.com/kag-tools/matchreplay/internal/sim"
	"github.com/kag-tools/matchreplay/pkg/core"
)

// avatarKinds is the closed set of player-avatar kinds that need the
// two-step spawn: created uninitialized so team, position and appearance can
// be set before the blob's init logic runs. Every other kind takes the
// generic one-call path. Extending replay coverage to a new avatar class
// means adding it here.
var avatarKinds = map[string]bool{
	"knight":  true,
	"archer":  true,
	"builder": true,
}

// spawnBlob creates the synthetic live blob standing in for one recorded
// identity. The returned blob is fully initialized and positioned at the
// sample's recorded position.
func (p *Replay) spawnBlob(meta core.BlobMeta, s core.BlobSample) (sim.Blob, error) {
	if !avatarKinds[meta.Name] {
		b, err := p.host.CreateBlob(meta.Name, meta.TeamNum, s.Position)
		if err != nil {
			return nil, fmt.Errorf("create %q: %w", meta.Name, err)
		}
		return b, nil
	}

	b, err := p.host.CreateBlobUninitialized(meta.Name)
	if err != nil {
		return nil, fmt.Errorf("create %q: %w", meta.Name, err)
	}
	b.SetTeamNum(meta.TeamNum)
	b.SetPosition(s.Position)
	b.SetSexNum(meta.SexNum)
	b.SetHeadNum(meta.HeadNum)
	if err := p.host.InitBlob(b); err != nil {
		return nil, fmt.Errorf("init %q: %w", meta.Name, err)
	}
	return b, nil
}
