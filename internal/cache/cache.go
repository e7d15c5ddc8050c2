package cache

import (
	"sort"
	"sync"

	"github.com/kag-tools/matchreplay/pkg/core"
)

// MetaCache holds the blob metas observed during a recording, keyed by netid.
// Metas are captured once at first sight and never overwritten; the set only
// grows for the lifetime of a recording.
type MetaCache struct {
	m     sync.Mutex
	metas map[uint16]core.BlobMeta
}

func NewMetaCache() *MetaCache {
	return &MetaCache{
		metas: make(map[uint16]core.BlobMeta),
	}
}

func (c *MetaCache) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.metas = make(map[uint16]core.BlobMeta)
}

// Get returns the meta for a netid, if one was ever observed.
func (c *MetaCache) Get(netID uint16) (core.BlobMeta, bool) {
	c.m.Lock()
	defer c.m.Unlock()
	meta, ok := c.metas[netID]
	return meta, ok
}

// Add stores a meta for a netid. The first meta wins; later calls for the
// same netid are ignored so recorded identity never drifts mid-recording.
func (c *MetaCache) Add(meta core.BlobMeta) {
	c.m.Lock()
	defer c.m.Unlock()
	if _, exists := c.metas[meta.NetID]; exists {
		return
	}
	c.metas[meta.NetID] = meta
}

func (c *MetaCache) Len() int {
	c.m.Lock()
	defer c.m.Unlock()
	return len(c.metas)
}

// Sorted returns all metas in ascending netid order. Serialization depends
// on this ordering being stable.
func (c *MetaCache) Sorted() []core.BlobMeta {
	c.m.Lock()
	defer c.m.Unlock()
	metas := make([]core.BlobMeta, 0, len(c.metas))
	for _, m := range c.metas {
		metas = append(metas, m)
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].NetID < metas[j].NetID })
	return metas
}

// Kinds returns the distinct blob kinds present in the cache.
func (c *MetaCache) Kinds() []string {
	c.m.Lock()
	defer c.m.Unlock()
	seen := make(map[string]struct{})
	kinds := make([]string, 0)
	for _, m := range c.metas {
		if _, ok := seen[m.Name]; ok {
			continue
		}
		seen[m.Name] = struct{}{}
		kinds = append(kinds, m.Name)
	}
	sort.Strings(kinds)
	return kinds
}
