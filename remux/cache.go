package remux

import (
	"github.com/patrickmn/go-cache"

	"github.com/gwuhaolin/metaremux/container/ts"
)

// sectionCache remembers rewritten sections by their input bytes, since
// primary streams repeat the same PAT and PMT over and over. It holds at
// most one entry per kind: a new table version evicts the previous one.
type sectionCache struct {
	c    *cache.Cache
	last map[byte]string // current key per kind
	hits int64
}

func newSectionCache() *sectionCache {
	return &sectionCache{
		c:    cache.New(cache.NoExpiration, 0),
		last: make(map[byte]string),
	}
}

// rewrite returns the cached output for (kind, src) or stores what fn builds.
// Cached sections are shared and must not be modified.
func (sc *sectionCache) rewrite(kind byte, src ts.Section, fn func() (ts.Section, error)) (ts.Section, error) {
	key := string(append([]byte{kind}, src...))
	if v, found := sc.c.Get(key); found {
		sc.hits++
		return v.(ts.Section), nil
	}
	out, err := fn()
	if err != nil {
		return nil, err
	}
	if prev, ok := sc.last[kind]; ok {
		sc.c.Delete(prev)
	}
	sc.c.SetDefault(key, out)
	sc.last[kind] = key
	return out, nil
}
