// Package regioncache caches a tracee's most recently parsed memory-map
// region slice, keyed by pid, so repeated scans of an otherwise-static
// address space don't reparse /proc/<pid>/maps on every sweep. It
// replaces the teacher's own hand-rolled pkg/proc/lrucache.go with the
// same third-party LRU delve's go.mod already carries for the
// equivalent job.
package regioncache

import (
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/vantage-systems/proctrace/internal/logflags"
	"github.com/vantage-systems/proctrace/proc"
)

type entry struct {
	regions []proc.Region
	at      time.Time
}

// Cache is an LRU-bounded, TTL-invalidated cache of parsed region
// slices. The zero value is not usable; construct with New.
type Cache struct {
	lru *lru.Cache
	ttl time.Duration
}

// New builds a cache holding at most size entries, each valid for ttl.
func New(size int, ttl time.Duration) (*Cache, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, proc.NewUnexpectedError("regioncache.New", err.Error())
	}
	return &Cache{lru: c, ttl: ttl}, nil
}

// Get returns the cached region slice for pid if present and not
// expired.
func (c *Cache) Get(pid proc.PID) ([]proc.Region, bool) {
	v, ok := c.lru.Get(pid)
	if !ok {
		return nil, false
	}
	e := v.(entry)
	if time.Since(e.at) > c.ttl {
		c.lru.Remove(pid)
		return nil, false
	}
	return e.regions, true
}

// Put stores regions for pid, timestamped now.
func (c *Cache) Put(pid proc.PID, regions []proc.Region) {
	c.lru.Add(pid, entry{regions: regions, at: time.Now()})
}

// Invalidate drops any cached entry for pid.
func (c *Cache) Invalidate(pid proc.PID) {
	c.lru.Remove(pid)
}

// Fetch returns the cached regions for p if fresh, otherwise reparses
// p's maps file, caches the result, and returns it.
func (c *Cache) Fetch(p proc.Process) ([]proc.Region, error) {
	if regions, ok := c.Get(p.PID()); ok {
		logflags.RegionCacheLogger().WithField("pid", p.PID()).Debug("region cache hit")
		return regions, nil
	}
	regions, err := p.RegionList()
	if err != nil {
		return nil, err
	}
	c.Put(p.PID(), regions)
	return regions, nil
}
