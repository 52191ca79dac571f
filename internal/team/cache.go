package team

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the number of memoized team configs. A host
// rarely runs more than a handful of teams; the bound exists so the cache
// can never grow without limit.
const DefaultCacheSize = 16

// Cache memoizes loaded team configs by team name. Loading is pure with
// respect to filesystem reads, so a cached Team stays valid for the
// lifetime of one invocation.
type Cache struct {
	teams *lru.Cache[string, *Team]
}

// NewCache creates a bounded cache. size <= 0 uses DefaultCacheSize.
func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, _ := lru.New[string, *Team](size)
	return &Cache{teams: c}
}

// LoadForProject resolves and loads the team bound to a project, returning
// a memoized copy when the same team was already loaded.
func (c *Cache) LoadForProject(projectPath, nolanRoot string) (*Team, error) {
	name, err := TeamNameForProject(projectPath)
	if err != nil {
		return nil, err
	}
	if t, ok := c.teams.Get(name); ok {
		return t, nil
	}
	path, err := FindConfig(nolanRoot, name)
	if err != nil {
		return nil, err
	}
	t, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.teams.Add(name, t)
	return t, nil
}
