package library

import (
	"os"
	"sort"
	"strings"
)

// Group is a derived view of assets sharing a show title, or a name for
// non-episodic items.
type Group struct {
	Title     string  `json:"title"`
	Assets    []Asset `json:"assets"`
	TotalSize int64   `json:"total_size"`
}

// Groups returns the library grouped by title. Groups are sorted by title and
// episodes by season*1000+episode.
func (s *Store) Groups() []Group {
	s.mu.Lock()
	defer s.mu.Unlock()

	byTitle := make(map[string]*Group)
	var order []string
	for _, a := range s.assets {
		title := a.GroupTitle()
		g, ok := byTitle[title]
		if !ok {
			g = &Group{Title: title}
			byTitle[title] = g
			order = append(order, title)
		}
		g.Assets = append(g.Assets, a)
	}

	sort.Slice(order, func(i, j int) bool { return strings.ToLower(order[i]) < strings.ToLower(order[j]) })
	out := make([]Group, 0, len(order))
	for _, title := range order {
		g := byTitle[title]
		sort.SliceStable(g.Assets, func(i, j int) bool { return g.Assets[i].order() < g.Assets[j].order() })
		g.TotalSize = s.sizes.group(title, g.Assets)
		out = append(out, *g)
	}
	return out
}

// sizeCache memoises file sizes and group totals. Every mutation of an asset
// must call invalidate for it.
type sizeCache struct {
	files  map[string]int64 // path -> bytes
	groups map[string]int64 // group title -> bytes
}

func newSizeCache() *sizeCache {
	return &sizeCache{files: make(map[string]int64), groups: make(map[string]int64)}
}

func (c *sizeCache) file(path string) int64 {
	if path == "" {
		return 0
	}
	if n, ok := c.files[path]; ok {
		return n
	}
	var n int64
	if info, err := os.Stat(path); err == nil {
		n = info.Size()
	}
	c.files[path] = n
	return n
}

func (c *sizeCache) group(title string, assets []Asset) int64 {
	if n, ok := c.groups[title]; ok {
		return n
	}
	var n int64
	for _, a := range assets {
		n += c.file(a.LocalPath)
	}
	c.groups[title] = n
	return n
}

func (c *sizeCache) invalidate(a Asset) {
	delete(c.files, a.LocalPath)
	delete(c.groups, a.GroupTitle())
}

func (c *sizeCache) reset() {
	clear(c.files)
	clear(c.groups)
}
