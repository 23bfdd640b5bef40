// Package texture reads textures back from a cache and writes them as image files.
package texture

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("texture not found")

// Cache is the host texture cache.
type Cache interface {
	// DiscardLevel returns the current mip discard level of a fetched texture. 0 means fully resident.
	// ok is false if the texture is unknown.
	DiscardLevel(id uuid.UUID) (level int, ok bool)
	Read(ctx context.Context, id uuid.UUID) (*Image, error)
}

// DirCache serves textures stored as <id>.<ext> files in a directory.
type DirCache struct {
	Dir string

	mu    sync.Mutex
	paths map[uuid.UUID]string
}

func NewDirCache(dir string) *DirCache {
	return &DirCache{Dir: dir}
}

func (c *DirCache) find(id uuid.UUID) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.paths[id]; ok {
		return p, true
	}
	matches, _ := filepath.Glob(filepath.Join(c.Dir, id.String()+".*"))
	for _, p := range matches {
		if CodecFromExt(filepath.Ext(p)) != CodecUnknown {
			if c.paths == nil {
				c.paths = map[uuid.UUID]string{}
			}
			c.paths[id] = p
			return p, true
		}
	}
	return "", false
}

func (c *DirCache) DiscardLevel(id uuid.UUID) (int, bool) {
	_, ok := c.find(id)
	return 0, ok
}

func (c *DirCache) Read(ctx context.Context, id uuid.UUID) (*Image, error) {
	p, ok := c.find(id)
	if !ok {
		return nil, errors.Wrap(ErrNotFound, id.String())
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	return &Image{Codec: CodecFromExt(filepath.Ext(p)), Data: data}, nil
}
