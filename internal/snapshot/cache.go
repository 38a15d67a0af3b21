// Package snapshot holds the most recent reference snapshot of the page and
// serves ref lookups from it.
package snapshot

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webprobe/api/schemas"
)

// Source is what the cache needs from the backends: a structural listing and
// a screenshot from whichever capture-capable backend is connected.
type Source interface {
	Structural() (schemas.StructuralBackend, error)
	CaptureScreenshot(ctx context.Context) (string, schemas.BackendKind, error)
}

// Cache holds exactly one current snapshot. It refreshes only when asked to,
// or lazily on the first lookup before any snapshot was taken.
type Cache struct {
	mu      sync.Mutex
	source  Source
	mode    schemas.Mode
	opts    schemas.SnapshotOptions
	current *schemas.Snapshot
	// invalidated is set by Invalidate and cleared by the next Refresh. While
	// set, refs do not resolve: they belonged to the dropped snapshot.
	invalidated bool
	logger      *zap.Logger
}

// NewCache creates an empty cache.
func NewCache(source Source, mode schemas.Mode, opts schemas.SnapshotOptions, logger *zap.Logger) *Cache {
	return &Cache{
		source: source,
		mode:   mode,
		opts:   opts,
		logger: logger.Named("snapshot"),
	}
}

// Refresh queries the structural backend, captures a screenshot unless the
// mode is deterministic, and replaces the held snapshot wholesale.
func (c *Cache) Refresh(ctx context.Context) (*schemas.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshLocked(ctx)
}

func (c *Cache) refreshLocked(ctx context.Context) (*schemas.Snapshot, error) {
	backend, err := c.source.Structural()
	if err != nil {
		return nil, err
	}
	snap, err := backend.Snapshot(ctx, c.opts)
	if err != nil {
		return nil, schemas.NewBackendError(schemas.BackendStructural, "snapshot", err)
	}
	if snap == nil {
		return nil, schemas.NewBackendError(schemas.BackendStructural, "snapshot", fmt.Errorf("empty snapshot"))
	}
	if snap.Refs == nil {
		snap.Refs = map[string]schemas.ElementHandle{}
	}

	if c.mode != schemas.ModeDeterministic && snap.Screenshot == "" {
		img, kind, err := c.source.CaptureScreenshot(ctx)
		if err != nil {
			c.logger.Warn("Snapshot taken without screenshot.", zap.Error(err))
		} else {
			snap.Screenshot = img
			c.logger.Debug("Captured snapshot screenshot.", zap.Stringer("backend", kind))
		}
	}

	c.current = snap
	c.invalidated = false
	c.logger.Debug("Snapshot refreshed.", zap.Int("refs", len(snap.Refs)))
	return snap, nil
}

// Lookup returns the handle for ref. Before the first snapshot it refreshes
// once; after Invalidate it reports every ref missing until the next Refresh.
// It never refreshes a held snapshot.
func (c *Cache) Lookup(ctx context.Context, ref string) (schemas.ElementHandle, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.invalidated {
		return schemas.ElementHandle{}, false, nil
	}
	if c.current == nil {
		if _, err := c.refreshLocked(ctx); err != nil {
			return schemas.ElementHandle{}, false, err
		}
	}
	h, ok := c.current.Lookup(ref)
	if ok && h.Ref == "" {
		h.Ref = ref
	}
	return h, ok, nil
}

// Invalidate drops the held snapshot and every ref minted from it.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		c.logger.Debug("Snapshot invalidated.", zap.Int("refs", len(c.current.Refs)))
	}
	c.current = nil
	c.invalidated = true
}

// Current returns the held snapshot, or nil.
func (c *Cache) Current() *schemas.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}
