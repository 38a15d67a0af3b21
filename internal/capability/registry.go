// Package capability tracks which external backends are configured and which
// of them are currently connected, and answers precedence questions about them.
package capability

import (
	"context"
	"sync"

	"github.com/xkilldash9x/webprobe/api/schemas"
)

// Status describes one backend kind.
type Status struct {
	Kind       schemas.BackendKind `json:"kind" yaml:"kind"`
	Configured bool                `json:"configured" yaml:"configured"`
	Available  bool                `json:"available" yaml:"available"`
}

// Backends are the collaborators a Registry is built from. Any of them may be nil.
type Backends struct {
	Structural schemas.StructuralBackend
	Bridge     schemas.PointerBackend
	Native     schemas.PointerBackend
	Vision     schemas.VisionResolver
}

// Registry is keyed by backend kind. Availability is set at connect time and
// never guessed at call time.
type Registry struct {
	mu        sync.RWMutex
	backends  Backends
	available map[schemas.BackendKind]bool
	// order records connect order so teardown can run in reverse.
	order []schemas.BackendKind
}

// Kinds lists every backend kind in connect order.
var Kinds = []schemas.BackendKind{
	schemas.BackendStructural,
	schemas.BackendOSBridge,
	schemas.BackendNative,
	schemas.BackendVision,
}

// NewRegistry creates a registry where nothing is available yet.
func NewRegistry(b Backends) *Registry {
	return &Registry{
		backends:  b,
		available: make(map[schemas.BackendKind]bool, len(Kinds)),
	}
}

// Lifecycle returns the configured backend for kind, or nil.
func (r *Registry) Lifecycle(kind schemas.BackendKind) schemas.Lifecycle {
	switch kind {
	case schemas.BackendStructural:
		if r.backends.Structural != nil {
			return r.backends.Structural
		}
	case schemas.BackendOSBridge:
		if r.backends.Bridge != nil {
			return r.backends.Bridge
		}
	case schemas.BackendNative:
		if r.backends.Native != nil {
			return r.backends.Native
		}
	case schemas.BackendVision:
		if r.backends.Vision != nil {
			return r.backends.Vision
		}
	}
	return nil
}

// Configured reports whether a backend of this kind was supplied.
func (r *Registry) Configured(kind schemas.BackendKind) bool {
	return r.Lifecycle(kind) != nil
}

// MarkAvailable records a successful connect.
func (r *Registry) MarkAvailable(kind schemas.BackendKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.available[kind] {
		return
	}
	r.available[kind] = true
	r.order = append(r.order, kind)
}

// MarkUnavailable records a disconnect or a lost backend.
func (r *Registry) MarkUnavailable(kind schemas.BackendKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.available[kind] {
		return
	}
	delete(r.available, kind)
	for i, k := range r.order {
		if k == kind {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Available reports whether kind is configured and connected.
func (r *Registry) Available(kind schemas.BackendKind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.available[kind]
}

// TeardownOrder returns the connected kinds in reverse connect order.
func (r *Registry) TeardownOrder() []schemas.BackendKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]schemas.BackendKind, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		out = append(out, r.order[i])
	}
	return out
}

// Statuses reports every kind in connect order.
func (r *Registry) Statuses() []Status {
	out := make([]Status, 0, len(Kinds))
	for _, k := range Kinds {
		out = append(out, Status{Kind: k, Configured: r.Configured(k), Available: r.Available(k)})
	}
	return out
}

// Structural returns the structural backend when it is connected.
func (r *Registry) Structural() (schemas.StructuralBackend, error) {
	if r.backends.Structural == nil || !r.Available(schemas.BackendStructural) {
		return nil, schemas.Unavailable(schemas.BackendStructural, "not connected")
	}
	return r.backends.Structural, nil
}

// Pointer returns the most precise connected pixel backend: the OS bridge,
// then native input.
func (r *Registry) Pointer() (schemas.PointerBackend, schemas.BackendKind, bool) {
	if r.backends.Bridge != nil && r.Available(schemas.BackendOSBridge) {
		return r.backends.Bridge, schemas.BackendOSBridge, true
	}
	if r.backends.Native != nil && r.Available(schemas.BackendNative) {
		return r.backends.Native, schemas.BackendNative, true
	}
	return nil, "", false
}

// Vision returns the vision resolver when it is connected.
func (r *Registry) Vision() (schemas.VisionResolver, bool) {
	if r.backends.Vision == nil || !r.Available(schemas.BackendVision) {
		return nil, false
	}
	return r.backends.Vision, true
}

// CaptureScreenshot takes a base64 PNG from the first capture-capable backend:
// the structural backend (when it advertises screenshots), then native input,
// then the OS bridge.
func (r *Registry) CaptureScreenshot(ctx context.Context) (string, schemas.BackendKind, error) {
	if s := r.backends.Structural; s != nil && r.Available(schemas.BackendStructural) && s.Capabilities().Screenshot {
		img, err := s.Screenshot(ctx)
		return img, schemas.BackendStructural, schemas.NewBackendError(schemas.BackendStructural, "screenshot", err)
	}
	if n := r.backends.Native; n != nil && r.Available(schemas.BackendNative) {
		img, err := n.Screenshot(ctx)
		return img, schemas.BackendNative, schemas.NewBackendError(schemas.BackendNative, "screenshot", err)
	}
	if b := r.backends.Bridge; b != nil && r.Available(schemas.BackendOSBridge) {
		img, err := b.Screenshot(ctx)
		return img, schemas.BackendOSBridge, schemas.NewBackendError(schemas.BackendOSBridge, "screenshot", err)
	}
	return "", "", schemas.Unavailable("capture", "no screenshot-capable backend connected")
}
