// Package resolver turns canonical locators into element handles, first
// through the snapshot cache and the structural backend, then through the
// vision model.
package resolver

import (
	"context"

	"github.com/xkilldash9x/webprobe/api/schemas"
	"github.com/xkilldash9x/webprobe/internal/locator"
)

// RefLookup serves reference locators from the current snapshot.
type RefLookup interface {
	Lookup(ctx context.Context, ref string) (schemas.ElementHandle, bool, error)
}

// StructuralSource hands out the structural backend when it is connected.
type StructuralSource interface {
	Structural() (schemas.StructuralBackend, error)
}

// Deterministic resolves locators without the vision model.
type Deterministic struct {
	refs   RefLookup
	source StructuralSource
}

// NewDeterministic creates a deterministic resolver.
func NewDeterministic(refs RefLookup, source StructuralSource) *Deterministic {
	return &Deterministic{refs: refs, source: source}
}

// Resolve returns (nil, nil) when nothing matches. Errors mean the lookup
// could not be performed at all.
func (d *Deterministic) Resolve(ctx context.Context, loc schemas.Locator) (*schemas.ElementHandle, error) {
	switch loc.Strategy {
	case schemas.StrategyReference:
		// A ref is either in the current snapshot or it is not.
		h, ok, err := d.refs.Lookup(ctx, loc.Value)
		if err != nil || !ok {
			return nil, err
		}
		h.Source = schemas.SourceDOM
		return &h, nil
	case schemas.StrategyVisual:
		return nil, nil
	}

	sel, err := locator.ToSelector(loc)
	if err != nil {
		return nil, nil
	}
	backend, err := d.source.Structural()
	if err != nil {
		return nil, err
	}
	h, err := backend.FindBySelector(ctx, sel)
	if err != nil {
		return nil, schemas.NewBackendError(schemas.BackendStructural, "findBySelector", err)
	}
	if h == nil {
		return nil, nil
	}
	out := *h
	out.Source = schemas.SourceDOM
	return &out, nil
}

// Count reports how many elements the locator's selector matches. Reference
// locators count as one when the ref is held.
func (d *Deterministic) Count(ctx context.Context, loc schemas.Locator) (int, error) {
	if loc.Strategy == schemas.StrategyReference {
		_, ok, err := d.refs.Lookup(ctx, loc.Value)
		if err != nil || !ok {
			return 0, err
		}
		return 1, nil
	}
	sel, err := locator.ToSelector(loc)
	if err != nil {
		return 0, err
	}
	backend, err := d.source.Structural()
	if err != nil {
		return 0, err
	}
	n, err := backend.CountBySelector(ctx, sel)
	if err != nil {
		return 0, schemas.NewBackendError(schemas.BackendStructural, "countBySelector", err)
	}
	return n, nil
}
