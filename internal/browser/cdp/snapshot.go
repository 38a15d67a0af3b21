package cdp

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webprobe/api/schemas"
)

var interactiveRoles = map[string]bool{
	"button": true, "link": true, "textbox": true, "searchbox": true,
	"checkbox": true, "radio": true, "combobox": true, "listbox": true,
	"option": true, "menuitem": true, "menuitemcheckbox": true, "menuitemradio": true,
	"tab": true, "switch": true, "slider": true, "spinbutton": true, "treeitem": true,
}

// skippedRoles never get a ref: they carry no element of their own.
var skippedRoles = map[string]bool{
	"none": true, "generic": true, "InlineTextBox": true, "LineBreak": true, "": true,
}

// Snapshot walks the full accessibility tree in document order and mints
// refs e0, e1, ... for the elements that pass the filter.
func (b *Backend) Snapshot(ctx context.Context, opts schemas.SnapshotOptions) (*schemas.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, b.opts.NavigationTimeout)
	defer cancel()

	var tree struct {
		Nodes []axNode `json:"nodes"`
	}
	if err := b.call(ctx, "Accessibility.getFullAXTree", map[string]any{}, &tree); err != nil {
		return nil, err
	}

	snap := &schemas.Snapshot{
		Timestamp: time.Now(),
		Refs:      map[string]schemas.ElementHandle{},
		Depths:    map[string]int{},
	}
	if raw, err := b.Evaluate(ctx, fnLocation); err == nil {
		snap.URL, _ = decodeString(raw)
	}

	for _, e := range walkAX(tree.Nodes) {
		n := e.node
		role := n.Role.String()
		if n.Ignored || n.BackendDOMNodeID == 0 || skippedRoles[role] {
			continue
		}
		if opts.InteractiveOnly && !interactiveRoles[role] {
			continue
		}
		if opts.MaxDepth >= 0 && e.depth > opts.MaxDepth {
			continue
		}
		h := schemas.ElementHandle{
			ID:     handleID(n.BackendDOMNodeID),
			Role:   role,
			Name:   n.Name.String(),
			Source: schemas.SourceDOM,
		}
		if opts.WithBoxes {
			box, err := b.box(ctx, n.BackendDOMNodeID)
			if err != nil {
				b.logger.Debug("No box for snapshot node.", zap.String("id", h.ID), zap.Error(err))
			}
			h.BoundingBox = box
		}
		ref := "e" + strconv.Itoa(len(snap.Order))
		h.Ref = ref
		snap.Refs[ref] = h
		snap.Order = append(snap.Order, ref)
		snap.Depths[ref] = e.depth
	}
	b.logger.Debug("Accessibility snapshot taken.", zap.Int("nodes", len(tree.Nodes)), zap.Int("refs", len(snap.Order)))
	return snap, nil
}

type walked struct {
	node  axNode
	depth int
}

// walkAX orders nodes depth-first from the roots. Depth counts only
// non-ignored ancestors, so wrapper nodes the tree hides do not nest.
func walkAX(nodes []axNode) []walked {
	byID := make(map[string]axNode, len(nodes))
	for _, n := range nodes {
		byID[n.NodeID] = n
	}
	var out []walked
	seen := make(map[string]bool, len(nodes))
	var visit func(id string, depth int)
	visit = func(id string, depth int) {
		n, ok := byID[id]
		if !ok || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, walked{node: n, depth: depth})
		next := depth
		if !n.Ignored {
			next++
		}
		for _, c := range n.ChildIDs {
			visit(c, next)
		}
	}
	for _, n := range nodes {
		if _, hasParent := byID[n.ParentID]; n.ParentID == "" || !hasParent {
			visit(n.NodeID, 0)
		}
	}
	return out
}
