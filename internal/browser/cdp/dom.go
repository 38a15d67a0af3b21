package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/xkilldash9x/webprobe/api/schemas"
)

type axValue struct {
	Value json.RawMessage `json:"value"`
}

func (v *axValue) String() string {
	if v == nil || len(v.Value) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(v.Value, &s); err == nil {
		return s
	}
	return string(v.Value)
}

type axNode struct {
	NodeID           string   `json:"nodeId"`
	Ignored          bool     `json:"ignored"`
	Role             *axValue `json:"role"`
	Name             *axValue `json:"name"`
	ParentID         string   `json:"parentId"`
	ChildIDs         []string `json:"childIds"`
	BackendDOMNodeID int64    `json:"backendDOMNodeId"`
}

type remoteObject struct {
	Type     string          `json:"type"`
	Value    json.RawMessage `json:"value"`
	ObjectID string          `json:"objectId"`
}

type exceptionDetails struct {
	Text      string        `json:"text"`
	Exception *remoteObject `json:"exception"`
}

func (e *exceptionDetails) err() error {
	if e.Exception != nil && len(e.Exception.Value) > 0 {
		return fmt.Errorf("%s: %s", e.Text, e.Exception.Value)
	}
	return fmt.Errorf("%s", e.Text)
}

// handleID renders a backend node id as a handle id.
func handleID(backendID int64) string { return "n" + strconv.FormatInt(backendID, 10) }

// backendID parses a handle id minted by handleID.
func backendID(h schemas.ElementHandle) (int64, error) {
	id, ok := strings.CutPrefix(h.ID, "n")
	if !ok {
		return 0, fmt.Errorf("handle %q was not produced by the structural backend", h.ID)
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("handle %q: bad node id", h.ID)
	}
	return n, nil
}

func (b *Backend) call(ctx context.Context, method string, params any, out any) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	raw, err := conn.Call(ctx, method, params)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode result: %w", method, err)
	}
	return nil
}

type documentRoot struct {
	NodeID        int64 `json:"nodeId"`
	BackendNodeID int64 `json:"backendNodeId"`
}

func (b *Backend) document(ctx context.Context) (documentRoot, error) {
	var res struct {
		Root documentRoot `json:"root"`
	}
	err := b.call(ctx, "DOM.getDocument", map[string]any{"depth": 0}, &res)
	return res.Root, err
}

// candidate is one selector match, known by either id space.
type candidate struct {
	nodeID    int64
	backendID int64
}

func (b *Backend) candidates(ctx context.Context, sel schemas.Selector) ([]candidate, error) {
	root, err := b.document(ctx)
	if err != nil {
		return nil, err
	}
	switch sel.Kind {
	case schemas.SelectorCSS:
		var res struct {
			NodeIDs []int64 `json:"nodeIds"`
		}
		if err := b.call(ctx, "DOM.querySelectorAll", map[string]any{"nodeId": root.NodeID, "selector": sel.Expr}, &res); err != nil {
			return nil, err
		}
		return fromNodeIDs(res.NodeIDs), nil

	case schemas.SelectorXPath:
		var search struct {
			SearchID    string `json:"searchId"`
			ResultCount int    `json:"resultCount"`
		}
		if err := b.call(ctx, "DOM.performSearch", map[string]any{"query": sel.Expr}, &search); err != nil {
			return nil, err
		}
		defer func() {
			_ = b.call(ctx, "DOM.discardSearchResults", map[string]any{"searchId": search.SearchID}, nil)
		}()
		if search.ResultCount == 0 {
			return nil, nil
		}
		var res struct {
			NodeIDs []int64 `json:"nodeIds"`
		}
		if err := b.call(ctx, "DOM.getSearchResults", map[string]any{
			"searchId": search.SearchID, "fromIndex": 0, "toIndex": search.ResultCount,
		}, &res); err != nil {
			return nil, err
		}
		return fromNodeIDs(res.NodeIDs), nil

	case schemas.SelectorRole:
		params := map[string]any{"backendNodeId": root.BackendNodeID, "role": sel.Expr}
		if sel.Name != "" {
			params["accessibleName"] = sel.Name
		}
		var res struct {
			Nodes []axNode `json:"nodes"`
		}
		if err := b.call(ctx, "Accessibility.queryAXTree", params, &res); err != nil {
			return nil, err
		}
		var out []candidate
		for _, n := range res.Nodes {
			if !n.Ignored && n.BackendDOMNodeID > 0 {
				out = append(out, candidate{backendID: n.BackendDOMNodeID})
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported selector kind %q", sel.Kind)
}

func fromNodeIDs(ids []int64) []candidate {
	out := make([]candidate, 0, len(ids))
	for _, id := range ids {
		// performSearch can report 0 for nodes outside the pushed tree.
		if id > 0 {
			out = append(out, candidate{nodeID: id})
		}
	}
	return out
}

func (b *Backend) backendOf(ctx context.Context, c candidate) (int64, error) {
	if c.backendID > 0 {
		return c.backendID, nil
	}
	var res struct {
		Node struct {
			BackendNodeID int64 `json:"backendNodeId"`
		} `json:"node"`
	}
	if err := b.call(ctx, "DOM.describeNode", map[string]any{"nodeId": c.nodeID}, &res); err != nil {
		return 0, err
	}
	return res.Node.BackendNodeID, nil
}

// describe builds a dom handle for a backend node.
func (b *Backend) describe(ctx context.Context, backendID int64, nth int, withBox bool) (schemas.ElementHandle, error) {
	h := schemas.ElementHandle{ID: handleID(backendID), Source: schemas.SourceDOM, Nth: nth}

	var ax struct {
		Nodes []axNode `json:"nodes"`
	}
	err := b.call(ctx, "Accessibility.getPartialAXTree", map[string]any{"backendNodeId": backendID, "fetchRelatives": false}, &ax)
	if err == nil && len(ax.Nodes) > 0 {
		h.Role = ax.Nodes[0].Role.String()
		h.Name = ax.Nodes[0].Name.String()
	}

	if withBox {
		box, err := b.box(ctx, backendID)
		if err != nil {
			return h, err
		}
		h.BoundingBox = box
	}
	return h, nil
}

// box returns the border box of a node, or nil when it is not rendered.
func (b *Backend) box(ctx context.Context, backendID int64) (*schemas.BoundingBox, error) {
	var res struct {
		Model struct {
			Border []float64 `json:"border"`
		} `json:"model"`
	}
	if err := b.call(ctx, "DOM.getBoxModel", map[string]any{"backendNodeId": backendID}, &res); err != nil {
		if isNoLayout(err) {
			return nil, nil
		}
		return nil, err
	}
	return quadBox(res.Model.Border), nil
}

func isNoLayout(err error) bool {
	return strings.Contains(err.Error(), "Could not compute box model")
}

// quadBox is the axis-aligned box around a CDP quad (x1,y1 .. x4,y4).
func quadBox(q []float64) *schemas.BoundingBox {
	if len(q) < 8 {
		return nil
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for i := 0; i+1 < len(q); i += 2 {
		minX, maxX = math.Min(minX, q[i]), math.Max(maxX, q[i])
		minY, maxY = math.Min(minY, q[i+1]), math.Max(maxY, q[i+1])
	}
	return &schemas.BoundingBox{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// callOn runs fn with the node as this and returns its JSON value.
func (b *Backend) callOn(ctx context.Context, backendID int64, fn string, args ...any) (json.RawMessage, error) {
	var resolved struct {
		Object remoteObject `json:"object"`
	}
	if err := b.call(ctx, "DOM.resolveNode", map[string]any{"backendNodeId": backendID}, &resolved); err != nil {
		return nil, err
	}
	defer func() {
		_ = b.call(ctx, "Runtime.releaseObject", map[string]any{"objectId": resolved.Object.ObjectID}, nil)
	}()

	callArgs := make([]map[string]any, 0, len(args))
	for _, a := range args {
		callArgs = append(callArgs, map[string]any{"value": a})
	}
	var res struct {
		Result           remoteObject      `json:"result"`
		ExceptionDetails *exceptionDetails `json:"exceptionDetails"`
	}
	if err := b.call(ctx, "Runtime.callFunctionOn", map[string]any{
		"functionDeclaration": fn,
		"objectId":            resolved.Object.ObjectID,
		"arguments":           callArgs,
		"returnByValue":       true,
		"awaitPromise":        true,
	}, &res); err != nil {
		return nil, err
	}
	if res.ExceptionDetails != nil {
		return nil, res.ExceptionDetails.err()
	}
	return res.Result.Value, nil
}

func decodeString(raw json.RawMessage) (string, error) {
	var s string
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	err := json.Unmarshal(raw, &s)
	return s, err
}

func decodeBool(raw json.RawMessage) (bool, error) {
	var v bool
	if len(raw) == 0 || string(raw) == "null" {
		return false, nil
	}
	err := json.Unmarshal(raw, &v)
	return v, err
}
