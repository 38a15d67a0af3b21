package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/webprobe/api/schemas"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

func printJSON(w io.Writer, v any) error {
	b, err := jsonAPI.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// renderSnapshotText prints one line per ref, indented by tree depth, in the
// form `- button "Save" [ref=e3]`.
func renderSnapshotText(w io.Writer, snap *schemas.Snapshot) error {
	var sb strings.Builder
	if snap.URL != "" {
		fmt.Fprintf(&sb, "# %s\n", snap.URL)
	}
	for _, ref := range snap.Order {
		h, ok := snap.Refs[ref]
		if !ok {
			continue
		}
		sb.WriteString(strings.Repeat("  ", snap.Depths[ref]))
		sb.WriteString("- ")
		sb.WriteString(h.Role)
		if h.Name != "" {
			sb.WriteString(" ")
			sb.WriteString(strconv.Quote(h.Name))
		}
		fmt.Fprintf(&sb, " [ref=%s]\n", ref)
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// renderSnapshotXML nests elements by depth under a <snapshot> root.
func renderSnapshotXML(w io.Writer, snap *schemas.Snapshot) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("snapshot")
	if snap.URL != "" {
		root.CreateAttr("url", snap.URL)
	}
	if !snap.Timestamp.IsZero() {
		root.CreateAttr("timestamp", snap.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"))
	}

	type open struct {
		depth int
		el    *etree.Element
	}
	var stack []open
	for _, ref := range snap.Order {
		h, ok := snap.Refs[ref]
		if !ok {
			continue
		}
		depth := snap.Depths[ref]
		for len(stack) > 0 && stack[len(stack)-1].depth >= depth {
			stack = stack[:len(stack)-1]
		}
		parent := root
		if len(stack) > 0 {
			parent = stack[len(stack)-1].el
		}

		el := parent.CreateElement("element")
		el.CreateAttr("ref", ref)
		el.CreateAttr("role", h.Role)
		if h.Name != "" {
			el.CreateAttr("name", h.Name)
		}
		if b := h.BoundingBox; b != nil {
			el.CreateAttr("x", formatFloat(b.X))
			el.CreateAttr("y", formatFloat(b.Y))
			el.CreateAttr("width", formatFloat(b.Width))
			el.CreateAttr("height", formatFloat(b.Height))
		}
		stack = append(stack, open{depth: depth, el: el})
	}

	doc.Indent(2)
	_, err := doc.WriteTo(w)
	return err
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
