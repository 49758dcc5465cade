// Package doc models the serialized rich-text document: a JSON tree of typed
// nodes. The annotation sync engine extracts inline tag and mention markers
// from it, and the autosave controller compares serialized states for dirty
// detection.
package doc

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Node types carried in serialized state.
const (
	TypeDoc       = "doc"
	TypeParagraph = "paragraph"
	TypeText      = "text"
	TypeTag       = "tag"
	TypeMention   = "mention"
)

// Mention target kinds. Only note mentions are synced to the link model;
// folder and thought mentions are extracted but ignored by the engine.
const (
	TargetNote    = "note"
	TargetFolder  = "folder"
	TargetThought = "thought"
)

// Node is one node of the serialized document tree.
type Node struct {
	Type     string            `json:"type"`
	Text     string            `json:"text,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Children []*Node           `json:"children,omitempty"`
}

// TagMarker is an inline tag annotation typed inside the editor.
type TagMarker struct {
	ID    string // tag identity when known, may be empty for a freshly typed tag
	Value string // literal tag text
}

// Mention is an inline cross-reference marker.
type Mention struct {
	TargetID   string
	TargetKind string
	Label      string
}

// Parse decodes a serialized document state.
func Parse(serialized string) (*Node, error) {
	var root Node
	if err := json.Unmarshal([]byte(serialized), &root); err != nil {
		return nil, fmt.Errorf("parse document state: %w", err)
	}
	return &root, nil
}

// Serialize encodes the document back to its serialized state.
func (n *Node) Serialize() (string, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return "", fmt.Errorf("serialize document: %w", err)
	}
	return string(data), nil
}

// PlainText flattens the document to plain text. Tag markers render as their
// literal value and mentions as their label.
func (n *Node) PlainText() string {
	var b strings.Builder
	n.writeText(&b)
	return b.String()
}

func (n *Node) writeText(b *strings.Builder) {
	switch n.Type {
	case TypeText:
		b.WriteString(n.Text)
		return
	case TypeTag:
		b.WriteString("#" + n.Attrs["value"])
		return
	case TypeMention:
		b.WriteString(n.Attrs["label"])
		return
	}
	for _, c := range n.Children {
		c.writeText(b)
	}
	if n.Type == TypeParagraph {
		b.WriteString("\n")
	}
}

// TagMarkers walks the document and returns every inline tag marker,
// deduplicated by identifier or, when the marker carries no identifier, by
// literal value (case-insensitive).
func (n *Node) TagMarkers() []TagMarker {
	seen := make(map[string]bool)
	var out []TagMarker

	n.walk(func(node *Node) {
		if node.Type != TypeTag {
			return
		}
		m := TagMarker{ID: node.Attrs["id"], Value: node.Attrs["value"]}
		if m.Value == "" {
			return
		}
		key := m.ID
		if key == "" {
			key = "v:" + strings.ToLower(m.Value)
		}
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, m)
	})
	return out
}

// Mentions walks the document and returns every inline cross-reference
// marker, deduplicated by target id.
func (n *Node) Mentions() []Mention {
	seen := make(map[string]bool)
	var out []Mention

	n.walk(func(node *Node) {
		if node.Type != TypeMention {
			return
		}
		m := Mention{
			TargetID:   node.Attrs["target_id"],
			TargetKind: node.Attrs["target_kind"],
			Label:      node.Attrs["label"],
		}
		if m.TargetID == "" || seen[m.TargetID] {
			return
		}
		seen[m.TargetID] = true
		out = append(out, m)
	})
	return out
}

// NoteMentions returns only the mentions whose target is a note.
func (n *Node) NoteMentions() []Mention {
	var out []Mention
	for _, m := range n.Mentions() {
		if m.TargetKind == TargetNote {
			out = append(out, m)
		}
	}
	return out
}

func (n *Node) walk(fn func(*Node)) {
	fn(n)
	for _, c := range n.Children {
		c.walk(fn)
	}
}
