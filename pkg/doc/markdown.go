package doc

import (
	"regexp"
	"strings"
)

var (
	// #tag — inline tags, hashtag style
	tagPattern = regexp.MustCompile(`#([a-zA-Z0-9_-]+)`)

	// [[note title]] — wiki-style cross-note mentions
	mentionPattern = regexp.MustCompile(`\[\[([^\]]+)\]\]`)
)

// Resolver maps a mentioned title to a note id. ok=false leaves the mention
// as plain text.
type Resolver func(title string) (id string, ok bool)

// FromMarkdown builds a document tree from plain markdown-ish text, turning
// #tag tokens into tag markers and [[title]] tokens into note mentions. This
// is the editing surface the CLI offers; a rich client would produce the
// serialized tree directly.
func FromMarkdown(text string, resolve Resolver) *Node {
	root := &Node{Type: TypeDoc}

	for _, line := range strings.Split(text, "\n") {
		para := &Node{Type: TypeParagraph}
		para.Children = inlineNodes(line, resolve)
		root.Children = append(root.Children, para)
	}
	return root
}

// inlineNodes splits one line into text, tag, and mention nodes.
func inlineNodes(line string, resolve Resolver) []*Node {
	type span struct {
		start, end int
		node       *Node
	}
	var spans []span

	for _, m := range tagPattern.FindAllStringSubmatchIndex(line, -1) {
		spans = append(spans, span{
			start: m[0],
			end:   m[1],
			node: &Node{
				Type:  TypeTag,
				Attrs: map[string]string{"value": line[m[2]:m[3]]},
			},
		})
	}

	if resolve != nil {
		for _, m := range mentionPattern.FindAllStringSubmatchIndex(line, -1) {
			title := line[m[2]:m[3]]
			id, ok := resolve(title)
			if !ok {
				continue
			}
			spans = append(spans, span{
				start: m[0],
				end:   m[1],
				node: &Node{
					Type: TypeMention,
					Attrs: map[string]string{
						"target_id":   id,
						"target_kind": TargetNote,
						"label":       title,
					},
				},
			})
		}
	}

	// A #tag inside a [[mention]] belongs to the mention text, not to the
	// tag stream.
	filtered := spans[:0]
	for _, sp := range spans {
		contained := false
		for _, other := range spans {
			if other.node.Type == TypeMention && sp.node.Type == TypeTag &&
				sp.start >= other.start && sp.end <= other.end {
				contained = true
				break
			}
		}
		if !contained {
			filtered = append(filtered, sp)
		}
	}
	spans = filtered

	if len(spans) == 0 {
		if line == "" {
			return nil
		}
		return []*Node{{Type: TypeText, Text: line}}
	}

	for i := 0; i < len(spans); i++ {
		for j := i + 1; j < len(spans); j++ {
			if spans[j].start < spans[i].start {
				spans[i], spans[j] = spans[j], spans[i]
			}
		}
	}

	var nodes []*Node
	pos := 0
	for _, sp := range spans {
		if sp.start > pos {
			nodes = append(nodes, &Node{Type: TypeText, Text: line[pos:sp.start]})
		}
		nodes = append(nodes, sp.node)
		pos = sp.end
	}
	if pos < len(line) {
		nodes = append(nodes, &Node{Type: TypeText, Text: line[pos:]})
	}
	return nodes
}

// ToMarkdown renders a document tree back to the markdown-ish editing text.
func (n *Node) ToMarkdown() string {
	var b strings.Builder
	var walk func(node *Node)
	walk = func(node *Node) {
		switch node.Type {
		case TypeText:
			b.WriteString(node.Text)
			return
		case TypeTag:
			b.WriteString("#" + node.Attrs["value"])
			return
		case TypeMention:
			b.WriteString("[[" + node.Attrs["label"] + "]]")
			return
		}
		for _, c := range node.Children {
			walk(c)
		}
		if node.Type == TypeParagraph {
			b.WriteString("\n")
		}
	}
	walk(n)
	return strings.TrimSuffix(b.String(), "\n")
}
