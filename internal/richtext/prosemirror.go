// Package richtext implements the structured comment body: ProseMirror JSON
// documents with mention nodes.
package richtext

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

const mentionNode = "mention"

// Node represents a node in the ProseMirror document tree
type Node struct {
	Type    string         `json:"type"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Content []Node         `json:"content,omitempty"`
	Text    string         `json:"text,omitempty"`
	Marks   []Mark         `json:"marks,omitempty"`
}

// Mark represents a text mark (formatting)
type Mark struct {
	Type  string         `json:"type"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// Parse decodes a document. Blank input and JSON null yield an empty doc.
func Parse(raw json.RawMessage) (Node, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Node{Type: "doc"}, nil
	}
	var doc Node
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return Node{}, fmt.Errorf("decode rich content: %w", err)
	}
	return doc, nil
}

func (n Node) walk(visit func(Node)) {
	visit(n)
	for _, child := range n.Content {
		child.walk(visit)
	}
}

// Mentions returns the distinct user ids referenced by mention nodes, in
// document order.
func (n Node) Mentions() []string {
	seen := map[string]struct{}{}
	ids := make([]string, 0)
	n.walk(func(node Node) {
		if node.Type != mentionNode {
			return
		}
		id := strings.TrimSpace(attrString(node.Attrs, "id"))
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	})
	return ids
}

// IsEmpty reports whether the document has no visible text and no mentions.
func (n Node) IsEmpty() bool {
	empty := true
	n.walk(func(node Node) {
		if node.Type == mentionNode || strings.TrimSpace(node.Text) != "" {
			empty = false
		}
	})
	return empty
}

// PlainText flattens the document, one line per block.
func (n Node) PlainText() string {
	var out strings.Builder
	n.writeText(&out)
	return strings.TrimSpace(out.String())
}

func (n Node) writeText(out *strings.Builder) {
	switch n.Type {
	case "text":
		out.WriteString(n.Text)
		return
	case mentionNode:
		out.WriteString("@" + firstNonBlank(attrString(n.Attrs, "label"), attrString(n.Attrs, "id")))
		return
	case "hardBreak":
		out.WriteString("\n")
		return
	}
	for _, child := range n.Content {
		child.writeText(out)
	}
	switch n.Type {
	case "paragraph", "heading", "listItem", "blockquote", "codeBlock":
		out.WriteString("\n")
	}
}

// FromText builds a document with one paragraph per line. Words of the form
// @id become mention nodes.
func FromText(text string) Node {
	doc := Node{Type: "doc"}
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		paragraph := Node{Type: "paragraph"}
		var pending strings.Builder
		flush := func() {
			if pending.Len() > 0 {
				paragraph.Content = append(paragraph.Content, Node{Type: "text", Text: pending.String()})
				pending.Reset()
			}
		}
		words := strings.SplitAfter(line, " ")
		for _, word := range words {
			id, rest, ok := splitMention(word)
			if !ok {
				pending.WriteString(word)
				continue
			}
			flush()
			paragraph.Content = append(paragraph.Content, Node{
				Type:  mentionNode,
				Attrs: map[string]any{"id": id, "label": id},
			})
			pending.WriteString(rest)
		}
		flush()
		doc.Content = append(doc.Content, paragraph)
	}
	return doc
}

func splitMention(word string) (id, rest string, ok bool) {
	if !strings.HasPrefix(word, "@") {
		return "", "", false
	}
	body := word[1:]
	end := strings.IndexFunc(body, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '.')
	})
	if end == -1 {
		end = len(body)
	}
	id = strings.TrimRight(body[:end], ".")
	if id == "" {
		return "", "", false
	}
	return id, body[len(id):], true
}

func attrString(attrs map[string]any, key string) string {
	if attrs == nil {
		return ""
	}
	value, _ := attrs[key].(string)
	return value
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
