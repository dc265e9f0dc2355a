package richtext

import (
	"encoding/json"
	"fmt"
)

// ProseMirror adapts the document helpers to the engine's rich content
// contract. The zero value is ready to use.
type ProseMirror struct{}

// ExtractMentions returns the user ids mentioned in raw. Undecodable
// documents mention nobody.
func (ProseMirror) ExtractMentions(raw json.RawMessage) []string {
	doc, err := Parse(raw)
	if err != nil {
		return []string{}
	}
	return doc.Mentions()
}

// IsEmpty treats undecodable documents as empty.
func (ProseMirror) IsEmpty(raw json.RawMessage) bool {
	doc, err := Parse(raw)
	if err != nil {
		return true
	}
	return doc.IsEmpty()
}

// Serialize accepts a Node, raw JSON, or any JSON-encodable tree.
func (ProseMirror) Serialize(doc any) (json.RawMessage, error) {
	switch v := doc.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		if _, err := Parse(v); err != nil {
			return nil, err
		}
		return v, nil
	case []byte:
		return ProseMirror{}.Serialize(json.RawMessage(v))
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode rich content: %w", err)
	}
	return raw, nil
}
