package comment

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ContextKind tags the payload carried in a record's item_context.
type ContextKind string

const (
	ContextNone     ContextKind = ""
	ContextEmoji    ContextKind = "emoji"
	ContextAttached ContextKind = "attached"
	// ContextUnknown keeps payloads written by other clients intact.
	ContextUnknown ContextKind = "unknown"
)

// ItemContext is the metadata attached to a record at creation time.
//
// On the wire an emoji reaction is {"is_emoji":true}, attached metadata is
// {"attached":{...}}, and anything else round-trips untouched as Raw.
type ItemContext struct {
	Kind     ContextKind
	Metadata map[string]any
	Raw      json.RawMessage
}

func EmojiContext() ItemContext {
	return ItemContext{Kind: ContextEmoji}
}

// AttachedContext wraps caller metadata. An empty map yields no context.
func AttachedContext(metadata map[string]any) ItemContext {
	if len(metadata) == 0 {
		return ItemContext{}
	}
	copied := make(map[string]any, len(metadata))
	for key, value := range metadata {
		copied[key] = value
	}
	return ItemContext{Kind: ContextAttached, Metadata: copied}
}

func (c ItemContext) IsEmoji() bool {
	return c.Kind == ContextEmoji
}

func (c ItemContext) IsZero() bool {
	return c.Kind == ContextNone
}

// Merge folds attached metadata into the context. Emoji and unknown
// payloads are returned unchanged.
func (c ItemContext) Merge(metadata map[string]any) ItemContext {
	if len(metadata) == 0 {
		return c
	}
	switch c.Kind {
	case ContextNone:
		return AttachedContext(metadata)
	case ContextAttached:
		merged := make(map[string]any, len(c.Metadata)+len(metadata))
		for key, value := range c.Metadata {
			merged[key] = value
		}
		for key, value := range metadata {
			merged[key] = value
		}
		return ItemContext{Kind: ContextAttached, Metadata: merged}
	default:
		return c
	}
}

func (c ItemContext) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case ContextNone:
		return []byte("null"), nil
	case ContextEmoji:
		return []byte(`{"is_emoji":true}`), nil
	case ContextAttached:
		return json.Marshal(map[string]any{"attached": c.Metadata})
	case ContextUnknown:
		if len(c.Raw) == 0 {
			return []byte("null"), nil
		}
		return c.Raw, nil
	default:
		return nil, fmt.Errorf("unknown item context kind %q", c.Kind)
	}
}

func (c *ItemContext) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*c = ItemContext{}
		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return fmt.Errorf("decode item context: %w", err)
	}
	if len(fields) == 0 {
		*c = ItemContext{}
		return nil
	}

	if raw, ok := fields["is_emoji"]; ok {
		var isEmoji bool
		if err := json.Unmarshal(raw, &isEmoji); err == nil && isEmoji {
			*c = EmojiContext()
			return nil
		}
	}
	if raw, ok := fields["attached"]; ok && len(fields) == 1 {
		var metadata map[string]any
		if err := json.Unmarshal(raw, &metadata); err == nil {
			*c = AttachedContext(metadata)
			return nil
		}
	}

	*c = ItemContext{Kind: ContextUnknown, Raw: append(json.RawMessage(nil), trimmed...)}
	return nil
}
