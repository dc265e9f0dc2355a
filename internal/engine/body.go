package engine

import (
	"encoding/json"
	"strings"
)

// Body is the text a user submits. Doc, when set, is a structured document
// and is authoritative for mentions; Text is the plain form.
type Body struct {
	Text     string
	Doc      any
	Mentions []string
}

func PlainBody(text string) Body {
	return Body{Text: text}
}

// RichBody wraps a structured document. Explicit mentions override the ones
// extracted from the document.
func RichBody(doc any, mentions ...string) Body {
	return Body{Doc: doc, Mentions: mentions}
}

type encodedBody struct {
	content  string
	rich     json.RawMessage
	mentions []string
}

func encodeBody(rich RichContent, body Body) (encodedBody, error) {
	out := encodedBody{content: body.Text}
	if body.Doc != nil {
		raw, err := rich.Serialize(body.Doc)
		if err != nil {
			return encodedBody{}, err
		}
		if len(raw) > 0 && !rich.IsEmpty(raw) {
			out.rich = raw
		}
	}
	if strings.TrimSpace(out.content) == "" && out.rich == nil {
		return encodedBody{}, ErrEmptyBody
	}
	switch {
	case len(body.Mentions) > 0:
		out.mentions = dedupe(body.Mentions)
	case out.rich != nil:
		out.mentions = rich.ExtractMentions(out.rich)
	default:
		out.mentions = []string{}
	}
	return out, nil
}

// CanSubmit reports whether body would pass validation. Callers use it to
// disable the submit control instead of waiting for a validation error.
func CanSubmit(rich RichContent, body Body) bool {
	if rich == nil {
		rich = defaultRichContent
	}
	_, err := encodeBody(rich, body)
	return err == nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// mentionDelta returns the ids in after that are not in before, keeping the
// order of after.
func mentionDelta(before, after []string) []string {
	known := make(map[string]struct{}, len(before))
	for _, id := range before {
		known[id] = struct{}{}
	}
	delta := make([]string, 0)
	for _, id := range dedupe(after) {
		if _, ok := known[id]; !ok {
			delta = append(delta, id)
		}
	}
	return delta
}
