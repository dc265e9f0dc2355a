package richtext

import (
	"encoding/json"
	"strings"
	"testing"
)

const mentionDoc = `{
	"type": "doc",
	"content": [
		{"type": "paragraph", "content": [
			{"type": "text", "text": "Ping "},
			{"type": "mention", "attrs": {"id": "u_avery", "label": "Avery"}},
			{"type": "text", "text": " and "},
			{"type": "mention", "attrs": {"id": "u_blake", "label": "Blake"}}
		]},
		{"type": "paragraph", "content": [
			{"type": "mention", "attrs": {"id": "u_avery", "label": "Avery"}},
			{"type": "text", "text": " again", "marks": [{"type": "bold"}]}
		]}
	]
}`

func TestMentionsAreDistinctAndOrdered(t *testing.T) {
	got := ProseMirror{}.ExtractMentions(json.RawMessage(mentionDoc))
	if strings.Join(got, ",") != "u_avery,u_blake" {
		t.Fatalf("unexpected mentions: %v", got)
	}
}

func TestExtractMentionsOnBrokenDocument(t *testing.T) {
	got := ProseMirror{}.ExtractMentions(json.RawMessage(`{"type":`))
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestIsEmpty(t *testing.T) {
	tests := []struct {
		name  string
		input string
		empty bool
	}{
		{name: "blank", input: "", empty: true},
		{name: "null", input: "null", empty: true},
		{name: "empty paragraph", input: `{"type":"doc","content":[{"type":"paragraph"}]}`, empty: true},
		{name: "whitespace text", input: `{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"  "}]}]}`, empty: true},
		{name: "text", input: `{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"hi"}]}]}`, empty: false},
		{name: "mention only", input: `{"type":"doc","content":[{"type":"mention","attrs":{"id":"u1"}}]}`, empty: false},
		{name: "broken", input: `{`, empty: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := (ProseMirror{}).IsEmpty(json.RawMessage(tc.input)); got != tc.empty {
				t.Fatalf("IsEmpty(%s) = %v, want %v", tc.input, got, tc.empty)
			}
		})
	}
}

func TestPlainText(t *testing.T) {
	doc, err := Parse(json.RawMessage(mentionDoc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := "Ping @Avery and @Blake\n@Avery again"
	if got := doc.PlainText(); got != want {
		t.Fatalf("PlainText() = %q, want %q", got, want)
	}
}

func TestHTMLRendersAndSanitizes(t *testing.T) {
	doc, err := Parse(json.RawMessage(mentionDoc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	out := doc.HTML()
	for _, want := range []string{"<p>Ping ", "@Avery", "<strong> again</strong>"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}

	hostile := Node{Type: "doc", Content: []Node{{Type: "paragraph", Content: []Node{{
		Type:  "text",
		Text:  "click",
		Marks: []Mark{{Type: "link", Attrs: map[string]any{"href": "javascript:alert(1)"}}},
	}}}}}
	if out := hostile.HTML(); strings.Contains(out, "javascript:") {
		t.Fatalf("unsafe href survived sanitizing: %q", out)
	}
}

func TestFromTextBuildsMentions(t *testing.T) {
	doc := FromText("hello @u_avery, see this\nsecond line")
	if got := doc.Mentions(); len(got) != 1 || got[0] != "u_avery" {
		t.Fatalf("unexpected mentions: %v", got)
	}
	if len(doc.Content) != 2 {
		t.Fatalf("expected two paragraphs, got %d", len(doc.Content))
	}
	if got := doc.PlainText(); got != "hello @u_avery, see this\nsecond line" {
		t.Fatalf("unexpected plain text %q", got)
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	codec := ProseMirror{}
	raw, err := codec.Serialize(FromText("hi @u1"))
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if got := codec.ExtractMentions(raw); len(got) != 1 || got[0] != "u1" {
		t.Fatalf("mentions lost in serialization: %v", got)
	}
	if _, err := codec.Serialize(json.RawMessage(`{"type":`)); err == nil {
		t.Fatal("expected error for malformed raw document")
	}
	if raw, err := codec.Serialize(nil); err != nil || raw != nil {
		t.Fatalf("expected nil for nil doc, got %s, %v", raw, err)
	}
}
