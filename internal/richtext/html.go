package richtext

import (
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var policy = newPolicy()

func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class", "data-id").OnElements("span")
	return p
}

// HTML renders the document and passes the result through a UGC sanitizer.
func (n Node) HTML() string {
	return policy.Sanitize(renderNode(n))
}

// StripTags removes all markup from an HTML fragment.
func StripTags(fragment string) string {
	return bluemonday.StrictPolicy().Sanitize(fragment)
}

func renderNode(node Node) string {
	switch node.Type {
	case "":
		return ""
	case "doc":
		return renderContent(node.Content)
	case "paragraph":
		return fmt.Sprintf("<p>%s</p>\n", renderContent(node.Content))
	case "heading":
		level := 1
		if lvl, ok := node.Attrs["level"].(float64); ok && lvl >= 1 && lvl <= 6 {
			level = int(lvl)
		}
		return fmt.Sprintf("<h%d>%s</h%d>\n", level, renderContent(node.Content), level)
	case "bulletList":
		return fmt.Sprintf("<ul>\n%s</ul>\n", renderContent(node.Content))
	case "orderedList":
		return fmt.Sprintf("<ol>\n%s</ol>\n", renderContent(node.Content))
	case "listItem":
		return fmt.Sprintf("<li>%s</li>\n", renderContent(node.Content))
	case "blockquote":
		return fmt.Sprintf("<blockquote>\n%s</blockquote>\n", renderContent(node.Content))
	case "codeBlock":
		return fmt.Sprintf("<pre><code>%s</code></pre>\n", renderContent(node.Content))
	case "text":
		return renderTextWithMarks(node.Text, node.Marks)
	case mentionNode:
		id := attrString(node.Attrs, "id")
		label := firstNonBlank(attrString(node.Attrs, "label"), id)
		return fmt.Sprintf(`<span class="mention" data-id="%s">@%s</span>`, html.EscapeString(id), html.EscapeString(label))
	case "hardBreak":
		return "<br>"
	case "horizontalRule":
		return "<hr>\n"
	default:
		return renderContent(node.Content)
	}
}

func renderContent(content []Node) string {
	var result strings.Builder
	for _, child := range content {
		result.WriteString(renderNode(child))
	}
	return result.String()
}

func renderTextWithMarks(text string, marks []Mark) string {
	if text == "" {
		return ""
	}
	out := html.EscapeString(text)
	for i := len(marks) - 1; i >= 0; i-- {
		switch marks[i].Type {
		case "bold":
			out = "<strong>" + out + "</strong>"
		case "italic":
			out = "<em>" + out + "</em>"
		case "code":
			out = "<code>" + out + "</code>"
		case "strike":
			out = "<s>" + out + "</s>"
		case "underline":
			out = "<u>" + out + "</u>"
		case "link":
			href := attrString(marks[i].Attrs, "href")
			out = fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(href), out)
		}
	}
	return out
}
