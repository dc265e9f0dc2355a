package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"chronicle/discuss/internal/client"
	"chronicle/discuss/internal/comment"
	"chronicle/discuss/internal/richtext"
)

const (
	timeLayout     = "2006-01-02 15:04"
	deletedComment = "[deleted comment]"
)

// Printer renders discussions for a terminal.
type Printer struct {
	Out    io.Writer
	UserID string
	ShowID bool
}

func (p *Printer) Threads(threads []comment.Thread, tally comment.Tally) {
	if len(threads) == 0 {
		f := color.New(color.Faint, color.Italic)
		_, _ = f.Fprint(p.Out, " no comments\n")
		return
	}
	for _, thread := range threads {
		if thread.Deleted() {
			f := color.New(color.Faint, color.Italic)
			_, _ = f.Fprintln(p.Out, deletedComment)
		} else {
			p.entry(*thread.Comment, tally, "")
		}
		for _, reply := range thread.Replies {
			p.entry(reply, tally, "  ")
		}
		_, _ = fmt.Fprintln(p.Out)
	}
}

func (p *Printer) entry(c comment.Comment, tally comment.Tally, indent string) {
	author := color.New(color.Bold)
	if c.IsMine(p.UserID) {
		author = color.New(color.Bold, color.FgCyan)
	}
	faint := color.New(color.Faint)
	id := color.New(color.FgHiYellow, color.Italic, color.Faint)

	_, _ = fmt.Fprint(p.Out, indent)
	if !c.IsRoot() {
		_, _ = faint.Fprint(p.Out, "↳ ")
	}
	_, _ = author.Fprint(p.Out, c.AuthorName())
	_, _ = faint.Fprintf(p.Out, " · %s", c.CreatedAt.Local().Format(timeLayout))
	if c.Edited() {
		_, _ = faint.Fprint(p.Out, " (edited)")
	}
	if p.ShowID {
		_, _ = id.Fprintf(p.Out, " %s", c.ID)
	}
	_, _ = fmt.Fprintln(p.Out)

	for _, line := range strings.Split(bodyText(c), "\n") {
		_, _ = fmt.Fprintf(p.Out, "%s  %s\n", indent, line)
	}
	if chips := p.reactions(tally.Counts(c.ID, p.UserID)); chips != "" {
		_, _ = fmt.Fprintf(p.Out, "%s  %s\n", indent, chips)
	}
}

func (p *Printer) reactions(counts []comment.ReactionCount) string {
	if len(counts) == 0 {
		return ""
	}
	mine := color.New(color.FgCyan)
	chips := make([]string, 0, len(counts))
	for _, count := range counts {
		chip := fmt.Sprintf("%s %d", count.Emoji, count.Count)
		if count.Mine {
			chip = mine.Sprint(chip)
		}
		chips = append(chips, chip)
	}
	return strings.Join(chips, "  ")
}

func (p *Printer) Hits(hits []client.SearchHit) {
	if len(hits) == 0 {
		f := color.New(color.Faint, color.Italic)
		_, _ = f.Fprint(p.Out, " no matches\n")
		return
	}
	bold := color.New(color.Bold)
	faint := color.New(color.Faint)
	for _, hit := range hits {
		_, _ = bold.Fprint(p.Out, hit.Author)
		_, _ = faint.Fprintf(p.Out, " %s/%s %s\n", hit.Scope, hit.ItemID, hit.ID)
		_, _ = fmt.Fprintf(p.Out, "  %s\n", richtext.StripTags(hit.Snippet))
	}
}

func (p *Printer) Note(format string, args ...any) {
	_, _ = color.New(color.Faint).Fprintf(p.Out, format+"\n", args...)
}

// bodyText prefers the structured body and falls back to the plain one.
func bodyText(c comment.Comment) string {
	if c.HasRichContent() {
		if doc, err := richtext.Parse(c.RichContent); err == nil && !doc.IsEmpty() {
			return doc.PlainText()
		}
	}
	return c.Content
}
