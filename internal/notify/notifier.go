// Package notify e-mails users who were mentioned in a comment.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"

	"chronicle/discuss/internal/comment"
	"chronicle/discuss/internal/logger"
	"chronicle/discuss/internal/richtext"
	"chronicle/discuss/internal/store"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const maxParallelSends = 4

// Directory resolves user ids to addresses.
type Directory interface {
	UsersByIDs(ctx context.Context, ids []string) ([]store.User, error)
}

type Mailer interface {
	IsConfigured() bool
	Send(ctx context.Context, msg Message) error
}

type Notifier struct {
	directory Directory
	mailer    Mailer
	limiter   *rate.Limiter
	log       *logger.Logger
	appName   string
}

// New builds a notifier sending at most perMinute mails per minute.
func New(directory Directory, mailer Mailer, perMinute int, log *logger.Logger) *Notifier {
	if perMinute <= 0 {
		perMinute = 60
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Notifier{
		directory: directory,
		mailer:    mailer,
		limiter:   rate.NewLimiter(rate.Limit(float64(perMinute)/60), perMinute),
		log:       log,
		appName:   "Discuss",
	}
}

func (n *Notifier) Enabled() bool {
	return n != nil && n.mailer != nil && n.mailer.IsConfigured()
}

// NotifyMentions mails every user in userIDs except the comment's author.
// Users without an address are skipped.
func (n *Notifier) NotifyMentions(ctx context.Context, c comment.Comment, userIDs []string) error {
	if !n.Enabled() {
		return nil
	}
	recipients := make([]string, 0, len(userIDs))
	seen := map[string]struct{}{}
	for _, id := range userIDs {
		if id == "" || c.IsMine(id) {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		recipients = append(recipients, id)
	}
	if len(recipients) == 0 {
		return nil
	}

	users, err := n.directory.UsersByIDs(ctx, recipients)
	if err != nil {
		return fmt.Errorf("load mention recipients: %w", err)
	}
	text, htmlBody := renderBody(c)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelSends)
	for _, user := range users {
		if strings.TrimSpace(user.Email) == "" {
			n.log.Debug("mention recipient has no email", "user_id", user.ID)
			continue
		}
		g.Go(func() error {
			if err := n.limiter.Wait(gctx); err != nil {
				return err
			}
			msg, err := n.message(user, c, text, htmlBody)
			if err != nil {
				return err
			}
			if err := n.mailer.Send(gctx, msg); err != nil {
				return fmt.Errorf("notify %s: %w", user.ID, err)
			}
			n.log.Info("mention notification sent", "comment_id", c.ID, "user_id", user.ID, "email", user.Email)
			return nil
		})
	}
	return g.Wait()
}

type mentionData struct {
	AppName   string
	UserName  string
	Author    string
	Body      template.HTML
	Scope     string
	ItemID    string
	CommentID string
}

func (n *Notifier) message(user store.User, c comment.Comment, text, htmlBody string) (Message, error) {
	data := mentionData{
		AppName:   n.appName,
		UserName:  user.DisplayName,
		Author:    c.AuthorName(),
		Body:      template.HTML(htmlBody),
		Scope:     c.Scope,
		ItemID:    c.ItemID,
		CommentID: c.ID,
	}
	var buf bytes.Buffer
	if err := mentionTemplate.Execute(&buf, data); err != nil {
		return Message{}, fmt.Errorf("render mention template: %w", err)
	}
	return Message{
		To:      user.Email,
		Subject: fmt.Sprintf("%s mentioned you in a comment", data.Author),
		Text:    fmt.Sprintf("%s mentioned you on %s/%s:\n\n%s", data.Author, c.Scope, c.ItemID, text),
		HTML:    buf.String(),
	}, nil
}

// renderBody returns the plain and sanitized HTML forms of the comment body.
func renderBody(c comment.Comment) (string, string) {
	if c.HasRichContent() {
		if doc, err := richtext.Parse(c.RichContent); err == nil && !doc.IsEmpty() {
			return doc.PlainText(), doc.HTML()
		}
	}
	doc := richtext.Node{Type: "doc", Content: []richtext.Node{{
		Type:    "paragraph",
		Content: []richtext.Node{{Type: "text", Text: c.Content}},
	}}}
	return c.Content, doc.HTML()
}

var mentionTemplate = template.Must(template.New("mention").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Author}} mentioned you</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #0066cc; padding-bottom: 10px; margin-bottom: 20px; }
        .quote { border-left: 3px solid #ddd; padding-left: 12px; color: #444; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <p>Hi {{.UserName}},</p>
    <p>{{.Author}} mentioned you on <strong>{{.Scope}}/{{.ItemID}}</strong>:</p>

    <div class="quote">{{.Body}}</div>

    <div class="footer">
        <p>Comment {{.CommentID}}</p>
    </div>
</body>
</html>`))
