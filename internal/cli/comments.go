package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"chronicle/discuss/internal/comment"
	"chronicle/discuss/internal/engine"
	"chronicle/discuss/internal/richtext"
)

// textBody builds a comment body from command line text. Words like @ann
// become mentions.
func textBody(text string, plain bool) engine.Body {
	if plain {
		return engine.PlainBody(text)
	}
	return engine.Body{Text: text, Doc: richtext.FromText(text)}
}

func (e *env) open(cmd *cobra.Command, ko *KeyOptions) (*workspace, error) {
	return openWorkspace(cmd.Context(), e.cfg, e.global, ko.Key(), e.log)
}

func (e *env) printer(cmd *cobra.Command, ws *workspace, showID bool) *Printer {
	p := &Printer{Out: cmd.OutOrStdout(), ShowID: showID}
	if ws != nil {
		p.UserID = ws.who.UserID
	}
	return p
}

func addList(topLevel *cobra.Command, e *env) {
	ko := &KeyOptions{}
	oo := &OutputOptions{}
	var showID bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show the threads of a discussion",
		Example: `
discuss list --scope doc --item roadmap
discuss list -s doc -i roadmap --show-id
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := e.open(cmd, ko)
			if err != nil {
				return oo.HandleError(cmd.OutOrStdout(), err)
			}
			defer ws.Close(context.WithoutCancel(cmd.Context()))
			if oo.JSON {
				return oo.Print(cmd.OutOrStdout(), ws.coord.Snapshot())
			}
			threads := ws.coord.Threads()
			e.printer(cmd, ws, showID).Threads(threads, ws.coord.Reactions())
			return nil
		},
	}
	AddKeyArgs(cmd, ko)
	AddOutputArg(cmd, oo)
	cmd.Flags().BoolVarP(&showID, "show-id", "k", false, "Show comment ids.")
	topLevel.AddCommand(cmd)
}

func addPost(topLevel *cobra.Command, e *env) {
	ko := &KeyOptions{}
	oo := &OutputOptions{}
	var plain bool
	attach := map[string]string{}

	cmd := &cobra.Command{
		Use:   "post [text]",
		Short: "Start a new thread",
		Example: `
discuss post -s doc -i roadmap "ship it @ann"
discuss post -s doc -i roadmap --attach line=42 "typo here"
`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := e.open(cmd, ko)
			if err != nil {
				return oo.HandleError(cmd.OutOrStdout(), err)
			}
			defer ws.Close(context.WithoutCancel(cmd.Context()))
			p := e.printer(cmd, ws, false)

			if len(attach) > 0 {
				metadata := make(map[string]any, len(attach))
				for k, v := range attach {
					metadata[k] = v
				}
				ws.coord.Attach(metadata, func(res engine.Resolution) {
					if !res.Sent {
						p.Note("context was not sent")
					}
				})
			}
			created, err := ws.coord.Create(cmd.Context(), textBody(strings.Join(args, " "), plain))
			if err != nil {
				return oo.HandleError(cmd.OutOrStdout(), err)
			}
			return e.done(cmd, oo, p, created, "posted")
		},
	}
	AddKeyArgs(cmd, ko)
	AddOutputArg(cmd, oo)
	cmd.Flags().BoolVar(&plain, "plain", false, "Send plain text without mentions.")
	cmd.Flags().StringToStringVar(&attach, "attach", nil, "Context to attach, as key=value pairs.")
	topLevel.AddCommand(cmd)
}

func addReply(topLevel *cobra.Command, e *env) {
	ko := &KeyOptions{}
	oo := &OutputOptions{}
	var plain bool

	cmd := &cobra.Command{
		Use:   "reply [comment-id] [text]",
		Short: "Reply to a comment",
		Long:  "Reply to a comment. Replies to a reply join the thread of its root comment.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := e.open(cmd, ko)
			if err != nil {
				return oo.HandleError(cmd.OutOrStdout(), err)
			}
			defer ws.Close(context.WithoutCancel(cmd.Context()))

			target, err := ws.find(args[0])
			if err != nil {
				return oo.HandleError(cmd.OutOrStdout(), err)
			}
			ws.coord.SelectReply(target)
			created, err := ws.coord.Create(cmd.Context(), textBody(strings.Join(args[1:], " "), plain))
			if err != nil {
				return oo.HandleError(cmd.OutOrStdout(), err)
			}
			return e.done(cmd, oo, e.printer(cmd, ws, false), created, "replied")
		},
	}
	AddKeyArgs(cmd, ko)
	AddOutputArg(cmd, oo)
	cmd.Flags().BoolVar(&plain, "plain", false, "Send plain text without mentions.")
	topLevel.AddCommand(cmd)
}

func addReact(topLevel *cobra.Command, e *env) {
	ko := &KeyOptions{}
	oo := &OutputOptions{}

	cmd := &cobra.Command{
		Use:     "react [comment-id] [emoji]",
		Short:   "React to a comment with an emoji",
		Example: "discuss react -s doc -i roadmap cmt_1 👍",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := e.open(cmd, ko)
			if err != nil {
				return oo.HandleError(cmd.OutOrStdout(), err)
			}
			defer ws.Close(context.WithoutCancel(cmd.Context()))

			target, err := ws.find(args[0])
			if err != nil {
				return oo.HandleError(cmd.OutOrStdout(), err)
			}
			created, err := ws.coord.React(cmd.Context(), args[1], target.ID)
			if err != nil {
				return oo.HandleError(cmd.OutOrStdout(), err)
			}
			return e.done(cmd, oo, e.printer(cmd, ws, false), created, "reacted")
		},
	}
	AddKeyArgs(cmd, ko)
	AddOutputArg(cmd, oo)
	topLevel.AddCommand(cmd)
}

func addEdit(topLevel *cobra.Command, e *env) {
	ko := &KeyOptions{}
	oo := &OutputOptions{}
	var plain bool

	cmd := &cobra.Command{
		Use:   "edit [comment-id] [text]",
		Short: "Replace the text of a comment",
		Long:  "Replace the text of a comment. Only users who were not mentioned before are notified.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := e.open(cmd, ko)
			if err != nil {
				return oo.HandleError(cmd.OutOrStdout(), err)
			}
			defer ws.Close(context.WithoutCancel(cmd.Context()))

			target, err := ws.find(args[0])
			if err != nil {
				return oo.HandleError(cmd.OutOrStdout(), err)
			}
			ws.coord.StartEdit(target)
			updated, err := ws.coord.Edit(cmd.Context(), target, textBody(strings.Join(args[1:], " "), plain))
			if err != nil {
				return oo.HandleError(cmd.OutOrStdout(), err)
			}
			return e.done(cmd, oo, e.printer(cmd, ws, false), updated, "edited")
		},
	}
	AddKeyArgs(cmd, ko)
	AddOutputArg(cmd, oo)
	cmd.Flags().BoolVar(&plain, "plain", false, "Send plain text without mentions.")
	topLevel.AddCommand(cmd)
}

func addDelete(topLevel *cobra.Command, e *env) {
	ko := &KeyOptions{}
	var offerUndo bool

	cmd := &cobra.Command{
		Use:     "delete [comment-id]",
		Aliases: []string{"rm"},
		Short:   "Delete a comment",
		Long:    "Delete a comment. With --undo the delete waits for the undo window and Enter takes it back.",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := e.open(cmd, ko)
			if err != nil {
				return err
			}
			defer ws.Close(context.WithoutCancel(cmd.Context()))
			p := e.printer(cmd, ws, false)

			target, err := ws.find(args[0])
			if err != nil {
				return err
			}
			ws.coord.Delete(cmd.Context(), target)
			if !offerUndo || e.cfg.UndoWindow <= 0 {
				p.Note("deleted %s", target.ID)
				return nil
			}

			p.Note("deleted %s, press Enter within %s to undo", target.ID, e.cfg.UndoWindow)
			if e.waitForUndo(e.cfg.UndoWindow) && ws.undo.Undo(target.ID) {
				p.Note("restored %s", target.ID)
			}
			return nil
		},
	}
	AddKeyArgs(cmd, ko)
	cmd.Flags().BoolVar(&offerUndo, "undo", false, "Offer an undo window before deleting.")
	topLevel.AddCommand(cmd)
}

// waitForUndo reports whether a line was entered before window elapsed.
func (e *env) waitForUndo(window time.Duration) bool {
	lines := make(chan error, 1)
	go func() {
		_, err := bufio.NewReader(e.in).ReadString('\n')
		lines <- err
	}()
	timer := time.NewTimer(window)
	defer timer.Stop()
	select {
	case err := <-lines:
		return err == nil
	case <-timer.C:
		return false
	}
}

func (e *env) done(cmd *cobra.Command, oo *OutputOptions, p *Printer, c comment.Comment, verb string) error {
	if oo.JSON {
		return oo.Print(cmd.OutOrStdout(), c)
	}
	p.Note("%s %s", verb, c.ID)
	return nil
}

// exitCode maps engine failures to process exit codes.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case engine.IsValidation(err):
		return 2
	case engine.IsFetch(err), engine.IsSubmit(err):
		return 3
	case errors.Is(err, context.DeadlineExceeded):
		return 4
	default:
		return 1
	}
}

// Execute runs the root command and returns the process exit code.
func Execute(cmd *cobra.Command) int {
	err := cmd.Execute()
	if err != nil {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
	}
	return exitCode(err)
}
