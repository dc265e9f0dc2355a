// Package cli is the discuss command line client.
package cli

import (
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"chronicle/discuss/internal/config"
	"chronicle/discuss/internal/logger"
)

// env carries what every subcommand needs.
type env struct {
	cfg    config.Config
	global *GlobalOptions
	in     io.Reader
	log    *logger.Logger
}

func New(cfg config.Config, log *logger.Logger) *cobra.Command {
	return newRoot(cfg, log, os.Stdin)
}

func newRoot(cfg config.Config, log *logger.Logger, in io.Reader) *cobra.Command {
	if log == nil {
		log = logger.Nop()
	}
	e := &env{cfg: cfg, global: &GlobalOptions{}, in: in, log: log}

	cmd := &cobra.Command{
		Use:           "discuss",
		Short:         "Threaded comments on the command line.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if e.global.NoColor {
				color.NoColor = true
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().StringVar(&e.global.API, "api", cfg.APIURL,
		"Base URL of the comment API.")
	cmd.PersistentFlags().StringVar(&e.global.Token, "token", cfg.Token,
		"Bearer token, see `discuss token`.")
	cmd.PersistentFlags().BoolVar(&e.global.NoColor, "no-color", false,
		"Disable colored output.")

	AddCommands(cmd, e)
	return cmd
}

func AddCommands(topLevel *cobra.Command, e *env) {
	addList(topLevel, e)
	addPost(topLevel, e)
	addReply(topLevel, e)
	addReact(topLevel, e)
	addEdit(topLevel, e)
	addDelete(topLevel, e)
	addSearch(topLevel, e)
	addToken(topLevel, e)
}
