package cli

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"chronicle/discuss/internal/auth"
	"chronicle/discuss/internal/client"
	"chronicle/discuss/internal/rbac"
)

func addSearch(topLevel *cobra.Command, e *env) {
	oo := &OutputOptions{}
	ko := &KeyOptions{}

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Full-text search over comments",
		Example: `
discuss search release plan
discuss search --scope doc --item roadmap typo
`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api := client.New(e.global.API, e.global.Token)
			hits, err := api.Search(cmd.Context(), strings.Join(args, " "), ko.Key())
			if err != nil {
				return oo.HandleError(cmd.OutOrStdout(), err)
			}
			if oo.JSON {
				return oo.Print(cmd.OutOrStdout(), hits)
			}
			(&Printer{Out: cmd.OutOrStdout()}).Hits(hits)
			return nil
		},
	}
	// scope and item are optional filters here
	cmd.Flags().StringVarP(&ko.Scope, "scope", "s", "", "Only search this scope.")
	cmd.Flags().StringVarP(&ko.Item, "item", "i", "", "Only search this item.")
	AddOutputArg(cmd, oo)
	topLevel.AddCommand(cmd)
}

func addToken(topLevel *cobra.Command, e *env) {
	var (
		sub, name, email, role string
		ttl                    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API token signed with DISCUSS_JWT_SECRET",
		Example: `
discuss token --sub u_ann --name Ann --role commenter
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(sub) == "" {
				return errMissingSubject
			}
			if name == "" {
				name = sub
			}
			token, err := auth.Issue([]byte(e.cfg.JWTSecret), sub, name, email, string(rbac.Normalize(role)), ttl)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write([]byte(token + "\n"))
			return err
		},
	}
	cmd.Flags().StringVar(&sub, "sub", "", "User id the token is issued to.")
	cmd.Flags().StringVar(&name, "name", "", "Display name, defaults to the user id.")
	cmd.Flags().StringVar(&email, "email", "", "Address for mention notifications.")
	cmd.Flags().StringVar(&role, "role", string(rbac.RoleCommenter), "One of viewer, commenter, moderator, admin.")
	cmd.Flags().DurationVar(&ttl, "ttl", e.cfg.AccessTTL, "Token lifetime.")
	topLevel.AddCommand(cmd)
}
