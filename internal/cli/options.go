package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"chronicle/discuss/internal/comment"
)

var errMissingSubject = errors.New("--sub is required")

// GlobalOptions are shared by every subcommand.
type GlobalOptions struct {
	API     string
	Token   string
	NoColor bool
}

// KeyOptions select the discussion a command works on.
type KeyOptions struct {
	Scope string
	Item  string
}

func (o *KeyOptions) Key() comment.Key {
	return comment.Key{Scope: o.Scope, ItemID: o.Item}
}

func AddKeyArgs(cmd *cobra.Command, o *KeyOptions) {
	cmd.Flags().StringVarP(&o.Scope, "scope", "s", "",
		"Scope of the discussion, e.g. a document type.")
	cmd.Flags().StringVarP(&o.Item, "item", "i", "",
		"Item the discussion is attached to.")
	_ = cmd.MarkFlagRequired("scope")
	_ = cmd.MarkFlagRequired("item")
}

// OutputOptions
type OutputOptions struct {
	JSON bool
}

func AddOutputArg(cmd *cobra.Command, o *OutputOptions) {
	cmd.Flags().BoolVar(&o.JSON, "json", false,
		"Output as JSON.")
}

// HandleError prints err as a JSON object when --json is set.
func (o *OutputOptions) HandleError(out io.Writer, err error) error {
	if o.JSON && err != nil {
		b, merr := json.Marshal(map[string]string{"error": err.Error()})
		if merr != nil {
			return merr
		}
		_, _ = fmt.Fprintln(out, string(b))
		return nil
	}
	return err
}

func (o *OutputOptions) Print(out io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(b))
	return err
}
