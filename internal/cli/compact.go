package cli

import (
	"github.com/dshills/recall/internal/compact"
	"github.com/spf13/cobra"
)

func (a *app) newCompactCmd() *cobra.Command {
	var (
		source   string
		target   string
		maxItems int
	)

	cmd := &cobra.Command{
		Use:   "compact",
		Short: "Append a redacted bullet digest of a markdown file to a memory file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if source == "" || target == "" {
				return usageErrorf("--source and --target are required")
			}
			r, err := a.redactor()
			if err != nil {
				return err
			}
			res, err := compact.Run(compact.Options{
				Source:      source,
				Target:      target,
				MaxItems:    maxItems,
				RedactPaths: a.cfg.Privacy.RedactPaths,
				Redactor:    r,
			})
			if err != nil {
				return err
			}
			return a.print(res)
		},
	}

	f := cmd.Flags()
	f.StringVar(&source, "source", "", "Markdown file to digest")
	f.StringVar(&target, "target", "", "Memory file to append to")
	f.IntVar(&maxItems, "max-items", compact.DefaultMaxItems, "Maximum bullets per digest")
	return cmd
}
