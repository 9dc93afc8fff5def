package cli

import (
	"fmt"

	"github.com/dshills/recall/internal/gitctx"
	"github.com/dshills/recall/internal/keys"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (a *app) newKeyCmd() *cobra.Command {
	var (
		prompt     string
		slot       string
		gitChanged bool
		gitTracked bool
		include    []string
		exclude    []string
	)

	cmd := &cobra.Command{
		Use:   "key [paths...]",
		Short: "Derive the fingerprint, context signature and exact key for a request",
		RunE: func(cmd *cobra.Command, args []string) error {
			// An empty prompt is a valid key input; only an absent flag is an error.
			if !cmd.Flags().Changed("prompt") {
				return usageErrorf("--prompt is required")
			}

			paths := append([]string{}, args...)
			opts := gitctx.Options{Include: include, Exclude: exclude}
			if gitChanged {
				files, err := gitctx.ChangedFiles(opts)
				if err != nil {
					return fmt.Errorf("collecting changed files: %w", err)
				}
				paths = append(paths, files...)
			}
			if gitTracked {
				files, err := gitctx.TrackedFiles(opts)
				if err != nil {
					return fmt.Errorf("collecting tracked files: %w", err)
				}
				paths = append(paths, files...)
			}

			derived := keys.Derive(prompt, slot, paths)
			a.logger.Debug("derived key",
				zap.Int("paths", len(paths)),
				zap.Int("files", len(derived.SourceFiles)),
				zap.String("context_signature", derived.ContextSignature),
			)
			return a.print(derived)
		},
	}

	f := cmd.Flags()
	f.StringVar(&prompt, "prompt", "", "Request prompt")
	f.StringVar(&slot, "slot", "", "Optional slot that partitions keys")
	f.BoolVar(&gitChanged, "git-changed", false, "Add files changed since HEAD and untracked files")
	f.BoolVar(&gitTracked, "git-tracked", false, "Add all tracked files")
	f.StringSliceVar(&include, "include", nil, "Only keep git paths matching these globs")
	f.StringSliceVar(&exclude, "exclude", nil, "Drop git paths matching these globs")
	return cmd
}
