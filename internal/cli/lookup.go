package cli

import (
	"github.com/dshills/recall/internal/cache"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (a *app) newLookupCmd() *cobra.Command {
	var (
		prompt           string
		contextSignature string
		threshold        float64
		queryEmbedding   string
	)

	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Look up a cached capsule by exact key or embedding similarity",
		RunE: func(cmd *cobra.Command, args []string) error {
			if contextSignature == "" {
				return usageErrorf("--context-signature is required")
			}

			q := cache.Query{Prompt: prompt, ContextSignature: contextSignature}
			t := a.cfg.Lookup.SimilarityThreshold
			if cmd.Flags().Changed("similarity-threshold") {
				t = threshold
			}
			q.Threshold = &t

			vec, err := parseEmbedding(queryEmbedding)
			if err != nil {
				a.logger.Warn("ignoring query embedding", zap.Error(err))
			} else {
				q.Embedding = vec
			}

			c, err := a.openCache()
			if err != nil {
				return err
			}
			out, err := c.Lookup(q)
			if err != nil {
				return err
			}
			return a.print(out)
		},
	}

	f := cmd.Flags()
	f.StringVar(&prompt, "prompt", "", "Request prompt")
	f.StringVar(&contextSignature, "context-signature", "", "Context signature from the key command")
	f.Float64Var(&threshold, "similarity-threshold", 0, "Minimum cosine similarity for a semantic hit (default from config)")
	f.StringVar(&queryEmbedding, "query-embedding", "", "Query embedding as a JSON array")
	return cmd
}
