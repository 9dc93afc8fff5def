package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dshills/recall/internal/cache"
	"github.com/dshills/recall/internal/keys"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func (a *app) newStoreCmd() *cobra.Command {
	var (
		id                string
		kind              string
		contextSignature  string
		promptFingerprint string
		sourceFiles       string
		capsulePath       string
		resultSummary     string
		ttlDays           int
		embedding         string
		tokensAvoided     int64
	)

	cmd := &cobra.Command{
		Use:   "store",
		Short: "Store a capsule in the cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := cache.ParseKind(kind)
			if err != nil {
				return &usageError{err: err}
			}
			if contextSignature == "" || promptFingerprint == "" {
				return usageErrorf("--context-signature and --prompt-fingerprint are required")
			}
			if capsulePath == "" {
				return usageErrorf("--capsule is required")
			}

			req := cache.StoreRequest{
				ID:                id,
				ContextSignature:  contextSignature,
				PromptFingerprint: promptFingerprint,
				ResultSummary:     resultSummary,
				TokensAvoidedEst:  tokensAvoided,
			}
			if req.ID == "" {
				req.ID = uuid.NewString()
			}
			if cmd.Flags().Changed("ttl-days") {
				req.TTLDays = &ttlDays
			}

			switch k {
			case cache.KindExact:
				req.Variant = cache.Exact{}
			case cache.KindSemantic:
				vec, err := parseEmbedding(embedding)
				if err != nil {
					return usageErrorf("--embedding: %v", err)
				}
				req.Variant = cache.Semantic{Embedding: vec}
			}

			if sourceFiles != "" {
				if err := json.Unmarshal([]byte(sourceFiles), &req.SourceFiles); err != nil {
					return usageErrorf("--source-files must be a JSON array of {path, mtime, size}: %v", err)
				}
			}
			if req.SourceFiles == nil {
				req.SourceFiles = []keys.FileSnapshot{}
			}

			req.Capsule, err = readCapsule(cmd.InOrStdin(), capsulePath)
			if err != nil {
				return err
			}

			c, err := a.openCache()
			if err != nil {
				return err
			}
			res, err := c.Store(req)
			if err != nil {
				return err
			}
			return a.print(res)
		},
	}

	f := cmd.Flags()
	f.StringVar(&id, "id", "", "Entry id (default: random UUID)")
	f.StringVar(&kind, "type", "", "Entry type (exact, semantic)")
	f.StringVar(&contextSignature, "context-signature", "", "Context signature from the key command")
	f.StringVar(&promptFingerprint, "prompt-fingerprint", "", "Prompt fingerprint from the key command")
	f.StringVar(&sourceFiles, "source-files", "", "Source file snapshots as JSON")
	f.StringVar(&capsulePath, "capsule", "", "Path to the capsule JSON file (- for stdin)")
	f.StringVar(&resultSummary, "result-summary", "", "Short human-readable summary")
	f.IntVar(&ttlDays, "ttl-days", 0, "Lifetime in days (default from meta.json)")
	f.StringVar(&embedding, "embedding", "", "Embedding vector as a JSON array (semantic only)")
	f.Int64Var(&tokensAvoided, "tokens-avoided-est", 0, "Estimated tokens a hit saves")
	return cmd
}

func readCapsule(stdin io.Reader, path string) (json.RawMessage, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading capsule: %w", err)
	}
	return json.RawMessage(data), nil
}

// parseEmbedding decodes a JSON number array. Empty input yields nil.
func parseEmbedding(s string) ([]float64, error) {
	if s == "" {
		return nil, nil
	}
	var vec []float64
	if err := json.Unmarshal([]byte(s), &vec); err != nil {
		return nil, fmt.Errorf("parsing embedding: %w", err)
	}
	return vec, nil
}
