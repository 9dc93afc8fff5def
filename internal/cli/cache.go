package cli

import (
	"fmt"

	"github.com/dshills/recall/internal/cache"
	"github.com/dshills/recall/internal/metrics"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// clearResult reports a cleared cache.
type clearResult struct {
	Cleared bool   `json:"cleared"`
	Dir     string `json:"dir"`
}

func (a *app) newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the cache",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show cache statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.openCache()
			if err != nil {
				return err
			}
			stats, err := c.GetStats()
			if err != nil {
				return fmt.Errorf("reading cache stats: %w", err)
			}
			return a.print(stats)
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached entries and blobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.openCache()
			if err != nil {
				return err
			}
			if err := c.Clear(); err != nil {
				return fmt.Errorf("clearing cache: %w", err)
			}
			return a.print(clearResult{Cleared: true, Dir: c.Dir()})
		},
	}

	cmd.AddCommand(show, clearCmd)
	return cmd
}

func (a *app) newGCCmd() *cobra.Command {
	var maxMB float64

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Drop expired entries and evict the least valuable until under the size budget",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mb := a.cfg.Cache.MaxSizeMB
			if cmd.Flags().Changed("max-mb") {
				mb = maxMB
			}
			if mb < 0 {
				return usageErrorf("--max-mb must be >= 0")
			}

			c, err := a.openCache()
			if err != nil {
				return err
			}
			res, err := c.GC(cache.MaxBytesFromMB(mb))
			if err != nil {
				return err
			}
			a.logger.Info("gc complete",
				zap.Int("expired", res.Expired),
				zap.Int("evicted", res.Evicted),
				zap.Int64("after_size_bytes", res.AfterSizeBytes),
			)
			return a.print(res)
		},
	}

	cmd.Flags().Float64Var(&maxMB, "max-mb", 0, "Size budget in MB (default from config)")
	return cmd
}

func (a *app) newStatsCmd() *cobra.Command {
	var promTextfile string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the metrics log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.openCache()
			if err != nil {
				return err
			}
			summary, err := metrics.Summarize(c.MetricsPath())
			if err != nil {
				return err
			}

			path := a.cfg.Metrics.Textfile
			if promTextfile != "" {
				path = promTextfile
			}
			if path != "" {
				stats, err := c.GetStats()
				if err != nil {
					return fmt.Errorf("reading cache stats: %w", err)
				}
				if err := metrics.WriteTextfile(path, summary, cacheState(stats)); err != nil {
					return err
				}
				a.logger.Info("wrote prometheus textfile", zap.String("path", path))
			}
			return a.print(summary)
		},
	}

	cmd.Flags().StringVar(&promTextfile, "prom-textfile", "", "Also write Prometheus textfile metrics to this path")
	return cmd
}

func cacheState(s cache.Stats) metrics.CacheState {
	byType := make(map[string]int, len(s.ByType))
	for k, n := range s.ByType {
		byType[string(k)] = n
	}
	return metrics.CacheState{
		EntriesByType: byType,
		Expired:       s.Expired,
		IndexBytes:    s.IndexBytes,
		BlobBytes:     s.BlobBytes,
	}
}
