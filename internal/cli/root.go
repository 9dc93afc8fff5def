package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"

	"github.com/dshills/recall/internal/cache"
	"github.com/dshills/recall/internal/calendar"
	"github.com/dshills/recall/internal/config"
	"github.com/dshills/recall/internal/logging"
	"github.com/dshills/recall/internal/output"
	"github.com/dshills/recall/internal/redact"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const version = "0.1.0"

// Exit codes
const (
	ExitSuccess      = 0
	ExitUsageError   = 2
	ExitConfigError  = 3
	ExitRuntimeError = 4
)

// skipConfig marks commands that run without loading the effective config.
const skipConfig = "recall/skip-config"

// usageError marks invalid invocations.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usageErrorf(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// configError marks failures to load or apply configuration.
type configError struct{ err error }

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

// app holds per-invocation state shared by all commands.
type app struct {
	stdout io.Writer
	stderr io.Writer

	flagCacheDir string
	flagFormat   string
	flagLogLevel string

	started  bool
	cfg      config.Config
	logger   *zap.Logger
	closeLog func() error
}

// Run executes the command line and returns an exit code.
func Run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

// Execute runs the command tree with args and returns an exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr, logger: zap.NewNop()}
	root := a.newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if a.closeLog != nil {
		_ = a.closeLog()
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return a.exitCode(err)
	}
	return ExitSuccess
}

func (a *app) newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "recall",
		Short:         "Semantic result cache for automation agents",
		Long:          "Recall stores computed results keyed by request and context, and serves them back by exact key or embedding similarity.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.started = true
			if cmd.Annotations[skipConfig] != "" {
				return nil
			}
			return a.setup()
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.flagCacheDir, "cache-dir", "", "Cache directory (default: platform cache dir)")
	pf.StringVar(&a.flagFormat, "format", "", "Output format (json, text)")
	pf.StringVar(&a.flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")

	root.AddCommand(
		a.newKeyCmd(),
		a.newStoreCmd(),
		a.newLookupCmd(),
		a.newGCCmd(),
		a.newCacheCmd(),
		a.newStatsCmd(),
		a.newCompactCmd(),
		a.newCalendarCmd(),
		a.newConfigCmd(),
		a.newVersionCmd(),
	)
	return root
}

// setup loads the effective config and builds the logger.
func (a *app) setup() error {
	cfg, err := config.Load(map[string]string{
		"cache.dir": a.flagCacheDir,
		"format":    a.flagFormat,
		"log.level": a.flagLogLevel,
	})
	if err != nil {
		return &configError{err: err}
	}
	logger, closeLog, err := logging.New(cfg.Log, a.stderr)
	if err != nil {
		return &configError{err: err}
	}
	a.cfg = cfg
	a.logger = logger
	a.closeLog = closeLog
	return nil
}

func (a *app) redactor() (*redact.Redactor, error) {
	r, err := redact.New(a.cfg.Privacy.ExtraPatterns...)
	if err != nil {
		return nil, &configError{err: err}
	}
	return r, nil
}

func (a *app) openCache() (*cache.Cache, error) {
	r, err := a.redactor()
	if err != nil {
		return nil, err
	}
	c, err := cache.New(a.cfg.Cache.Dir, cache.Options{
		Redactor:      r,
		Logger:        a.logger.Named("cache"),
		BypassPhrases: a.cfg.Lookup.BypassPhrases,
	})
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	return c, nil
}

func (a *app) print(v any) error {
	return output.Print(a.stdout, a.cfg.Format, v)
}

func (a *app) exitCode(err error) int {
	var (
		uerr  *usageError
		cerr  *configError
		upErr *calendar.UpstreamError
	)
	switch {
	case !a.started, errors.As(err, &uerr):
		return ExitUsageError
	case errors.As(err, &cerr), errors.Is(err, calendar.ErrConfigurationMissing):
		return ExitConfigError
	case errors.As(err, &upErr):
		if upErr.Status == http.StatusUnauthorized || upErr.Status == http.StatusForbidden ||
			(upErr.Op == "token exchange" && upErr.Status == http.StatusBadRequest) {
			return ExitConfigError
		}
		return ExitRuntimeError
	case errors.Is(err, cache.ErrInvalidID),
		errors.Is(err, cache.ErrInvalidCapsule),
		errors.Is(err, cache.ErrInvalidTTL),
		errors.Is(err, cache.ErrMissingEmbedding),
		errors.Is(err, calendar.ErrInvalidEvent):
		return ExitUsageError
	default:
		return ExitRuntimeError
	}
}

func (a *app) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print recall version",
		Annotations: map[string]string{skipConfig: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "recall version %s\n", version)
		},
	}
}
