package cli

import (
	"fmt"
	"os"

	"github.com/dshills/recall/internal/config"
	"github.com/dshills/recall/internal/output"
	"github.com/spf13/cobra"
)

func (a *app) newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage recall configuration",
	}

	initCmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a default configuration file",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ConfigPath()
			if err != nil {
				return &configError{err: err}
			}

			if _, err := os.Stat(path); err == nil {
				fmt.Fprintf(a.stderr, "Config file already exists at %s\n", path)
				return nil
			}

			if err := config.Save(config.Default()); err != nil {
				return fmt.Errorf("writing config: %w", err)
			}

			fmt.Fprintf(a.stdout, "Config file created at %s\n", path)
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:         "set <key> <value>",
		Short:       "Set a configuration value",
		Args:        cobra.ExactArgs(2),
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ConfigPath()
			if err != nil {
				return &configError{err: err}
			}
			cfg := config.Default()
			if _, statErr := os.Stat(path); statErr == nil {
				if cfg, err = config.LoadFile(); err != nil {
					return &configError{err: err}
				}
			}

			if err := config.SetField(&cfg, args[0], args[1]); err != nil {
				return &usageError{err: err}
			}

			if err := config.Save(cfg); err != nil {
				return fmt.Errorf("saving config: %w", err)
			}

			fmt.Fprintf(a.stdout, "Set %s = %s\n", args[0], args[1])
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return output.Print(a.stdout, output.FormatJSON, a.cfg)
		},
	}

	cmd.AddCommand(initCmd, setCmd, showCmd)
	return cmd
}
