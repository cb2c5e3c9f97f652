// Package cli wires the dirstat commands.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dirstat/internal/app"
	"dirstat/internal/config"
	"dirstat/internal/logging"
)

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}

// settings resolves the configuration for a command invocation.
type settings struct {
	flags *config.FlagValues
}

func (s *settings) load(cmd *cobra.Command) (config.Config, string, error) {
	cfg, err := s.flags.Load(cmd.Flags())
	if err == nil {
		return cfg, "", nil
	}
	if s.flags.ConfigFile() != "" {
		return cfg, "", err
	}
	// Fall back to defaults when the user config file is unreadable.
	return s.flags.Apply(cmd.Flags(), config.DefaultConfig()), err.Error(), nil
}

// applyColorMode sets up colored output for mode auto, always or never.
func applyColorMode(mode string, stdout *os.File) error {
	switch mode {
	case "", "auto":
		color.NoColor = os.Getenv("NO_COLOR") != "" ||
			!(isatty.IsTerminal(stdout.Fd()) || isatty.IsCygwinTerminal(stdout.Fd()))
	case "always":
		color.NoColor = false
	case "never":
		color.NoColor = true
	default:
		return fmt.Errorf("invalid --color value %q (want auto, always or never)", mode)
	}
	return nil
}

func NewRootCommand() *cobra.Command {
	s := &settings{}
	var readCache, colorMode string
	cmd := &cobra.Command{
		Use:   "dirstat [path]",
		Short: "Show where the disk space went",
		Long: `dirstat reads a directory tree in the background and shows cumulative
sizes, item counts and modification times for every directory.

Without a subcommand it opens the terminal UI on path (default: the last
directory browsed). Trees can be saved to and restored from cache files.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return applyColorMode(colorMode, os.Stdout)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, warning, err := s.load(cmd)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				path, err := filepath.Abs(args[0])
				if err != nil {
					return fmt.Errorf("resolve path: %w", err)
				}
				cfg.Path = path
			}
			logger, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			if warning != "" {
				logger.Warn("using default configuration", zap.String("reason", warning))
			}
			return app.Run(cfg, logger.Named("app"), app.Options{ReadCache: readCache, ConfigWarning: warning})
		},
	}
	s.flags = config.BindFlags(cmd.PersistentFlags())
	cmd.PersistentFlags().StringVar(&colorMode, "color", "auto", "Colorize output: auto, always or never")
	cmd.Flags().StringVar(&readCache, "read-cache", "", "Open the UI from a cache file instead of reading path")

	cmd.AddCommand(newScanCommand(s))
	cmd.AddCommand(newInspectCommand(s))
	return cmd
}

// consoleLogger logs to stderr for the non-interactive commands.
func consoleLogger(cfg config.Config) (*zap.Logger, error) {
	return logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile, Console: true})
}
