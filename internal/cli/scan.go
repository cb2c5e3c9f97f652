package cli

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"dirstat/internal/app"
	"dirstat/internal/domain"
	"dirstat/internal/services"
)

const defaultTop = 10

func newScanCommand(s *settings) *cobra.Command {
	var writeCache, output string
	var top int
	cmd := &cobra.Command{
		Use:   "scan <path>",
		Short: "Read a directory tree and print its totals",
		Long: `Read path without the terminal UI and print the cumulative totals and the
largest entries directly below it. Interrupting the command aborts the read
and prints what was read so far.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := s.load(cmd)
			if err != nil {
				return err
			}
			logger, err := consoleLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			path, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			tree, err := app.NewTree(cfg, logger.Named("tree"))
			if err != nil {
				return err
			}
			defer tree.Close()

			ctx := cmd.Context()
			if err := tree.OpenPath(path); err != nil {
				return err
			}
			finished := make(chan struct{})
			go func() {
				select {
				case <-ctx.Done():
					tree.AbortReading()
				case <-finished:
				}
			}()
			tree.Wait()
			close(finished)

			stats := tree.Stats()
			if tree.State() == services.StateFailed {
				return fmt.Errorf("read %s failed", path)
			}
			var result summary
			tree.View(func(root *domain.Entry) { result = summarize(root, top) })
			result.State = tree.State().String()
			result.Duration = stats.Duration
			out := cmd.OutOrStdout()
			if err := writeSummary(out, output, result); err != nil {
				return err
			}
			if output != outputYAML {
				printReadErrors(out, stats)
			}

			if writeCache != "" {
				if err := tree.WriteCache(ctx, writeCache); err != nil {
					return err
				}
				notice := out
				if output == outputYAML {
					notice = cmd.ErrOrStderr()
				}
				color.New(color.FgGreen).Fprintf(notice, "Wrote cache file %s\n", writeCache)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&writeCache, "write-cache", "", "Write the tree to this cache file (gzip when it ends in .gz)")
	cmd.Flags().IntVar(&top, "top", defaultTop, "Number of largest entries to list")
	cmd.Flags().StringVarP(&output, "output", "o", outputText, "Output format: text or yaml")
	return cmd
}

func newInspectCommand(s *settings) *cobra.Command {
	var output string
	var top int
	cmd := &cobra.Command{
		Use:           "inspect <cache-file>",
		Short:         "Print the totals stored in a cache file",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, err := s.load(cmd); err != nil {
				return err
			}
			root, err := services.ReadCacheFile(cmd.Context(), args[0])
			if err != nil {
				var formatError *services.CacheFormatError
				if errors.As(err, &formatError) {
					return fmt.Errorf("not a valid cache file: %w", err)
				}
				return err
			}
			return writeSummary(cmd.OutOrStdout(), output, summarize(root, top))
		},
	}
	cmd.Flags().IntVar(&top, "top", defaultTop, "Number of largest entries to list")
	cmd.Flags().StringVarP(&output, "output", "o", outputText, "Output format: text or yaml")
	return cmd
}
