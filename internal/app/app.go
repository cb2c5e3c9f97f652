package app

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"dirstat/internal/config"
	"dirstat/internal/services"
	"dirstat/internal/state"
	"dirstat/internal/ui"
)

type Options struct {
	// ReadCache opens the terminal UI from a cache file instead of reading
	// cfg.Path.
	ReadCache string
	// ConfigWarning is shown in the status line on start.
	ConfigWarning string
}

// NewTree builds a directory tree with the configured exclude rules.
func NewTree(cfg config.Config, logger *zap.Logger) (*services.DirectoryTree, error) {
	rules, err := cfg.Rules()
	if err != nil {
		return nil, err
	}
	return services.NewDirectoryTree(services.TreeOptions{
		Rules:            rules,
		ProgressInterval: cfg.ProgressInterval,
		Logger:           logger,
	}), nil
}

// Run starts the terminal UI and blocks until it exits. The final view
// preferences are saved to the user's config file.
func Run(cfg config.Config, logger *zap.Logger, options Options) error {
	tree, err := NewTree(cfg, logger)
	if err != nil {
		return err
	}
	defer tree.Close()

	initialState := state.NewState(cfg, tree)
	model := ui.NewModel(initialState, tree, cfg)
	if options.ConfigWarning != "" {
		model = model.WithStatus("Config warning: " + options.ConfigWarning)
	}
	if options.ReadCache != "" {
		model = model.WithReadCache(options.ReadCache)
	} else {
		model = model.WithOpenPath(cfg.Path)
	}
	defer model.Close()

	logger.Info("starting terminal ui", zap.String("path", cfg.Path), zap.String("cache", options.ReadCache))
	program := tea.NewProgram(model, tea.WithAltScreen())
	finalModel, err := program.Run()
	if err != nil {
		return fmt.Errorf("run terminal ui: %w", err)
	}
	if provider, ok := finalModel.(ui.ConfigProvider); ok {
		if err := config.SaveConfig(provider.ConfigSnapshot()); err != nil {
			logger.Warn("save config", zap.Error(err))
		}
	}
	return nil
}
