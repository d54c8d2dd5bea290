package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/playdeck/internal/shared"
	"github.com/desertthunder/playdeck/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive playlist browser with live playback status.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	if err := r.playlists(ctx); err != nil {
		return err
	}
	if err := r.player(ctx, true); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := ui.NewModel(ctx, ui.Deps{
		Catalog:     r.catalog,
		Streamer:    r.streamer,
		Coordinator: r.coordinator,
		Worker:      r.worker,
		Transport:   r.transport,
		Logger:      fileLogger,
	})
	defer model.Close()

	if err := r.worker.Start(ctx); err != nil {
		return err
	}

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
