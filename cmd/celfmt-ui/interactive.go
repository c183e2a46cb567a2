package main

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/wippyai/celfmt-ui/config"
	"github.com/wippyai/celfmt-ui/playground"
	"github.com/wippyai/celfmt-ui/tui"
)

func runInteractive(ctx context.Context, cfg *config.Config, loader playground.Loader, logger *zap.Logger) error {
	m := tui.New(cfg.WASM)
	prog := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	p := playground.New(cfg.WASM, m, tui.Dispatcher(prog.Send), loader,
		playground.WithLogger(logger.Named("playground")))
	defer p.Close(context.Background())
	p.Start(ctx)

	go func() {
		select {
		case <-p.Done():
		case <-ctx.Done():
			return
		}
		if p.State() == playground.StateFailed {
			prog.Send(tui.StatusMsg(tui.StatusUnavailable + ", see " + cfg.Log.File))
		}
	}()

	_, err := prog.Run()
	return err
}
