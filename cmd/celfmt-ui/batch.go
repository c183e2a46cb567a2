package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/celfmt-ui/config"
	"github.com/wippyai/celfmt-ui/meta"
	"github.com/wippyai/celfmt-ui/playground"
)

// batchSurface is a non-interactive playground.Surface.
type batchSurface struct {
	logger  *zap.Logger
	input   string
	output  string
	trigger func()
}

func (s *batchSurface) Input() string           { return s.input }
func (s *batchSurface) SetInput(text string)    { s.input = text }
func (s *batchSurface) SetOutput(text string)   { s.output = text }
func (s *batchSurface) EnableTrigger(fn func()) { s.trigger = fn }

func (s *batchSurface) SetLink(l meta.Link) {
	s.logger.Info("version",
		zap.String("slot", string(l.Slot)),
		zap.String("text", l.Text),
		zap.String("href", l.Href))
}

func runBatch(ctx context.Context, cfg *config.Config, loader playground.Loader, logger *zap.Logger, stdin io.Reader) error {
	src, err := readInput(cfg.Input, stdin)
	if err != nil {
		return err
	}
	s := &batchSurface{logger: logger, input: src}

	// The input replaces the example program.
	opts := []playground.Option{
		playground.WithLogger(logger.Named("playground")),
		playground.WithProgram(""),
	}

	p := playground.New(cfg.WASM, s, playground.Inline, loader, opts...)
	defer p.Close(context.Background())
	p.Start(ctx)

	select {
	case <-p.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if p.State() != playground.StateReady {
		return errFailed
	}

	s.trigger()

	out := s.output
	failed := strings.HasPrefix(out, playground.ErrorPrefix)
	if out == playground.AlreadyFormatted {
		logger.Info(out)
		out = s.input
	}
	if err := writeOutput(cfg.Output, out, failed); err != nil {
		return err
	}
	if failed {
		return errFailed
	}
	return nil
}

// readInput reads path, or stdin when path is empty or "-".
func readInput(path string, stdin io.Reader) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return string(data), nil
}

// writeOutput writes out to path, or stdout when path is empty or "-".
// An error output always goes to stderr and leaves path untouched.
func writeOutput(path, out string, failed bool) error {
	if failed {
		_, err := io.WriteString(os.Stderr, out+"\n")
		return err
	}
	if path == "" || path == "-" {
		_, err := io.WriteString(os.Stdout, out)
		return err
	}
	return os.WriteFile(path, []byte(out), 0o644)
}
