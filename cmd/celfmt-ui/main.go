package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/celfmt-ui/config"
	"github.com/wippyai/celfmt-ui/engine"
	"github.com/wippyai/celfmt-ui/playground"
	"github.com/wippyai/celfmt-ui/source"
)

// errFailed reports a run that already explained itself in its output.
var errFailed = stderrors.New("formatting failed")

func main() {
	if err := run(os.Args[1:]); err != nil {
		if stderrors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		if !stderrors.Is(err, errFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}

	interactive := !cfg.Batch() &&
		term.IsTerminal(int(os.Stdin.Fd())) &&
		term.IsTerminal(int(os.Stdout.Fd()))
	if interactive && cfg.Log.File == "" {
		cfg.Log.File = filepath.Join(os.TempDir(), "celfmt-ui.log")
	}

	logger, err := cfg.Log.NewLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()
	engine.SetLogger(logger.Named("engine"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	resolver, err := newResolver(cfg, logger)
	if err != nil {
		return err
	}

	// Guest output must not interleave with the TUI or a stdout result.
	var guestOut io.Writer = os.Stderr
	if interactive {
		guestOut = nil
	}
	eng, err := engine.New(ctx, &engine.Config{
		Stdout:           guestOut,
		Stderr:           guestOut,
		CacheDir:         cfg.CacheDir,
		MemoryLimitPages: cfg.MemoryLimitPages,
	})
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	defer eng.Close(context.Background())

	loader := &playground.EngineLoader{Fetcher: resolver, Engine: eng}
	if interactive {
		return runInteractive(ctx, cfg, loader, logger)
	}
	return runBatch(ctx, cfg, loader, logger, os.Stdin)
}

func newResolver(cfg *config.Config, logger *zap.Logger) (*source.Resolver, error) {
	opts := []source.Option{source.WithLogger(logger.Named("source"))}
	if cfg.S3.Endpoint != "" {
		s3, err := source.NewS3Fetcher(source.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			UseSSL:    cfg.S3.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		opts = append(opts, source.WithS3(s3))
	}
	return source.New(opts...), nil
}
