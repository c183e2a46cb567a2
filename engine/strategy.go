package engine

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/wippyai/celfmt-ui/errors"
)

// Strategy loads and compiles a module from its byte stream.
// One strategy is selected per engine by SelectStrategy.
type Strategy interface {
	Name() string
	// Configure applies strategy specific runtime options.
	Configure(cfg wazero.RuntimeConfig) wazero.RuntimeConfig
	Compile(ctx context.Context, rt wazero.Runtime, r io.Reader) (wazero.CompiledModule, error)
	Close(ctx context.Context) error
}

const (
	StrategyDirect = "direct"
	StrategyCached = "cached"
)

// SelectStrategy picks the cached strategy when cacheDir is set and
// writable, and the direct strategy otherwise.
func SelectStrategy(cacheDir string) Strategy {
	if cacheDir == "" {
		return directStrategy{}
	}

	if err := probeWritable(cacheDir); err != nil {
		Logger().Warn("compilation cache unavailable, compiling directly",
			zap.String("dir", cacheDir),
			zap.Error(err))
		return directStrategy{}
	}

	cache, err := wazero.NewCompilationCacheWithDir(cacheDir)
	if err != nil {
		Logger().Warn("compilation cache unavailable, compiling directly",
			zap.String("dir", cacheDir),
			zap.Error(err))
		return directStrategy{}
	}
	return &cachedStrategy{cache: cache, dir: cacheDir}
}

func probeWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(filepath.Clean(name))
}

// directStrategy buffers the stream and compiles it without caching.
type directStrategy struct{}

func (directStrategy) Name() string { return StrategyDirect }

func (directStrategy) Configure(cfg wazero.RuntimeConfig) wazero.RuntimeConfig { return cfg }

func (directStrategy) Compile(ctx context.Context, rt wazero.Runtime, r io.Reader) (wazero.CompiledModule, error) {
	return compileStream(ctx, rt, r)
}

func (directStrategy) Close(context.Context) error { return nil }

// cachedStrategy compiles through a file backed compilation cache shared
// across processes using the same directory.
type cachedStrategy struct {
	cache wazero.CompilationCache
	dir   string
}

func (s *cachedStrategy) Name() string { return StrategyCached }

func (s *cachedStrategy) Configure(cfg wazero.RuntimeConfig) wazero.RuntimeConfig {
	return cfg.WithCompilationCache(s.cache)
}

func (s *cachedStrategy) Compile(ctx context.Context, rt wazero.Runtime, r io.Reader) (wazero.CompiledModule, error) {
	return compileStream(ctx, rt, r)
}

func (s *cachedStrategy) Close(ctx context.Context) error {
	return s.cache.Close(ctx)
}

func compileStream(ctx context.Context, rt wazero.Runtime, r io.Reader) (wazero.CompiledModule, error) {
	wasmBytes, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Transport("module stream", err)
	}
	if len(wasmBytes) == 0 {
		return nil, errors.InvalidInput(errors.PhaseCompile, "empty module")
	}

	compiled, err := rt.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseCompile, errors.KindInvalidData, err, "compile module")
	}
	return compiled, nil
}
