package engine

import (
	"context"
	"crypto/rand"
	stderrors "errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	"github.com/wippyai/celfmt-ui/contract"
	"github.com/wippyai/celfmt-ui/errors"
)

// Start functions, tried in order.
const (
	startReactor = "_initialize"
	startCommand = "_start"
)

var errMemoryNotExported = errors.New(errors.PhaseBind, errors.KindMissingEntry).
	Detail("guest does not export memory").
	Build()

func outOfBoundsRegister(ptr, n uint32) error {
	err := errors.OutOfBounds(errors.PhaseStart, ptr, n)
	err.Path = []string{HostModule, HostRegister}
	return err
}

// Engine hosts formatter guests on a wazero runtime
type Engine struct {
	runtime      wazero.Runtime
	strategy     Strategy
	stdout       io.Writer
	stderr       io.Writer
	importsErr   error
	importsMu    sync.Mutex
	importsReady atomic.Bool
}

// Config holds configuration for engine creation
type Config struct {
	// Stdout and Stderr receive guest output. Nil discards it.
	Stdout io.Writer
	Stderr io.Writer

	// CacheDir enables the file backed compilation cache when writable.
	CacheDir string

	// MemoryLimitPages sets the maximum memory per guest in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	MemoryLimitPages uint32
}

// New creates an engine. cfg may be nil.
func New(ctx context.Context, cfg *Config) (*Engine, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	strategy := SelectStrategy(cfg.CacheDir)

	runtimeCfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	runtimeCfg = strategy.Configure(runtimeCfg)

	Logger().Debug("engine created",
		zap.String("strategy", strategy.Name()),
		zap.Uint32("memory_limit_pages", cfg.MemoryLimitPages))

	return &Engine{
		runtime:  wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		strategy: strategy,
		stdout:   cfg.Stdout,
		stderr:   cfg.Stderr,
	}, nil
}

// Strategy returns the name of the selected compile strategy.
func (e *Engine) Strategy() string {
	return e.strategy.Name()
}

// initImports instantiates the import surface once per runtime.
// Safe for concurrent calls.
func (e *Engine) initImports(ctx context.Context) error {
	if e.importsReady.Load() {
		return nil
	}

	e.importsMu.Lock()
	defer e.importsMu.Unlock()

	if e.importsReady.Load() {
		return nil
	}
	if e.importsErr != nil {
		return e.importsErr
	}

	if _, err := InstantiateWASI(ctx, e.runtime); err != nil {
		e.importsErr = errors.Wrap(errors.PhaseInstantiate, errors.KindInstantiation, err, "instantiate WASI")
		return e.importsErr
	}
	if _, err := InstantiateHost(ctx, e.runtime); err != nil {
		e.importsErr = errors.Wrap(errors.PhaseInstantiate, errors.KindInstantiation, err, "instantiate host module")
		return e.importsErr
	}

	e.importsReady.Store(true)
	return nil
}

// Load compiles the module read from r, instantiates it, runs its start
// function and binds the registered entry points.
func (e *Engine) Load(ctx context.Context, r io.Reader) (*Guest, error) {
	if err := e.initImports(ctx); err != nil {
		return nil, err
	}

	compiled, err := e.strategy.Compile(ctx, e.runtime, r)
	if err != nil {
		return nil, err
	}

	modConfig := wazero.NewModuleConfig().
		WithName("").
		WithStartFunctions().
		WithSysWalltime().
		WithSysNanotime().
		WithRandSource(rand.Reader)
	if e.stdout != nil {
		modConfig = modConfig.WithStdout(e.stdout)
	}
	if e.stderr != nil {
		modConfig = modConfig.WithStderr(e.stderr)
	}

	mod, err := e.runtime.InstantiateModule(ctx, compiled, modConfig)
	if err != nil {
		compiled.Close(ctx)
		return nil, errors.Instantiation(err)
	}

	regs := newRegistrations()
	if err := start(withRegistrations(ctx, regs), mod); err != nil {
		mod.Close(ctx)
		compiled.Close(ctx)
		return nil, err
	}

	g, err := bind(mod, compiled, regs)
	if err != nil {
		mod.Close(ctx)
		compiled.Close(ctx)
		return nil, err
	}

	Logger().Info("guest loaded",
		zap.String("strategy", e.strategy.Name()),
		zap.Strings("entries", regs.names))
	return g, nil
}

// Close releases the runtime, every guest loaded by it, and the strategy.
func (e *Engine) Close(ctx context.Context) error {
	err := e.runtime.Close(ctx)
	if serr := e.strategy.Close(ctx); err == nil {
		err = serr
	}
	return err
}

func start(ctx context.Context, mod api.Module) error {
	name := startReactor
	fn := mod.ExportedFunction(name)
	if fn == nil {
		name = startCommand
		fn = mod.ExportedFunction(name)
	}
	if fn == nil {
		return errors.New(errors.PhaseStart, errors.KindMissingEntry).
			Detail("guest exports neither %s nor %s", startReactor, startCommand).
			Build()
	}

	if _, err := fn.Call(ctx); err != nil {
		var exitErr *sys.ExitError
		if stderrors.As(err, &exitErr) && exitErr.ExitCode() == 0 {
			return errors.New(errors.PhaseStart, errors.KindUnexpectedState).
				Path(name).
				Detail("guest exited during start; entry points require a reactor build").
				Cause(err).
				Build()
		}
		return errors.Trap(errors.PhaseStart, name, err)
	}
	return nil
}

func bind(mod api.Module, compiled wazero.CompiledModule, regs *registrations) (*Guest, error) {
	if regs.err != nil {
		return nil, regs.err
	}

	sigs, err := contract.Default()
	if err != nil {
		return nil, err
	}

	var missing []errors.MissingEntry
	for _, name := range []string{contract.EntryMetadata, contract.EntryFormat} {
		if !regs.has(name) {
			missing = append(missing, errors.MissingEntry{Name: name, Reason: "not registered"})
		}
	}
	if len(missing) > 0 {
		return nil, errors.Wrap(errors.PhaseBind, errors.KindMissingEntry,
			&errors.MissingEntriesError{Entries: missing}, "bind entry points")
	}

	if err := contract.Validate(sigs, mod.ExportedFunctionDefinitions()); err != nil {
		return nil, err
	}

	mem := mod.Memory()
	if mem == nil {
		return nil, errMemoryNotExported
	}

	return &Guest{
		module:   mod,
		compiled: compiled,
		memory:   &WazeroMemory{mem: mem},
		alloc:    newAllocator(mod.ExportedFunction(contract.Realloc)),
		metadata: mod.ExportedFunction(contract.EntryMetadata),
		format:   mod.ExportedFunction(contract.EntryFormat),
		postMeta: mod.ExportedFunction(postReturnPrefix + contract.EntryMetadata),
		postFmt:  mod.ExportedFunction(postReturnPrefix + contract.EntryFormat),
	}, nil
}
