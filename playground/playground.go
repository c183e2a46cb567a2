package playground

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	celfmtui "github.com/wippyai/celfmt-ui"
	"github.com/wippyai/celfmt-ui/meta"
)

// DefaultProgram is placed in the input once the formatter is ready.
const DefaultProgram = `// Example CEL program
bytes(get(state.url).Body).as(body, {
  "events": [body.decode_json()]
})
`

// Output messages.
const (
	ErrorPrefix      = "‼️ ERROR\n"
	AlreadyFormatted = "✅ CEL program is already formatted."
)

// State is the lifecycle state of a Playground.
type State int32

const (
	StateDisabled State = iota
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisabled:
		return "disabled"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Playground connects a formatter guest to a surface.
type Playground struct {
	location string
	surface  Surface
	dispatch Dispatcher
	loader   Loader
	logger   *zap.Logger
	program  string

	state     atomic.Int32
	startOnce sync.Once
	doneOnce  sync.Once
	done      chan struct{}

	mu        sync.Mutex
	ctx       context.Context
	formatter celfmtui.Formatter
	closed    bool
}

// Option configures a Playground.
type Option func(*Playground)

// WithLogger sets the diagnostic logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Playground) {
		p.logger = l
	}
}

// WithProgram replaces the example program. An empty program leaves the
// input untouched.
func WithProgram(program string) Option {
	return func(p *Playground) {
		p.program = program
	}
}

// New creates a Playground in the disabled state.
func New(location string, surface Surface, dispatch Dispatcher, loader Loader, opts ...Option) *Playground {
	p := &Playground{
		location: location,
		surface:  surface,
		dispatch: dispatch,
		loader:   loader,
		logger:   zap.NewNop(),
		program:  DefaultProgram,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the current lifecycle state.
func (p *Playground) State() State {
	return State(p.state.Load())
}

// Done is closed once initialization has finished, successfully or not,
// or the playground has been closed.
func (p *Playground) Done() <-chan struct{} {
	return p.done
}

func (p *Playground) finish() {
	p.doneOnce.Do(func() { close(p.done) })
}

// Start begins loading the formatter in the background.
// Only the first call has an effect.
func (p *Playground) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		p.mu.Lock()
		p.ctx = ctx
		p.mu.Unlock()
		go p.load(ctx)
	})
}

func (p *Playground) load(ctx context.Context) {
	f, err := p.loader.Load(ctx, p.location)
	if err != nil {
		p.logger.Error("failed to load formatter",
			zap.String("location", p.location),
			zap.Error(err))
		p.state.Store(int32(StateFailed))
		p.finish()
		return
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		f.Close(ctx)
		p.finish()
		return
	}
	p.formatter = f
	p.mu.Unlock()

	p.logger.Info("formatter loaded", zap.String("location", p.location))
	p.dispatch.Dispatch(func() {
		defer p.finish()
		p.ready(ctx, f)
	})
}

// ready renders metadata and enables the trigger. Runs on the UI loop.
func (p *Playground) ready(ctx context.Context, f celfmtui.Formatter) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return
	}

	md, err := f.Metadata(ctx)
	if err != nil {
		p.logger.Warn("failed to read build metadata", zap.Error(err))
		md = nil
	}
	for _, l := range meta.Links(md) {
		p.surface.SetLink(l)
	}

	p.state.Store(int32(StateReady))
	p.surface.EnableTrigger(p.Apply)

	if p.program != "" {
		p.surface.SetInput(p.program)
	}
}

// Apply formats the current input and shows the outcome.
// It has no effect unless the playground is ready.
func (p *Playground) Apply() {
	if p.State() != StateReady {
		return
	}

	p.mu.Lock()
	f, ctx := p.formatter, p.ctx
	p.mu.Unlock()
	if f == nil {
		return
	}

	src := p.surface.Input()
	res, err := f.Format(ctx, src)
	if err != nil {
		p.logger.Error("format call failed", zap.Error(err))
	}
	p.surface.SetOutput(Render(src, res, err))
}

// Render returns the output shown for formatting src.
func Render(src string, res celfmtui.FormatResult, err error) string {
	switch {
	case err != nil:
		return ErrorPrefix + err.Error()
	case res.Failed():
		return ErrorPrefix + res.Error
	case res.Formatted == src:
		return AlreadyFormatted
	default:
		return res.Formatted
	}
}

// Close releases the formatter. Later activations have no effect.
func (p *Playground) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	p.finish()

	if p.formatter == nil {
		return nil
	}
	err := p.formatter.Close(ctx)
	p.formatter = nil
	return err
}
