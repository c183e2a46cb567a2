package playground

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	celfmtui "github.com/wippyai/celfmt-ui"
	"github.com/wippyai/celfmt-ui/engine"
	"github.com/wippyai/celfmt-ui/internal/testguest"
	"github.com/wippyai/celfmt-ui/meta"
	"github.com/wippyai/celfmt-ui/source"
)

type fakeSurface struct {
	mu      sync.Mutex
	input   string
	output  string
	links   []meta.Link
	trigger func()
	outputs int
}

func (s *fakeSurface) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

func (s *fakeSurface) SetInput(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.input = text
}

func (s *fakeSurface) SetOutput(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.output = text
	s.outputs++
}

func (s *fakeSurface) SetLink(l meta.Link) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links = append(s.links, l)
}

func (s *fakeSurface) EnableTrigger(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trigger = fn
}

// click activates the trigger like a user would.
func (s *fakeSurface) click(t *testing.T) {
	t.Helper()
	s.mu.Lock()
	fn := s.trigger
	s.mu.Unlock()
	if fn == nil {
		t.Fatal("trigger not enabled")
	}
	fn()
}

type fakeFormatter struct {
	md     celfmtui.BuildMetadata
	mdErr  error
	format func(src string) (celfmtui.FormatResult, error)
	calls  int
	closed bool
}

func (f *fakeFormatter) Metadata(context.Context) (celfmtui.BuildMetadata, error) {
	return f.md, f.mdErr
}

func (f *fakeFormatter) Format(_ context.Context, src string) (celfmtui.FormatResult, error) {
	f.calls++
	return f.format(src)
}

func (f *fakeFormatter) Close(context.Context) error {
	f.closed = true
	return nil
}

// spacer formats "a+b" as "a + b" and rejects "!" inputs.
func spacer(src string) (celfmtui.FormatResult, error) {
	switch src {
	case "a+b":
		return celfmtui.FormatResult{Formatted: "a + b"}, nil
	case "!":
		return celfmtui.FormatResult{Error: "unexpected token"}, nil
	default:
		return celfmtui.FormatResult{Formatted: src}, nil
	}
}

func staticLoader(f celfmtui.Formatter) Loader {
	return LoaderFunc(func(context.Context, string) (celfmtui.Formatter, error) {
		return f, nil
	})
}

func startReady(t *testing.T, f *fakeFormatter) (*Playground, *fakeSurface) {
	t.Helper()
	s := &fakeSurface{}
	p := New("formatter.wasm", s, Inline, staticLoader(f))
	p.Start(context.Background())
	<-p.Done()
	if p.State() != StateReady {
		t.Fatalf("expected ready, got %s", p.State())
	}
	return p, s
}

func TestPlayground_AllKeysPresent(t *testing.T) {
	_, s := startReady(t, &fakeFormatter{
		md: celfmtui.BuildMetadata{
			"commit": "abcdef0123456789",
			"mito":   "v1.15.0",
			"cel-go": "v0.22.1",
			"go":     "1.25.4",
		},
		format: spacer,
	})

	want := []meta.Link{
		{Slot: meta.SlotCelfmt, Text: "abcdef0", Href: "https://github.com/elastic/celfmt/commits/abcdef0123456789"},
		{Slot: meta.SlotMito, Text: "v1.15.0", Href: "https://pkg.go.dev/github.com/elastic/mito@v1.15.0"},
		{Slot: meta.SlotCELGo, Text: "v0.22.1", Href: "https://pkg.go.dev/github.com/google/cel-go@v0.22.1"},
		{Slot: meta.SlotGo, Text: "1.25.4", Href: "https://pkg.go.dev/std@go1.25.4"},
	}
	if diff := cmp.Diff(want, s.links); diff != "" {
		t.Errorf("links mismatch (-want +got):\n%s", diff)
	}
	if s.input != DefaultProgram {
		t.Errorf("expected default program in input, got %q", s.input)
	}
}

func TestPlayground_AllKeysAbsent(t *testing.T) {
	_, s := startReady(t, &fakeFormatter{md: celfmtui.BuildMetadata{}, format: spacer})

	if len(s.links) != 0 {
		t.Errorf("expected no links, got %v", s.links)
	}
	if s.trigger == nil {
		t.Error("trigger should be enabled")
	}
}

func TestPlayground_MetadataFailure(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	f := &fakeFormatter{mdErr: stderrors.New("trap"), format: spacer}
	s := &fakeSurface{}
	p := New("formatter.wasm", s, Inline, staticLoader(f), WithLogger(zap.New(core)))
	p.Start(context.Background())
	<-p.Done()

	if p.State() != StateReady {
		t.Fatalf("expected ready, got %s", p.State())
	}
	if len(s.links) != 0 {
		t.Errorf("expected no links, got %v", s.links)
	}
	if logs.FilterMessage("failed to read build metadata").Len() != 1 {
		t.Errorf("expected metadata failure to be logged, got %v", logs.All())
	}
}

func TestPlayground_Scenarios(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"reformatted", "a+b", "a + b"},
		{"formatter error", "!", "‼️ ERROR\nunexpected token"},
		{"already formatted", "a + b", "✅ CEL program is already formatted."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, s := startReady(t, &fakeFormatter{format: spacer})
			s.SetInput(tc.input)
			s.click(t)
			if s.output != tc.want {
				t.Errorf("expected %q, got %q", tc.want, s.output)
			}
		})
	}
}

func TestPlayground_Idempotent(t *testing.T) {
	_, s := startReady(t, &fakeFormatter{format: spacer})
	s.SetInput("a+b")

	s.click(t)
	first := s.output
	s.click(t)
	if s.output != first {
		t.Errorf("outputs differ: %q then %q", first, s.output)
	}
}

func TestPlayground_RoundTrip(t *testing.T) {
	_, s := startReady(t, &fakeFormatter{format: spacer})
	s.SetInput("a+b")
	s.click(t)

	s.SetInput(s.output)
	s.click(t)
	if s.output != AlreadyFormatted {
		t.Errorf("expected confirmation, got %q", s.output)
	}
}

func TestPlayground_HostFailure(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	f := &fakeFormatter{format: func(string) (celfmtui.FormatResult, error) {
		return celfmtui.FormatResult{}, stderrors.New("wasm trap: unreachable")
	}}
	s := &fakeSurface{}
	p := New("formatter.wasm", s, Inline, staticLoader(f), WithLogger(zap.New(core)))
	p.Start(context.Background())
	<-p.Done()

	s.click(t)
	if want := ErrorPrefix + "wasm trap: unreachable"; s.output != want {
		t.Errorf("expected %q, got %q", want, s.output)
	}
	if logs.FilterMessage("format call failed").Len() != 1 {
		t.Errorf("expected host failure to be logged, got %v", logs.All())
	}
}

func TestPlayground_LoadFailure(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	s := &fakeSurface{}
	loader := LoaderFunc(func(context.Context, string) (celfmtui.Formatter, error) {
		return nil, stderrors.New("404")
	})
	p := New("missing.wasm", s, Inline, loader, WithLogger(zap.New(core)))
	p.Start(context.Background())
	<-p.Done()

	if p.State() != StateFailed {
		t.Fatalf("expected failed, got %s", p.State())
	}
	if s.trigger != nil {
		t.Error("trigger should stay disabled")
	}
	p.Apply()
	if s.outputs != 0 {
		t.Errorf("expected no output, got %q", s.output)
	}
	if s.input != "" {
		t.Errorf("expected input untouched, got %q", s.input)
	}

	entries := logs.FilterMessage("failed to load formatter").All()
	if len(entries) != 1 {
		t.Fatalf("expected one error log, got %v", logs.All())
	}
	if got := entries[0].ContextMap()["location"]; got != "missing.wasm" {
		t.Errorf("expected location field, got %v", got)
	}
}

func TestPlayground_ApplyBeforeReady(t *testing.T) {
	pending := make(chan func(), 1)
	queue := DispatchFunc(func(fn func()) { pending <- fn })
	f := &fakeFormatter{format: spacer}

	s := &fakeSurface{input: "a+b"}
	p := New("formatter.wasm", s, queue, staticLoader(f))

	p.Apply()
	p.Start(context.Background())

	// Loaded but not yet run on the UI loop.
	ready := <-pending
	p.Apply()
	if s.outputs != 0 || f.calls != 0 {
		t.Fatalf("activation before ready had an effect: output %q, calls %d", s.output, f.calls)
	}
	if p.State() != StateDisabled {
		t.Fatalf("expected disabled, got %s", p.State())
	}

	ready()
	<-p.Done()
	if p.State() != StateReady {
		t.Fatalf("expected ready, got %s", p.State())
	}
}

func TestPlayground_CloseBeforeReady(t *testing.T) {
	pending := make(chan func(), 1)
	queue := DispatchFunc(func(fn func()) { pending <- fn })
	f := &fakeFormatter{format: spacer}

	s := &fakeSurface{}
	p := New("formatter.wasm", s, queue, staticLoader(f))
	p.Start(context.Background())
	ready := <-pending

	// The UI loop quit before running ready.
	if err := p.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	select {
	case <-p.Done():
	default:
		t.Fatal("Done should be closed after Close")
	}
	if !f.closed {
		t.Error("formatter should be closed")
	}

	ready()
	if s.trigger != nil {
		t.Error("trigger enabled after close")
	}
	if p.State() == StateReady {
		t.Error("closed playground became ready")
	}
}

func TestPlayground_CloseBeforeStart(t *testing.T) {
	p := New("formatter.wasm", &fakeSurface{}, Inline, staticLoader(&fakeFormatter{format: spacer}))
	if err := p.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	<-p.Done()
}

func TestPlayground_WithProgram(t *testing.T) {
	s := &fakeSurface{input: "user input"}
	p := New("formatter.wasm", s, Inline, staticLoader(&fakeFormatter{format: spacer}), WithProgram(""))
	p.Start(context.Background())
	<-p.Done()

	if s.input != "user input" {
		t.Errorf("expected input untouched, got %q", s.input)
	}
}

func TestPlayground_Close(t *testing.T) {
	f := &fakeFormatter{format: spacer}
	p, s := startReady(t, f)

	if err := p.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !f.closed {
		t.Error("formatter should be closed")
	}

	s.SetInput("a+b")
	s.click(t)
	if s.outputs != 0 {
		t.Errorf("activation after close had an effect: %q", s.output)
	}
}

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		src  string
		res  celfmtui.FormatResult
		err  error
		want string
	}{
		{"formatted", "a+b", celfmtui.FormatResult{Formatted: "a + b"}, nil, "a + b"},
		{"unchanged", "a", celfmtui.FormatResult{Formatted: "a"}, nil, AlreadyFormatted},
		{"error wins", "a", celfmtui.FormatResult{Error: "bad", Formatted: "b"}, nil, ErrorPrefix + "bad"},
		{"host error", "a", celfmtui.FormatResult{}, stderrors.New("trap"), ErrorPrefix + "trap"},
		{"empty input", "", celfmtui.FormatResult{}, nil, AlreadyFormatted},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Render(tc.src, tc.res, tc.err); got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		StateDisabled: "disabled",
		StateReady:    "ready",
		StateFailed:   "failed",
		State(42):     "unknown",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("State(%d).String() = %q, want %q", s, s.String(), want)
		}
	}
}

func TestPlayground_Engine(t *testing.T) {
	ctx := context.Background()
	e, err := engine.New(ctx, nil)
	if err != nil {
		t.Fatalf("engine.New failed: %v", err)
	}
	defer e.Close(ctx)

	wasm := testguest.Formatter()
	loader := &EngineLoader{
		Fetcher: source.FetcherFunc(func(context.Context, string) (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(wasm)), nil
		}),
		Engine: e,
	}

	s := &fakeSurface{}
	p := New("mem://formatter.wasm", s, Inline, loader)
	p.Start(ctx)
	<-p.Done()
	defer p.Close(ctx)

	if p.State() != StateReady {
		t.Fatalf("expected ready, got %s", p.State())
	}
	if len(s.links) != 4 {
		t.Errorf("expected 4 links, got %v", s.links)
	}

	tests := []struct {
		input string
		want  string
	}{
		{"a+b", "a + b"},
		{"!x", ErrorPrefix + testguest.ErrorMessage},
		{"a + b", AlreadyFormatted},
	}
	for _, tc := range tests {
		s.SetInput(tc.input)
		s.click(t)
		if s.output != tc.want {
			t.Errorf("input %q: expected %q, got %q", tc.input, tc.want, s.output)
		}
	}
}

func TestPlayground_EngineDefaultProgram(t *testing.T) {
	ctx := context.Background()
	e, err := engine.New(ctx, nil)
	if err != nil {
		t.Fatalf("engine.New failed: %v", err)
	}
	defer e.Close(ctx)

	// A guest that reports the example program as already formatted.
	result, err := json.Marshal(celfmtui.FormatResult{Formatted: DefaultProgram})
	if err != nil {
		t.Fatal(err)
	}
	wasm := testguest.Build(testguest.Options{FormatResult: string(result)})

	g, err := e.Load(ctx, bytes.NewReader(wasm))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer g.Close(ctx)

	res, err := g.Format(ctx, DefaultProgram)
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	if got := Render(DefaultProgram, res, err); got != AlreadyFormatted {
		t.Errorf("expected confirmation, got %q", got)
	}

	// Through the surface as well.
	loader := LoaderFunc(func(context.Context, string) (celfmtui.Formatter, error) {
		return g, nil
	})
	s := &fakeSurface{}
	p := New("formatter.wasm", s, Inline, loader)
	p.Start(ctx)
	<-p.Done()

	s.click(t)
	if s.output != AlreadyFormatted {
		t.Errorf("expected confirmation for the example program, got %q", s.output)
	}
}
