package main

import (
	"bytes"
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	celfmtui "github.com/wippyai/celfmt-ui"
	"github.com/wippyai/celfmt-ui/config"
	"github.com/wippyai/celfmt-ui/engine"
	"github.com/wippyai/celfmt-ui/internal/testguest"
	"github.com/wippyai/celfmt-ui/playground"
)

func guestLoader(t *testing.T) playground.Loader {
	t.Helper()
	ctx := context.Background()
	eng, err := engine.New(ctx, nil)
	if err != nil {
		t.Fatalf("engine.New failed: %v", err)
	}
	t.Cleanup(func() { eng.Close(ctx) })

	wasm := testguest.Formatter()
	return playground.LoaderFunc(func(ctx context.Context, _ string) (celfmtui.Formatter, error) {
		g, err := eng.Load(ctx, bytes.NewReader(wasm))
		if err != nil {
			return nil, err
		}
		return g, nil
	})
}

func TestRunBatch(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"reformatted", "a+b", "a + b", false},
		{"already formatted", "a + b", "a + b", false},
		{"formatter error", "!x", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			in := filepath.Join(dir, "in.cel")
			out := filepath.Join(dir, "out.cel")
			if err := os.WriteFile(in, []byte(tc.input), 0o644); err != nil {
				t.Fatal(err)
			}

			cfg := config.Default()
			cfg.Input, cfg.Output = in, out

			err := runBatch(context.Background(), cfg, guestLoader(t), zap.NewNop(), strings.NewReader(""))
			if tc.wantErr {
				if !stderrors.Is(err, errFailed) {
					t.Fatalf("expected errFailed, got %v", err)
				}
				if _, err := os.Stat(out); !os.IsNotExist(err) {
					t.Error("output file should not be written on error")
				}
				return
			}
			if err != nil {
				t.Fatalf("runBatch failed: %v", err)
			}

			got, err := os.ReadFile(out)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestRunBatch_LoadFailure(t *testing.T) {
	loader := playground.LoaderFunc(func(context.Context, string) (celfmtui.Formatter, error) {
		return nil, stderrors.New("not found")
	})
	cfg := config.Default()
	cfg.Output = filepath.Join(t.TempDir(), "out.cel")

	if err := runBatch(context.Background(), cfg, loader, zap.NewNop(), strings.NewReader("a+b")); !stderrors.Is(err, errFailed) {
		t.Fatalf("expected errFailed, got %v", err)
	}
}

func TestRunBatch_LogsVersions(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	dir := t.TempDir()
	in := filepath.Join(dir, "in.cel")
	if err := os.WriteFile(in, []byte("a+b"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Input, cfg.Output = in, filepath.Join(dir, "out.cel")
	if err := runBatch(context.Background(), cfg, guestLoader(t), zap.New(core), strings.NewReader("")); err != nil {
		t.Fatalf("runBatch failed: %v", err)
	}

	if n := logs.FilterMessage("version").Len(); n != 4 {
		t.Errorf("expected 4 version logs, got %d", n)
	}
}

func TestRunBatch_Stdin(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no input flag", ""},
		{"dash", "-"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			out := filepath.Join(dir, "out.cel")

			cfg := config.Default()
			cfg.Input, cfg.Output = tc.input, out

			if err := runBatch(context.Background(), cfg, guestLoader(t), zap.NewNop(), strings.NewReader("a+b")); err != nil {
				t.Fatalf("runBatch failed: %v", err)
			}
			got, err := os.ReadFile(out)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != "a + b" {
				t.Errorf("expected stdin to be formatted to %q, got %q", "a + b", got)
			}
		})
	}
}

func TestRunBatch_StdinPipe(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	go func() {
		w.WriteString("a+b")
		w.Close()
	}()

	out := filepath.Join(t.TempDir(), "out.cel")
	cfg := config.Default()
	cfg.Output = out

	if err := runBatch(context.Background(), cfg, guestLoader(t), zap.NewNop(), r); err != nil {
		t.Fatalf("runBatch failed: %v", err)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "a + b" {
		t.Errorf("expected %q, got %q", "a + b", got)
	}
}

func TestRunBatch_MissingInputFile(t *testing.T) {
	cfg := config.Default()
	cfg.Input = filepath.Join(t.TempDir(), "missing.cel")

	err := runBatch(context.Background(), cfg, guestLoader(t), zap.NewNop(), strings.NewReader(""))
	if err == nil || stderrors.Is(err, errFailed) {
		t.Fatalf("expected read error, got %v", err)
	}
}
