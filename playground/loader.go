package playground

import (
	"context"

	celfmtui "github.com/wippyai/celfmt-ui"
	"github.com/wippyai/celfmt-ui/engine"
	"github.com/wippyai/celfmt-ui/source"
)

// Loader fetches and instantiates the formatter at a location.
type Loader interface {
	Load(ctx context.Context, location string) (celfmtui.Formatter, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, location string) (celfmtui.Formatter, error)

func (f LoaderFunc) Load(ctx context.Context, location string) (celfmtui.Formatter, error) {
	return f(ctx, location)
}

// EngineLoader streams the module from a fetcher into an engine.
type EngineLoader struct {
	Fetcher source.Fetcher
	Engine  *engine.Engine
}

func (l *EngineLoader) Load(ctx context.Context, location string) (celfmtui.Formatter, error) {
	rc, err := l.Fetcher.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	g, err := l.Engine.Load(ctx, rc)
	if err != nil {
		return nil, err
	}
	return g, nil
}
