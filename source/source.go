package source

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/celfmt-ui/errors"
)

// Fetcher opens the asset at a location.
type Fetcher interface {
	Open(ctx context.Context, location string) (io.ReadCloser, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, location string) (io.ReadCloser, error)

func (f FetcherFunc) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	return f(ctx, location)
}

// Resolver dispatches a location to the fetcher registered for its scheme.
type Resolver struct {
	schemes map[string]Fetcher
	logger  *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHTTPClient sets the client used for http and https locations.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) {
		h := &HTTPFetcher{Client: c}
		r.schemes["http"] = h
		r.schemes["https"] = h
	}
}

// WithS3 enables s3:// locations.
func WithS3(f *S3Fetcher) Option {
	return func(r *Resolver) {
		r.schemes["s3"] = f
	}
}

// WithScheme registers a fetcher for a custom scheme.
func WithScheme(scheme string, f Fetcher) Option {
	return func(r *Resolver) {
		r.schemes[strings.ToLower(scheme)] = f
	}
}

// WithLogger sets the logger used for fetch diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// New creates a resolver for file and http(s) locations plus any optional schemes.
func New(opts ...Option) *Resolver {
	h := &HTTPFetcher{}
	r := &Resolver{
		schemes: map[string]Fetcher{
			"":      FileFetcher{},
			"file":  FileFetcher{},
			"http":  h,
			"https": h,
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open implements Fetcher.
func (r *Resolver) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	if strings.TrimSpace(location) == "" {
		return nil, errors.InvalidInput(errors.PhaseFetch, "empty module location")
	}

	scheme := Scheme(location)
	f, ok := r.schemes[scheme]
	if !ok {
		return nil, errors.Unsupported(errors.PhaseFetch, "location scheme "+scheme)
	}

	r.logger.Debug("fetching module", zap.String("location", location), zap.String("scheme", scheme))
	return f.Open(ctx, location)
}

// Scheme returns the lower-cased scheme of location, or "" for a plain path.
func Scheme(location string) string {
	u, err := url.Parse(location)
	if err != nil {
		return ""
	}
	// Single letter schemes are drive letters.
	if len(u.Scheme) == 1 {
		return ""
	}
	return strings.ToLower(u.Scheme)
}
