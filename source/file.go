package source

import (
	"context"
	"io"
	"net/url"
	"os"

	"github.com/wippyai/celfmt-ui/errors"
)

// FileFetcher opens local files by path or file:// URL.
type FileFetcher struct{}

func (FileFetcher) Open(_ context.Context, location string) (io.ReadCloser, error) {
	path := location
	if Scheme(location) == "file" {
		u, err := url.Parse(location)
		if err != nil {
			return nil, errors.InvalidInput(errors.PhaseFetch, "parse file location: "+err.Error())
		}
		path = u.Path
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.PhaseFetch, errors.KindNotFound).
				Detail("module file %q not found", path).
				Cause(err).
				Build()
		}
		return nil, errors.Transport(location, err)
	}
	return f, nil
}
