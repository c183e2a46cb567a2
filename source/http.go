package source

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/wippyai/celfmt-ui/errors"
)

// HTTPFetcher issues a single GET for the module.
type HTTPFetcher struct {
	// Client defaults to http.DefaultClient.
	Client *http.Client
}

func (h *HTTPFetcher) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, errors.InvalidInput(errors.PhaseFetch, "build request: "+err.Error())
	}

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Transport(location, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return nil, errors.NotFound(errors.PhaseFetch, "module", location)
		}
		return nil, errors.Transport(location, fmt.Errorf("unexpected status %s", resp.Status))
	}
	return resp.Body, nil
}
