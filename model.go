package celfmtui

import "context"

// Metadata keys reported by the guest.
const (
	KeyCommit = "commit"
	KeyMito   = "mito"
	KeyCELGo  = "cel-go"
	KeyGo     = "go"
)

// BuildMetadata maps a build component name to its version string.
// Keys are optional; a present key always carries a non-empty value.
type BuildMetadata map[string]string

// Lookup returns the value for key and whether it is present and non-empty.
func (m BuildMetadata) Lookup(key string) (string, bool) {
	v, ok := m[key]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// FormatResult is the outcome of a single format call.
// Exactly one of Error and Formatted is meaningful.
type FormatResult struct {
	Error     string `json:"error,omitempty"`
	Formatted string `json:"formatted,omitempty"`
}

// Failed reports whether the result carries an error.
func (r FormatResult) Failed() bool {
	return r.Error != ""
}

// Formatter is the pair of entry points a loaded guest exposes.
type Formatter interface {
	Metadata(ctx context.Context) (BuildMetadata, error)
	Format(ctx context.Context, src string) (FormatResult, error)
	Close(ctx context.Context) error
}
