package engine

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	celfmtui "github.com/wippyai/celfmt-ui"
	"github.com/wippyai/celfmt-ui/contract"
	"github.com/wippyai/celfmt-ui/errors"
)

// postReturnPrefix names the optional export called after a result has
// been lifted, letting the guest release it.
const postReturnPrefix = "cabi_post_"

// Guest is a started formatter module with bound entry points.
// Calls are serialized; a second caller blocks until the first returns.
type Guest struct {
	module   api.Module
	compiled wazero.CompiledModule
	memory   celfmtui.Memory
	alloc    *wazeroAllocator
	metadata api.Function
	format   api.Function
	postMeta api.Function
	postFmt  api.Function
	mu       sync.Mutex
	closed   bool
}

// Metadata calls the metadata entry point.
// Non-string and empty values are dropped.
func (g *Guest) Metadata(ctx context.Context) (celfmtui.BuildMetadata, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil, errors.NotInitialized(errors.PhaseCall, "guest")
	}

	raw, err := g.callString(ctx, contract.EntryMetadata, g.metadata, g.postMeta)
	if err != nil {
		return nil, err
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "decode metadata")
	}

	md := make(celfmtui.BuildMetadata, len(fields))
	for k, v := range fields {
		if s, ok := v.(string); ok && s != "" {
			md[k] = s
		}
	}
	return md, nil
}

// Format calls the format entry point with src.
// A formatter error is reported in the result, not as an error; the error
// return is reserved for host side failures.
func (g *Guest) Format(ctx context.Context, src string) (celfmtui.FormatResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return celfmtui.FormatResult{}, errors.NotInitialized(errors.PhaseCall, "guest")
	}

	g.alloc.setContext(ctx)
	defer g.alloc.setContext(nil)

	ptr, n, err := lowerString(g.memory, g.alloc, src)
	if err != nil {
		return celfmtui.FormatResult{}, err
	}

	raw, err := g.callString(ctx, contract.EntryFormat, g.format, g.postFmt, uint64(ptr), uint64(n))
	if err != nil {
		return celfmtui.FormatResult{}, err
	}

	var res celfmtui.FormatResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return celfmtui.FormatResult{}, errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "decode format result")
	}
	return res, nil
}

// Close releases the guest module.
func (g *Guest) Close(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}
	g.closed = true

	err := g.module.Close(ctx)
	if cerr := g.compiled.Close(ctx); err == nil {
		err = cerr
	}
	return err
}

// lowerString copies s into memory obtained from alloc.
func lowerString(mem celfmtui.Memory, alloc celfmtui.Allocator, s string) (uint32, uint32, error) {
	n := uint32(len(s))
	ptr, err := alloc.Alloc(n, 1)
	if err != nil {
		return 0, 0, err
	}
	if n > 0 {
		if err := mem.Write(ptr, []byte(s)); err != nil {
			return 0, 0, err
		}
	}
	return ptr, n, nil
}

// callString calls fn and lifts the string its return pointer refers to.
func (g *Guest) callString(ctx context.Context, name string, fn, post api.Function, args ...uint64) (string, error) {
	results, err := fn.Call(ctx, args...)
	if err != nil {
		return "", errors.Trap(errors.PhaseCall, name, err)
	}
	if len(results) != 1 {
		return "", errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Path(name).
			Detail("expected 1 result, got %d", len(results)).
			Build()
	}

	retptr := api.DecodeU32(results[0])
	s, err := liftString(g.memory, retptr)
	if err != nil {
		return "", err
	}

	if post != nil {
		if _, err := post.Call(ctx, results[0]); err != nil {
			return "", errors.Trap(errors.PhaseCall, postReturnPrefix+name, err)
		}
	}
	return s, nil
}

// liftString reads the (ptr, len) pair at retptr and copies the string out.
func liftString(mem celfmtui.Memory, retptr uint32) (string, error) {
	ptr, err := mem.ReadU32(retptr)
	if err != nil {
		return "", err
	}
	n, err := mem.ReadU32(retptr + 4)
	if err != nil {
		return "", err
	}
	data, err := mem.Read(ptr, n)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

var _ celfmtui.Formatter = (*Guest)(nil)
