package engine

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero/api"

	celfmtui "github.com/wippyai/celfmt-ui"
	"github.com/wippyai/celfmt-ui/errors"
)

// WazeroMemory wraps wazero memory to implement celfmtui.Memory
type WazeroMemory struct {
	mem api.Memory
}

func (m *WazeroMemory) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseDecode, offset, length)
	}
	return data, nil
}

func (m *WazeroMemory) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return errors.OutOfBounds(errors.PhaseCall, offset, uint32(len(data)))
	}
	return nil
}

func (m *WazeroMemory) ReadU32(offset uint32) (uint32, error) {
	val, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseDecode, offset, 4)
	}
	return val, nil
}

// wazeroAllocator calls the guest's cabi_realloc with a reusable stack.
type wazeroAllocator struct {
	allocFn    api.Function
	currentCtx context.Context
	stackBuf   []uint64
	stackMutex sync.Mutex
}

func newAllocator(fn api.Function) *wazeroAllocator {
	return &wazeroAllocator{allocFn: fn, stackBuf: make([]uint64, 4)}
}

func (a *wazeroAllocator) setContext(ctx context.Context) {
	a.stackMutex.Lock()
	defer a.stackMutex.Unlock()
	a.currentCtx = ctx
}

func (a *wazeroAllocator) Alloc(size, align uint32) (uint32, error) {
	if a.allocFn == nil {
		return 0, errors.AllocationFailed(errors.PhaseCall, size, align, nil)
	}

	a.stackMutex.Lock()
	defer a.stackMutex.Unlock()

	ctx := a.currentCtx
	if ctx == nil {
		ctx = context.Background()
	}

	a.stackBuf[0] = 0
	a.stackBuf[1] = 0
	a.stackBuf[2] = uint64(align)
	a.stackBuf[3] = uint64(size)
	if err := a.allocFn.CallWithStack(ctx, a.stackBuf[:4]); err != nil {
		return 0, errors.AllocationFailed(errors.PhaseCall, size, align, err)
	}
	return uint32(a.stackBuf[0]), nil
}

// Compile-time check that WazeroMemory implements celfmtui.Memory
var _ celfmtui.Memory = (*WazeroMemory)(nil)

// Compile-time check that wazeroAllocator implements celfmtui.Allocator
var _ celfmtui.Allocator = (*wazeroAllocator)(nil)
