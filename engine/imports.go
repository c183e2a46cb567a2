package engine

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"
)

// HostModule is the import namespace guests use to register entry points.
const HostModule = "celfmt"

// HostRegister is the function guests call once per entry point:
// register(name_ptr, name_len).
const HostRegister = "register"

// InstantiateWASI instantiates the WASI preview1 import surface.
func InstantiateWASI(ctx context.Context, r wazero.Runtime) (api.Module, error) {
	builder := r.NewHostModuleBuilder(wasi_snapshot_preview1.ModuleName)
	wasi_snapshot_preview1.NewFunctionExporter().ExportFunctions(builder)
	return builder.Instantiate(ctx)
}

// InstantiateHost instantiates the celfmt host module.
func InstantiateHost(ctx context.Context, r wazero.Runtime) (api.Module, error) {
	return r.NewHostModuleBuilder(HostModule).
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(registerEntry),
			[]api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, nil).
		WithParameterNames("name_ptr", "name_len").
		Export(HostRegister).
		Instantiate(ctx)
}

// registrations collects the entry points a guest registers while starting.
type registrations struct {
	mu    sync.Mutex
	seen  map[string]bool
	names []string
	err   error
}

func newRegistrations() *registrations {
	return &registrations{seen: make(map[string]bool)}
}

func (r *registrations) add(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen[name] {
		return
	}
	r.seen[name] = true
	r.names = append(r.names, name)
}

func (r *registrations) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err == nil {
		r.err = err
	}
}

func (r *registrations) has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seen[name]
}

type registrationsKey struct{}

func withRegistrations(ctx context.Context, r *registrations) context.Context {
	return context.WithValue(ctx, registrationsKey{}, r)
}

func registrationsFrom(ctx context.Context) *registrations {
	r, _ := ctx.Value(registrationsKey{}).(*registrations)
	return r
}

func registerEntry(ctx context.Context, mod api.Module, stack []uint64) {
	ptr := api.DecodeU32(stack[0])
	n := api.DecodeU32(stack[1])

	regs := registrationsFrom(ctx)
	if regs == nil {
		Logger().Warn("entry point registered outside guest start, ignoring",
			zap.String("module", mod.Name()))
		return
	}

	mem := mod.Memory()
	if mem == nil {
		regs.fail(errMemoryNotExported)
		return
	}
	data, ok := mem.Read(ptr, n)
	if !ok {
		regs.fail(outOfBoundsRegister(ptr, n))
		return
	}

	name := string(data)
	Logger().Debug("entry point registered", zap.String("name", name))
	regs.add(name)
}
