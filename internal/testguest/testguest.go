// Package testguest builds small formatter guests for tests.
//
// The default guest behaves like a tiny formatter:
//
//	"!..."    -> {"error":"unexpected token"}
//	"?+..."   -> {"formatted":"a + b"}
//	otherwise -> {"formatted":<input>}
//
// so "a+b" formats to "a + b" and "a + b" is already formatted. The echo
// path does not escape its input; keep test inputs free of quotes,
// backslashes and control characters.
package testguest

// DefaultMetadata is returned by the metadata entry point unless overridden.
const DefaultMetadata = `{"commit":"0123456789abcdef0123456789abcdef01234567","mito":"v1.15.0","cel-go":"v0.22.1","go":"1.25.4"}`

// ErrorMessage is the formatter error reported for inputs starting with '!'.
const ErrorMessage = "unexpected token"

// Options tweaks the generated guest.
type Options struct {
	// Metadata is the raw JSON metadata result. Empty means DefaultMetadata.
	Metadata string
	// FormatResult, when set, is returned verbatim by format for any input.
	FormatResult string
	// Register lists the entry names registered at start.
	// Nil registers metadata and format.
	Register []string
	// Command exports _start instead of _initialize.
	Command bool
	// ExitOnStart makes the start function call proc_exit(0).
	ExitOnStart bool
	// TrapOnStart makes the start function trap.
	TrapOnStart bool
	// MetadataI64 gives metadata the wrong core type () -> i64.
	MetadataI64 bool
	// OmitFormatExport leaves format unexported.
	OmitFormatExport bool
}

// Memory layout.
const (
	retArea   = 8
	dataStart = 64
	heapStart = 4096
)

// Formatter returns the default guest.
func Formatter() []byte {
	return Build(Options{})
}

// Build encodes a guest module.
func Build(opts Options) []byte {
	if opts.Metadata == "" {
		opts.Metadata = DefaultMetadata
	}
	if opts.Register == nil {
		opts.Register = []string{"metadata", "format"}
	}

	m := &module{memoryMin: 1}

	// Static data.
	next := int32(dataStart)
	place := func(s string) (int32, int32) {
		off := next
		m.data = append(m.data, dataSegment{offset: off, init: []byte(s)})
		next += int32(len(s))
		return off, int32(len(s))
	}

	type span struct{ off, n int32 }
	var names []span
	for _, name := range opts.Register {
		off, n := place(name)
		names = append(names, span{off, n})
	}
	metaOff, metaLen := place(opts.Metadata)
	errOff, errLen := place(`{"error":"` + ErrorMessage + `"}`)
	spacedOff, spacedLen := place(`{"formatted":"a + b"}`)
	prefixOff, prefixLen := place(`{"formatted":"`)
	suffixOff, suffixLen := place(`"}`)
	var fixedOff, fixedLen int32
	if opts.FormatResult != "" {
		fixedOff, fixedLen = place(opts.FormatResult)
	}

	// Imports.
	register := uint32(len(m.imports))
	m.imports = append(m.imports, importFunc{
		module:  "celfmt",
		name:    "register",
		typeIdx: m.addType(funcType{params: []byte{i32, i32}}),
	})
	var procExit uint32
	if opts.ExitOnStart {
		procExit = uint32(len(m.imports))
		m.imports = append(m.imports, importFunc{
			module:  "wasi_snapshot_preview1",
			name:    "proc_exit",
			typeIdx: m.addType(funcType{params: []byte{i32}}),
		})
	}

	// Heap pointer.
	m.globals = append(m.globals, global{valType: i32, mutable: true, init: heapStart})
	const heap = 0

	addFunc := func(name string, ft funcType, locals []byte, body []byte) {
		idx := uint32(len(m.imports) + len(m.funcs))
		m.funcs = append(m.funcs, m.addType(ft))
		m.code = append(m.code, funcBody{locals: locals, code: body})
		if name != "" {
			m.exports = append(m.exports, export{name: name, kind: kindFunc, idx: idx})
		}
	}

	// Start function.
	start := &code{}
	for _, s := range names {
		start.i32Const(s.off).i32Const(s.n).call(register)
	}
	if opts.ExitOnStart {
		start.i32Const(0).call(procExit)
	}
	if opts.TrapOnStart {
		start.op(opUnreachable)
	}
	startName := "_initialize"
	if opts.Command || opts.ExitOnStart {
		startName = "_start"
	}
	addFunc(startName, funcType{}, nil, start.end())

	// cabi_realloc(old_ptr, old_size, align, new_size) -> ptr, a bump allocator.
	realloc := &code{}
	realloc.globalGet(heap).localSet(4).
		globalGet(heap).localGet(3).op(opI32Add).globalSet(heap).
		localGet(4)
	addFunc("cabi_realloc", funcType{params: []byte{i32, i32, i32, i32}, results: []byte{i32}}, []byte{i32}, realloc.end())

	// metadata() -> retptr
	if opts.MetadataI64 {
		addFunc("metadata", funcType{results: []byte{i64}}, nil, (&code{}).i64Const(0).end())
	} else {
		addFunc("metadata", funcType{results: []byte{i32}}, nil, (&code{}).writeRet(retArea, metaOff, metaLen).end())
	}

	// format(ptr, len) -> retptr
	format := &code{}
	if opts.FormatResult != "" {
		format.writeRet(retArea, fixedOff, fixedLen)
	} else {
		format.localGet(0).load8u(0).i32Const('!').op(opI32Eq).ifThen(func(c *code) {
			c.writeRet(retArea, errOff, errLen).op(opReturn)
		})
		format.localGet(0).load8u(1).i32Const('+').op(opI32Eq).ifThen(func(c *code) {
			c.writeRet(retArea, spacedOff, spacedLen).op(opReturn)
		})
		// out := heap
		format.globalGet(heap).localSet(2)
		// prefix
		format.localGet(2).i32Const(prefixOff).i32Const(prefixLen).memoryCopy()
		// input
		format.localGet(2).i32Const(prefixLen).op(opI32Add).localGet(0).localGet(1).memoryCopy()
		// suffix
		format.localGet(2).i32Const(prefixLen).op(opI32Add).localGet(1).op(opI32Add).
			i32Const(suffixOff).i32Const(suffixLen).memoryCopy()
		// heap += prefix + len + suffix
		format.localGet(2).i32Const(prefixLen + suffixLen).op(opI32Add).localGet(1).op(opI32Add).globalSet(heap)
		// ret = (out, prefix + len + suffix)
		format.i32Const(retArea).localGet(2).store32(0)
		format.i32Const(retArea).localGet(1).i32Const(prefixLen + suffixLen).op(opI32Add).store32(4)
		format.i32Const(retArea)
	}
	formatName := "format"
	if opts.OmitFormatExport {
		formatName = ""
	}
	addFunc(formatName, funcType{params: []byte{i32, i32}, results: []byte{i32}}, []byte{i32}, format.end())

	m.exports = append(m.exports, export{name: "memory", kind: kindMemory, idx: 0})

	return m.encode()
}
