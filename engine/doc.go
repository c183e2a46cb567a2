// Package engine hosts formatter guests on wazero.
//
// A guest is a core WebAssembly module built as a reactor. The engine
// compiles it, instantiates it with an empty start list, and runs its
// start function itself. While starting, the guest calls
//
//	celfmt.register(name_ptr, name_len)
//
// once per entry point it provides. Loading succeeds only when both
// "metadata" and "format" are registered and exported with the core types
// derived from their WIT declarations:
//
//	metadata: func() -> string           () -> i32
//	format: func(src: string) -> string  (i32, i32) -> i32
//
// Both return a pointer to a (ptr, len) pair holding a JSON document.
// Arguments are lowered through cabi_realloc and an optional
// cabi_post_<name> export is called after each result has been copied out.
//
// # Compile Strategies
//
// SelectStrategy performs a capability check once per engine:
//
//	cached  - compilation goes through a file backed wazero cache
//	direct  - the module is buffered and compiled per load
//
// Both produce the same guest; the choice only affects start up cost.
package engine
