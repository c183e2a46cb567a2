// Package contract describes the entry points a formatter guest provides and
// checks a compiled guest against that description.
//
// Entry points are declared in WIT:
//
//	metadata: func() -> string
//	format: func(src: string) -> string
//
// Core signatures are derived with the canonical ABI flattening rules. Strings
// lower to a (pointer, length) pair of i32 values, and a result that flattens
// to more than one value is returned through a pointer into guest memory:
//
//	WIT                              Core
//	─────────────────────────────────────────────────
//	metadata: func() -> string       () -> i32
//	format: func(src: string) -> string   (i32, i32) -> i32
//
// Guests must also export cabi_realloc so the host can place arguments in
// guest memory.
package contract
