// Package errors provides structured error types for celfmt-ui.
//
// Errors are categorized by Phase (where in the load or call sequence the
// error occurred) and Kind (error category). The Error type carries a path,
// a detail message and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseBind, errors.KindSignature).
//		Path("format").
//		Detail("want (i32, i32) -> i32").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Transport("https://example.com/celfmt.wasm", cause)
//	err := errors.OutOfBounds(errors.PhaseDecode, 1024, 16)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
