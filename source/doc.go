// Package source opens the byte stream of a guest module from its location.
//
// Supported locations:
//
//	celfmt.wasm, ./dist/celfmt.wasm      local file
//	file:///srv/celfmt.wasm              local file
//	https://example.com/celfmt.wasm      single HTTP(S) GET
//	s3://bucket/path/celfmt.wasm         object store GetObject (minio client)
//
// No timeout is applied beyond the caller's context.
package source
