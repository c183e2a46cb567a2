// Package celfmtui hosts a compiled CEL formatter delivered as a WebAssembly
// module and drives it from a small two-pane user interface.
//
// The formatter itself is opaque. The host only knows two entry points the
// guest registers while it starts: a metadata accessor reporting build
// identity, and a formatter taking program text and returning either the
// formatted text or an error.
//
// # Architecture Overview
//
//	celfmtui/            Root package with the shared data model and Memory interface
//	├── source/          Asset fetching (file, http(s), s3)
//	├── engine/          wazero sandbox, compile strategies, guest entry points
//	├── contract/        WIT description of the entry points and export validation
//	├── meta/            Version link rendering for build metadata
//	├── playground/      Load lifecycle and the format-and-display action
//	├── tui/             Interactive bubbletea surface
//	├── config/          Flags, YAML file and environment configuration
//	├── errors/          Structured error types
//	└── cmd/celfmt-ui/   Command composing the above
//
// # Quick Start
//
//	eng, err := engine.New(ctx, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close(ctx)
//
//	r, err := source.New().Open(ctx, "celfmt.wasm")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
//	guest, err := eng.Load(ctx, r)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	res, err := guest.Format(ctx, "a+b")
//	fmt.Println(res.Formatted) // "a + b"
//
// # Thread Safety
//
// Engine is safe for concurrent use. Guest serializes calls into the module,
// so a second caller waits for the first to return.
package celfmtui
