// Package v4l4j exposes hardware and driver configuration state as an
// addressable tree of typed controls backed by fixed-layout binary records.
//
// A component (a capture device, an encoder, an emulated peripheral) is only
// reachable through a narrow exchange primitive, the [ComponentBridge]. Every
// parameter block it understands is a flat native struct identified by a
// query ID. This module maps those structs onto named, typed fields and lets
// callers read and modify them through deferred transactions.
//
// # Architecture Overview
//
//	v4l4j/               Root package with the ComponentBridge interface
//	├── structmap/       Field codecs, struct layouts and live struct views
//	├── control/         Control tree (leaf/composite) and the transaction builder
//	├── resolution/      Resolution and frame-interval reports
//	├── profile/         JSON device profiles turned into layouts and trees
//	├── bridge/sim/      In-process simulated component
//	├── bridge/wasmdev/  Component emulated by a sandboxed WebAssembly firmware
//	├── bridge/trace/    Logging decorator for bridges
//	├── cmd/ctlshell/    CLI and terminal UI over a profile
//	└── errors/          Structured error types
//
// # Quick Start
//
//	layout, _ := structmap.NewBuilder("format").
//		Int32("width").
//		Int32("height").
//		Build()
//
//	q, _ := control.NewQuery("format", 7, layout, bridge)
//	root, _ := control.NewQueryControl("format", q)
//
//	err := root.Get().
//		Update("width", func(v any) (any, error) { return v.(int32) * 2, nil }).
//		ReadField("width", func(v any) { fmt.Println("width:", v) }).
//		Execute(ctx)
//
// # Exchanges
//
// A transaction performs at most two exchanges: one acquiring the current
// record, and one committing it when writes are pending. The struct buffer is
// owned by the executing transaction and released before Execute returns.
//
// # Thread Safety
//
// Layouts and control trees are safe for concurrent use. Transactions are
// immutable values and may be shared; each Execute acquires its own buffer.
// Transactions on the same query are serialized in-process, so a field
// update never loses a concurrent increment made through this package. No
// ordering is guaranteed against other processes talking to the component.
package v4l4j
