// Package structmap maps named, typed values onto fixed-layout binary
// records and back.
//
// A Layout describes one record kind: an ordered set of FieldCodecs, each
// bound to a byte offset, plus the total record size. Layouts are built once
// with a Builder (or derived from a WIT record with FromWIT) and shared
// read-only afterwards.
//
//	┌──────────────────────────────────────────────┐
//	│ Values ←→ [Layout / FieldCodec] ←→ []byte    │
//	└──────────────────────────────────────────────┘
//
// # Field Kinds
//
//	Kind              Size        Go value
//	──────────────────────────────────────────────────────
//	KindInt32         4           int32, float64 if scaled
//	KindUInt32        4           uint32
//	KindEnum          4           int32
//	KindFixedString   Length      string, cut at first NUL
//	KindFixedArray    Count*elem  []int32, []uint32, []byte
//
// Inputs are coerced: any integer type in range, whole float64 values as
// produced by encoding/json, and enum case names. Anything else is a type
// mismatch.
//
// # Views
//
// A View pairs a Layout with a pooled buffer it owns. It supports per-field
// Get and Put, PutAll, and AsMap. Release hands the buffer back to the pool;
// a released View reports an error on every call.
//
// # Round Trip
//
// Writing a value equal to the one already decoded from a field leaves the
// field's bytes untouched, so for any buffer:
//
//	m, _ := view.AsMap()
//	view.PutAll(m) // buffer unchanged, byte for byte
//
// Short or long buffers are rejected with a buffer size mismatch; nothing is
// padded or truncated.
package structmap
