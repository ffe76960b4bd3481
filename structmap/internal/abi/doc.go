// Package abi provides internal utilities for struct field encoding/decoding.
//
// # Contents
//
//   - coerce.go: Coercion of dynamic Go values (including JSON numbers) to field widths
//   - helpers.go: Alignment, overflow-checked arithmetic and type naming
//
// This package is internal to structmap.
package abi
