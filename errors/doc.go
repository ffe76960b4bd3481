// Package errors provides structured error types for the control layer.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: field path, Go type, field type and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseEncode, errors.KindTypeMismatch).
//		Path("format", "width").
//		GoType("string").
//		FieldType("int32").
//		Detail("cannot convert string to integer").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.TypeMismatch(errors.PhaseEncode, path, "string", "int32")
//	err := errors.FieldNotFound(errors.PhaseDecode, "format", "widht")
//
// All errors implement the standard error interface and support errors.Is/As.
// The Err* sentinels match any error of their Kind regardless of phase:
//
//	if errors.Is(err, cerrors.ErrTimeout) { ... }
package errors
