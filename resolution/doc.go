// Package resolution reports the frame sizes and frame intervals a driver
// supports for an image format.
//
// A report is Unsupported, Discrete (a list) or Stepwise (a range). Asking
// a report for the shape it does not have is an unsupported operation:
//
//	info := resolution.New(ctx, enum, format)
//	switch info.Type() {
//	case resolution.Discrete:
//		sizes, _ := info.Discrete()
//	case resolution.Stepwise:
//		rng, _ := info.Stepwise()
//	}
//
// New always returns a report. When enumeration fails the report is
// Unsupported and the cause is logged.
//
// BridgeEnumerator enumerates through a component's frame size and frame
// interval queries; Catalog answers those queries on the component side.
package resolution
