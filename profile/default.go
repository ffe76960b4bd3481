package profile

import (
	_ "embed"
)

//go:embed default.json
var defaultProfile []byte

// Default returns the built-in camera profile: a port definition, exposure
// and white balance settings, and the frame size and frame interval
// enumeration records.
func Default() *Profile {
	p, err := Parse(defaultProfile)
	if err != nil {
		panic("profile: built-in profile: " + err.Error())
	}
	return p
}
