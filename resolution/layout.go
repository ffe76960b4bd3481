package resolution

import (
	"sync"

	"github.com/TheLegendszs/v4l4j/structmap"
)

var reportCases = map[string]int32{"unsupported": 0, "discrete": 1, "stepwise": 2}

// FrameSizeLayout is the frame size enumeration record. The caller writes
// index and format; the component answers with type and either width and
// height (discrete, one entry per index) or the min/max/step range
// (stepwise, index 0 only). Type 0 past the last entry ends the list.
var FrameSizeLayout = sync.OnceValue(func() *structmap.Layout {
	return mustBuild(structmap.NewBuilder("frmsize").
		UInt32("index").
		UInt32("format").
		Enum("type", reportCases).
		UInt32("width").
		UInt32("height").
		UInt32("min_width").
		UInt32("max_width").
		UInt32("step_width").
		UInt32("min_height").
		UInt32("max_height").
		UInt32("step_height"))
})

var fractionLayout = sync.OnceValue(func() *structmap.Layout {
	return mustBuild(structmap.NewBuilder("fract").UInt32("num").UInt32("denom"))
})

// FrameIntervalLayout is the frame interval enumeration record for one
// format and frame size, answered like FrameSizeLayout.
var FrameIntervalLayout = sync.OnceValue(func() *structmap.Layout {
	return mustBuild(structmap.NewBuilder("frmival").
		UInt32("index").
		UInt32("format").
		UInt32("width").
		UInt32("height").
		Enum("type", reportCases).
		Nested("discrete", fractionLayout()).
		Nested("min", fractionLayout()).
		Nested("max", fractionLayout()).
		Nested("step", fractionLayout()))
})

func mustBuild(b *structmap.Builder) *structmap.Layout {
	l, err := b.Build()
	if err != nil {
		panic(err)
	}
	return l
}
