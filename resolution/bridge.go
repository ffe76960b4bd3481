package resolution

import (
	"context"
	"fmt"
	"time"

	"github.com/TheLegendszs/v4l4j"
	"github.com/TheLegendszs/v4l4j/control"
	"github.com/TheLegendszs/v4l4j/errors"
	"github.com/TheLegendszs/v4l4j/structmap"
)

// DefaultLimit bounds how many entries a BridgeEnumerator reads per list.
const DefaultLimit = 256

// BridgeEnumerator enumerates frame sizes and intervals with transactions
// on the frame size and frame interval queries of a component.
type BridgeEnumerator struct {
	sizes     *control.Composite
	intervals *control.Composite

	// Timeout bounds each exchange cycle; zero means no bound.
	Timeout time.Duration
	// Limit bounds each list; a component answering more entries is
	// treated as faulty.
	Limit int
}

var _ Enumerator = (*BridgeEnumerator)(nil)

// NewBridgeEnumerator binds the enumeration records to the given query IDs
// of bridge.
func NewBridgeEnumerator(bridge v4l4j.ComponentBridge, sizeID, intervalID int32) (*BridgeEnumerator, error) {
	sq, err := control.NewQuery("frmsize", sizeID, FrameSizeLayout(), bridge)
	if err != nil {
		return nil, err
	}
	sizes, err := control.NewQueryControl("frmsize", sq)
	if err != nil {
		return nil, err
	}
	iq, err := control.NewQuery("frmival", intervalID, FrameIntervalLayout(), bridge)
	if err != nil {
		return nil, err
	}
	intervals, err := control.NewQueryControl("frmival", iq)
	if err != nil {
		return nil, err
	}
	return &BridgeEnumerator{sizes: sizes, intervals: intervals, Limit: DefaultLimit}, nil
}

func (e *BridgeEnumerator) limit() int {
	if e.Limit <= 0 {
		return DefaultLimit
	}
	return e.Limit
}

func (e *BridgeEnumerator) size(ctx context.Context, format, index uint32) (structmap.Values, error) {
	return e.sizes.Get().
		SetTimeout(e.Timeout).
		Write("index", index).
		Write("format", format).
		Call(ctx)
}

func (e *BridgeEnumerator) interval(ctx context.Context, format, width, height, index uint32) (structmap.Values, error) {
	return e.intervals.Get().
		SetTimeout(e.Timeout).
		WriteAll(map[string]any{
			"index":  index,
			"format": format,
			"width":  width,
			"height": height,
		}).
		Call(ctx)
}

func reportType(v structmap.Values) Type {
	code, _ := v.Int32("type")
	return typeOf(uint32(code))
}

func u32(v structmap.Values, name string) uint32 {
	x, _ := v.UInt32(name)
	return x
}

func fraction(v structmap.Values, prefix string) Fraction {
	return Fraction{Num: u32(v, prefix+".num"), Denom: u32(v, prefix+".denom")}
}

func tooMany(what string, limit int) error {
	return errors.InvalidInput(errors.PhaseReport, fmt.Sprintf("component lists more than %d %s", limit, what))
}

// ResolutionType returns the type code of the first frame size entry.
func (e *BridgeEnumerator) ResolutionType(ctx context.Context, format uint32) (uint32, error) {
	v, err := e.size(ctx, format, 0)
	if err != nil {
		return 0, err
	}
	code, _ := v.Int32("type")
	return uint32(code), nil
}

// DiscreteResolutions lists every discrete frame size of format with its
// frame intervals.
func (e *BridgeEnumerator) DiscreteResolutions(ctx context.Context, format uint32) ([]DiscreteResolution, error) {
	var out []DiscreteResolution
	for index := range uint32(e.limit()) {
		v, err := e.size(ctx, format, index)
		if err != nil {
			return nil, err
		}
		if reportType(v) != Discrete {
			return out, nil
		}
		d := DiscreteResolution{Width: u32(v, "width"), Height: u32(v, "height")}
		if d.Interval, err = e.Intervals(ctx, format, d.Width, d.Height); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return nil, tooMany("frame sizes", e.limit())
}

// StepwiseResolution reads the frame size range of format and the frame
// intervals at its smallest and largest size.
func (e *BridgeEnumerator) StepwiseResolution(ctx context.Context, format uint32) (StepwiseResolution, error) {
	v, err := e.size(ctx, format, 0)
	if err != nil {
		return StepwiseResolution{}, err
	}
	if t := reportType(v); t != Stepwise {
		return StepwiseResolution{}, errors.Unsupported(errors.PhaseReport,
			fmt.Sprintf("frame sizes of format %d are %s, not stepwise", format, t))
	}
	s := StepwiseResolution{
		MinWidth:   u32(v, "min_width"),
		MaxWidth:   u32(v, "max_width"),
		StepWidth:  u32(v, "step_width"),
		MinHeight:  u32(v, "min_height"),
		MaxHeight:  u32(v, "max_height"),
		StepHeight: u32(v, "step_height"),
	}
	if s.MinInterval, err = e.Intervals(ctx, format, s.MinWidth, s.MinHeight); err != nil {
		return StepwiseResolution{}, err
	}
	if s.MaxInterval, err = e.Intervals(ctx, format, s.MaxWidth, s.MaxHeight); err != nil {
		return StepwiseResolution{}, err
	}
	return s, nil
}

// Intervals reports the frame intervals of format at width x height.
func (e *BridgeEnumerator) Intervals(ctx context.Context, format, width, height uint32) (FrameInterval, error) {
	v, err := e.interval(ctx, format, width, height, 0)
	if err != nil {
		return FrameInterval{}, err
	}
	switch reportType(v) {
	case Discrete:
		fracs := []Fraction{fraction(v, "discrete")}
		for index := uint32(1); index < uint32(e.limit()); index++ {
			v, err := e.interval(ctx, format, width, height, index)
			if err != nil {
				return FrameInterval{}, err
			}
			if reportType(v) != Discrete {
				return DiscreteIntervals(fracs...), nil
			}
			fracs = append(fracs, fraction(v, "discrete"))
		}
		return FrameInterval{}, tooMany("frame intervals", e.limit())
	case Stepwise:
		return StepwiseIntervals(StepwiseInterval{
			Min:  fraction(v, "min"),
			Max:  fraction(v, "max"),
			Step: fraction(v, "step"),
		}), nil
	default:
		return FrameInterval{}, nil
	}
}
