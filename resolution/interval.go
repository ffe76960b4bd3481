package resolution

import (
	"fmt"
	"slices"
	"strings"

	"github.com/TheLegendszs/v4l4j/errors"
)

// Type is the shape of a resolution or frame interval report.
type Type uint8

const (
	// Unsupported means the driver gave no usable information.
	Unsupported Type = iota
	// Discrete is an explicit list of values.
	Discrete
	// Stepwise is a min/max range with a step.
	Stepwise
)

func (t Type) String() string {
	switch t {
	case Unsupported:
		return "unsupported"
	case Discrete:
		return "discrete"
	case Stepwise:
		return "stepwise"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// typeOf maps a report type code to a Type. Unknown codes are Unsupported.
func typeOf(code uint32) Type {
	switch code {
	case 1:
		return Discrete
	case 2:
		return Stepwise
	default:
		return Unsupported
	}
}

// Fraction is a frame interval in seconds, Num/Denom.
type Fraction struct {
	Num   uint32
	Denom uint32
}

func (f Fraction) String() string {
	return fmt.Sprintf("%d/%d", f.Num, f.Denom)
}

// FPS returns the frame rate the interval corresponds to, or 0 when Num is 0.
func (f Fraction) FPS() float64 {
	if f.Num == 0 {
		return 0
	}
	return float64(f.Denom) / float64(f.Num)
}

// StepwiseInterval is a range of frame intervals.
type StepwiseInterval struct {
	Min  Fraction
	Max  Fraction
	Step Fraction
}

func (s StepwiseInterval) String() string {
	return fmt.Sprintf("min: %s - max: %s - step: %s", s.Min, s.Max, s.Step)
}

// FrameInterval reports the frame intervals supported at one resolution.
// The zero value is Unsupported.
type FrameInterval struct {
	discrete []Fraction
	stepwise StepwiseInterval
	typ      Type
}

// DiscreteIntervals returns a discrete frame interval report.
func DiscreteIntervals(intervals ...Fraction) FrameInterval {
	return FrameInterval{typ: Discrete, discrete: slices.Clone(intervals)}
}

// StepwiseIntervals returns a stepwise frame interval report.
func StepwiseIntervals(s StepwiseInterval) FrameInterval {
	return FrameInterval{typ: Stepwise, stepwise: s}
}

func (f FrameInterval) Type() Type { return f.typ }

// Discrete returns the supported intervals of a discrete report.
func (f FrameInterval) Discrete() ([]Fraction, error) {
	if f.typ != Discrete {
		return nil, errors.Unsupported(errors.PhaseReport, "supported frame intervals are not discrete")
	}
	return slices.Clone(f.discrete), nil
}

// Stepwise returns the range of a stepwise report.
func (f FrameInterval) Stepwise() (StepwiseInterval, error) {
	if f.typ != Stepwise {
		return StepwiseInterval{}, errors.Unsupported(errors.PhaseReport, "supported frame intervals are not stepwise")
	}
	return f.stepwise, nil
}

func (f FrameInterval) String() string {
	switch f.typ {
	case Discrete:
		if len(f.discrete) == 0 {
			return "[no intervals]"
		}
		parts := make([]string, len(f.discrete))
		for i, d := range f.discrete {
			parts[i] = d.String()
		}
		return strings.Join(parts, " - ")
	case Stepwise:
		return f.stepwise.String()
	default:
		return "no frame interval information"
	}
}
