package resolution

import (
	"fmt"
	"slices"
	"strings"

	"github.com/TheLegendszs/v4l4j/errors"
)

// DiscreteResolution is one supported frame size.
type DiscreteResolution struct {
	Interval FrameInterval
	Width    uint32
	Height   uint32
}

func (d DiscreteResolution) String() string {
	return fmt.Sprintf("%dx%d (%s)", d.Width, d.Height, d.Interval)
}

// StepwiseResolution is a range of frame sizes. MinInterval and
// MaxInterval are the frame intervals at the smallest and largest size.
type StepwiseResolution struct {
	MinInterval FrameInterval
	MaxInterval FrameInterval
	MinWidth    uint32
	MaxWidth    uint32
	StepWidth   uint32
	MinHeight   uint32
	MaxHeight   uint32
	StepHeight  uint32
}

func (s StepwiseResolution) String() string {
	return fmt.Sprintf("min: %dx%d (%s) - max: %dx%d (%s) - step: %dx%d)",
		s.MinWidth, s.MinHeight, s.MinInterval,
		s.MaxWidth, s.MaxHeight, s.MaxInterval,
		s.StepWidth, s.StepHeight)
}

// Info reports the frame sizes supported for one image format. It is
// immutable. The zero value is Unsupported.
type Info struct {
	discrete []DiscreteResolution
	stepwise StepwiseResolution
	typ      Type
}

// NewDiscrete returns a discrete report.
func NewDiscrete(res ...DiscreteResolution) *Info {
	return &Info{typ: Discrete, discrete: slices.Clone(res)}
}

// NewStepwise returns a stepwise report.
func NewStepwise(s StepwiseResolution) *Info {
	return &Info{typ: Stepwise, stepwise: s}
}

// NewUnsupported returns a report carrying no information.
func NewUnsupported() *Info {
	return &Info{}
}

func (i *Info) Type() Type { return i.typ }

// Discrete returns the supported sizes of a discrete report.
func (i *Info) Discrete() ([]DiscreteResolution, error) {
	if i.typ != Discrete {
		return nil, errors.Unsupported(errors.PhaseReport, "supported resolutions are not discrete")
	}
	return slices.Clone(i.discrete), nil
}

// Stepwise returns the range of a stepwise report.
func (i *Info) Stepwise() (StepwiseResolution, error) {
	if i.typ != Stepwise {
		return StepwiseResolution{}, errors.Unsupported(errors.PhaseReport, "supported resolutions are not stepwise")
	}
	return i.stepwise, nil
}

func (i *Info) String() string {
	switch i.typ {
	case Stepwise:
		return i.stepwise.String()
	case Discrete:
		if len(i.discrete) == 0 {
			return "[no resolutions]"
		}
		parts := make([]string, len(i.discrete))
		for n, d := range i.discrete {
			parts[n] = d.String()
		}
		return strings.Join(parts, " - ")
	default:
		return "no resolution information"
	}
}
