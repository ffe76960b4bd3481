package resolution

import (
	"context"

	"go.uber.org/zap"

	"github.com/TheLegendszs/v4l4j/errors"
)

// Enumerator asks a driver which frame sizes an image format supports.
type Enumerator interface {
	// ResolutionType returns the raw report type code for format:
	// 0 unsupported, 1 discrete, 2 stepwise.
	ResolutionType(ctx context.Context, format uint32) (uint32, error)
	DiscreteResolutions(ctx context.Context, format uint32) ([]DiscreteResolution, error)
	StepwiseResolution(ctx context.Context, format uint32) (StepwiseResolution, error)
}

// Option configures New.
type Option func(*options)

type options struct {
	log *zap.Logger
}

// WithLogger routes the diagnostic logged when a report cannot be built.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

// New queries e for the sizes supported by format. It never fails: any
// error degrades the report to Unsupported and is logged as a warning.
func New(ctx context.Context, e Enumerator, format uint32, opts ...Option) *Info {
	o := options{log: Logger()}
	for _, opt := range opts {
		opt(&o)
	}
	info, err := build(ctx, e, format)
	if err != nil {
		o.log.Warn("cannot list supported resolutions, reporting none",
			zap.Uint32("format", format),
			zap.Error(err))
		return NewUnsupported()
	}
	return info
}

func build(ctx context.Context, e Enumerator, format uint32) (*Info, error) {
	if e == nil {
		return nil, errors.InvalidInput(errors.PhaseReport, "no resolution enumerator")
	}
	code, err := e.ResolutionType(ctx, format)
	if err != nil {
		return nil, err
	}
	switch typeOf(code) {
	case Discrete:
		res, err := e.DiscreteResolutions(ctx, format)
		if err != nil {
			return nil, err
		}
		return NewDiscrete(res...), nil
	case Stepwise:
		s, err := e.StepwiseResolution(ctx, format)
		if err != nil {
			return nil, err
		}
		return NewStepwise(s), nil
	default:
		return NewUnsupported(), nil
	}
}
