package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/TheLegendszs/v4l4j"
	"github.com/TheLegendszs/v4l4j/bridge/metrics"
	"github.com/TheLegendszs/v4l4j/bridge/sim"
	"github.com/TheLegendszs/v4l4j/bridge/trace"
	"github.com/TheLegendszs/v4l4j/bridge/wasmdev"
	"github.com/TheLegendszs/v4l4j/profile"
	"github.com/TheLegendszs/v4l4j/resolution"
)

// openDevice installs p on the chosen backend and returns the traced,
// instrumented bridge with its release function.
func openDevice(ctx context.Context, backend string, p *profile.Profile, log *zap.Logger, reg prometheus.Registerer) (v4l4j.ComponentBridge, func(context.Context) error, error) {
	dev, release, err := openBackend(ctx, backend, p, log)
	if err != nil {
		return nil, nil, err
	}
	b, err := metrics.New(trace.New(dev, log), reg, "ctlshell")
	if err != nil {
		_ = release(ctx)
		return nil, nil, err
	}
	return b, release, nil
}

func openBackend(ctx context.Context, backend string, p *profile.Profile, log *zap.Logger) (v4l4j.ComponentBridge, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	switch backend {
	case "sim":
		dev := sim.New(sim.WithLogger(log))
		if err := p.Install(dev); err != nil {
			return nil, nil, err
		}
		if e := p.Enumeration; e != nil {
			size, _ := p.Query(e.FrameSize)
			ival, _ := p.Query(e.FrameInterval)
			cat := demoCatalog()
			if err := dev.OnWrite(size.ID, cat.AnswerFrameSize); err != nil {
				return nil, nil, err
			}
			if err := dev.OnWrite(ival.ID, cat.AnswerFrameInterval); err != nil {
				return nil, nil, err
			}
		}
		return dev, noop, nil

	case "wasm":
		dev, err := wasmdev.New(ctx, wasmdev.WithLogger(log))
		if err != nil {
			return nil, nil, err
		}
		if err := p.Install(dev); err != nil {
			_ = dev.Close(ctx)
			return nil, nil, err
		}
		return dev, dev.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown backend %q", backend)
	}
}

func fourcc(s string) uint32 {
	var v uint32
	for i := 0; i < 4 && i < len(s); i++ {
		v |= uint32(s[i]) << (8 * i)
	}
	return v
}

// demoCatalog answers enumeration on the simulated camera.
func demoCatalog() resolution.Catalog {
	frac := func(num, denom uint32) resolution.Fraction {
		return resolution.Fraction{Num: num, Denom: denom}
	}
	video := resolution.DiscreteIntervals(frac(1, 30), frac(1, 15))
	return resolution.Catalog{
		fourcc("YUYV"): resolution.NewDiscrete(
			resolution.DiscreteResolution{Width: 640, Height: 480, Interval: video},
			resolution.DiscreteResolution{Width: 320, Height: 240, Interval: video},
			resolution.DiscreteResolution{Width: 160, Height: 120, Interval: resolution.DiscreteIntervals(frac(1, 30))},
		),
		fourcc("MJPG"): resolution.NewStepwise(resolution.StepwiseResolution{
			MinWidth: 160, MaxWidth: 1920, StepWidth: 16,
			MinHeight: 120, MaxHeight: 1080, StepHeight: 8,
			MinInterval: resolution.DiscreteIntervals(frac(1, 60)),
			MaxInterval: resolution.StepwiseIntervals(resolution.StepwiseInterval{
				Min: frac(1, 30), Max: frac(1, 5), Step: frac(1, 1),
			}),
		}),
	}
}
