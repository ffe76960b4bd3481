package resolution_test

import (
	"context"
	stderrors "errors"
	"reflect"
	"testing"

	"github.com/TheLegendszs/v4l4j/bridge/sim"
	"github.com/TheLegendszs/v4l4j/errors"
	"github.com/TheLegendszs/v4l4j/resolution"
)

const (
	sizeID     = 20
	intervalID = 21

	formatYUYV  = 0
	formatMJPEG = 1
	formatH264  = 2
)

var (
	fps30 = resolution.Fraction{Num: 1, Denom: 30}
	fps15 = resolution.Fraction{Num: 1, Denom: 15}
	fps5  = resolution.Fraction{Num: 1, Denom: 5}
)

func testCatalog() resolution.Catalog {
	return resolution.Catalog{
		formatYUYV: resolution.NewDiscrete(
			resolution.DiscreteResolution{Width: 640, Height: 480, Interval: resolution.DiscreteIntervals(fps30, fps15)},
			resolution.DiscreteResolution{Width: 1280, Height: 720, Interval: resolution.DiscreteIntervals(fps15)},
			resolution.DiscreteResolution{Width: 320, Height: 240},
		),
		formatMJPEG: resolution.NewStepwise(resolution.StepwiseResolution{
			MinWidth: 160, MaxWidth: 1920, StepWidth: 16,
			MinHeight: 120, MaxHeight: 1080, StepHeight: 8,
			MinInterval: resolution.DiscreteIntervals(fps30),
			MaxInterval: resolution.StepwiseIntervals(resolution.StepwiseInterval{Min: fps15, Max: fps5, Step: fps15}),
		}),
	}
}

func newCamera(t *testing.T, catalog resolution.Catalog) (*resolution.BridgeEnumerator, *sim.Device) {
	t.Helper()
	dev := sim.New()
	if err := dev.Register(sizeID, resolution.FrameSizeLayout().Size()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := dev.Register(intervalID, resolution.FrameIntervalLayout().Size()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := dev.OnWrite(sizeID, catalog.AnswerFrameSize); err != nil {
		t.Fatalf("OnWrite: %v", err)
	}
	if err := dev.OnWrite(intervalID, catalog.AnswerFrameInterval); err != nil {
		t.Fatalf("OnWrite: %v", err)
	}
	enum, err := resolution.NewBridgeEnumerator(dev, sizeID, intervalID)
	if err != nil {
		t.Fatalf("NewBridgeEnumerator: %v", err)
	}
	return enum, dev
}

func TestBridgeEnumerator_Discrete(t *testing.T) {
	catalog := testCatalog()
	enum, _ := newCamera(t, catalog)

	info := resolution.New(context.Background(), enum, formatYUYV)
	if info.Type() != resolution.Discrete {
		t.Fatalf("Type = %s, want discrete", info.Type())
	}
	got, _ := info.Discrete()
	want, _ := catalog[formatYUYV].Discrete()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Discrete =\n%v\nwant\n%v", got, want)
	}
	if info.String() != catalog[formatYUYV].String() {
		t.Errorf("String = %q", info.String())
	}
}

func TestBridgeEnumerator_Stepwise(t *testing.T) {
	catalog := testCatalog()
	enum, _ := newCamera(t, catalog)

	info := resolution.New(context.Background(), enum, formatMJPEG)
	got, err := info.Stepwise()
	if err != nil {
		t.Fatalf("Stepwise: %v", err)
	}
	want, _ := catalog[formatMJPEG].Stepwise()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Stepwise =\n%+v\nwant\n%+v", got, want)
	}

	if _, err := enum.StepwiseResolution(context.Background(), formatYUYV); !errors.Is(err, errors.ErrUnsupported) {
		t.Errorf("StepwiseResolution of a discrete format: got %v", err)
	}
}

func TestBridgeEnumerator_UnknownFormat(t *testing.T) {
	enum, _ := newCamera(t, testCatalog())

	code, err := enum.ResolutionType(context.Background(), formatH264)
	if err != nil || code != 0 {
		t.Fatalf("ResolutionType = %d, %v; want 0", code, err)
	}
	if info := resolution.New(context.Background(), enum, formatH264); info.Type() != resolution.Unsupported {
		t.Errorf("Type = %s, want unsupported", info.Type())
	}
}

func TestBridgeEnumerator_Limit(t *testing.T) {
	enum, _ := newCamera(t, testCatalog())
	enum.Limit = 2

	if _, err := enum.DiscreteResolutions(context.Background(), formatYUYV); err == nil {
		t.Error("DiscreteResolutions ignored the limit")
	}
	if info := resolution.New(context.Background(), enum, formatYUYV); info.Type() != resolution.Unsupported {
		t.Errorf("Type = %s, want unsupported after a failed enumeration", info.Type())
	}
}

func TestBridgeEnumerator_ExchangeFailure(t *testing.T) {
	enum, dev := newCamera(t, testCatalog())
	if err := dev.Fail(sizeID, stderrors.New("EIO")); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	if _, err := enum.ResolutionType(context.Background(), formatYUYV); !errors.Is(err, errors.ErrExchangeFailed) {
		t.Errorf("ResolutionType: got %v, want exchange failed", err)
	}
	if info := resolution.New(context.Background(), enum, formatYUYV); info.Type() != resolution.Unsupported {
		t.Errorf("Type = %s, want unsupported", info.Type())
	}
}
