package resolution

import (
	"slices"

	"github.com/TheLegendszs/v4l4j/structmap"
)

// Catalog is the component side of enumeration: the report of each format
// it supports. AnswerFrameSize and AnswerFrameInterval have the shape of a
// simulated component's write hook; they read the request fields of an
// enumeration record and fill in the answer.
type Catalog map[uint32]*Info

// AnswerFrameSize answers a FrameSizeLayout request in place.
func (c Catalog) AnswerFrameSize(_ int32, rec []byte) error {
	return answer(FrameSizeLayout(), rec, []string{"index", "format"}, func(req structmap.Values, ans map[string]any) {
		info, index := c[u32(req, "format")], u32(req, "index")
		switch {
		case info == nil:
		case info.typ == Discrete && int(index) < len(info.discrete):
			d := info.discrete[index]
			ans["type"] = int32(Discrete)
			ans["width"] = d.Width
			ans["height"] = d.Height
		case info.typ == Stepwise && index == 0:
			s := info.stepwise
			ans["type"] = int32(Stepwise)
			ans["min_width"] = s.MinWidth
			ans["max_width"] = s.MaxWidth
			ans["step_width"] = s.StepWidth
			ans["min_height"] = s.MinHeight
			ans["max_height"] = s.MaxHeight
			ans["step_height"] = s.StepHeight
		}
	})
}

// AnswerFrameInterval answers a FrameIntervalLayout request in place.
func (c Catalog) AnswerFrameInterval(_ int32, rec []byte) error {
	return answer(FrameIntervalLayout(), rec, []string{"index", "format", "width", "height"}, func(req structmap.Values, ans map[string]any) {
		fi := c.intervalsAt(u32(req, "format"), u32(req, "width"), u32(req, "height"))
		index := u32(req, "index")
		switch {
		case fi.typ == Discrete && int(index) < len(fi.discrete):
			ans["type"] = int32(Discrete)
			ans["discrete.num"] = fi.discrete[index].Num
			ans["discrete.denom"] = fi.discrete[index].Denom
		case fi.typ == Stepwise && index == 0:
			ans["type"] = int32(Stepwise)
			for prefix, f := range map[string]Fraction{"min": fi.stepwise.Min, "max": fi.stepwise.Max, "step": fi.stepwise.Step} {
				ans[prefix+".num"] = f.Num
				ans[prefix+".denom"] = f.Denom
			}
		}
	})
}

func (c Catalog) intervalsAt(format, width, height uint32) FrameInterval {
	info := c[format]
	if info == nil {
		return FrameInterval{}
	}
	switch info.typ {
	case Discrete:
		for _, d := range info.discrete {
			if d.Width == width && d.Height == height {
				return d.Interval
			}
		}
	case Stepwise:
		s := info.stepwise
		if width == s.MinWidth && height == s.MinHeight {
			return s.MinInterval
		}
		if width == s.MaxWidth && height == s.MaxHeight {
			return s.MaxInterval
		}
	}
	return FrameInterval{}
}

// answer zeroes every field of rec except the request fields, lets fill
// set the answer, and writes it back.
func answer(layout *structmap.Layout, rec []byte, request []string, fill func(req structmap.Values, ans map[string]any)) error {
	v, err := structmap.ViewOf(layout, rec)
	if err != nil {
		return err
	}
	defer v.Release()
	req, err := v.AsMap()
	if err != nil {
		return err
	}

	ans := make(map[string]any)
	for _, name := range layout.Names() {
		if !slices.Contains(request, name) {
			ans[name] = 0
		}
	}
	fill(req, ans)
	if err := v.PutAll(ans); err != nil {
		return err
	}
	out, err := v.Bytes()
	if err != nil {
		return err
	}
	copy(rec, out)
	return nil
}
