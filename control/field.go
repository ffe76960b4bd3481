package control

import (
	"context"
	"time"
)

// FieldAccessor is the unbound transaction of a leaf.
type FieldAccessor struct {
	a     Accessor
	field string
}

func (fa FieldAccessor) SetTimeout(d time.Duration) FieldAccessor {
	fa.a = fa.a.SetTimeout(d)
	return fa
}

func (fa FieldAccessor) State() State { return Unbound }

func (fa FieldAccessor) Get() FieldGetter {
	return FieldGetter{g: fa.a.Get(), field: fa.field}
}

// Execute does nothing.
func (fa FieldAccessor) Execute(context.Context) error { return nil }

// FieldGetter is a Getter narrowed to a leaf's field.
type FieldGetter struct {
	g     Getter
	field string
}

func (fg FieldGetter) SetTimeout(d time.Duration) FieldGetter {
	fg.g = fg.g.SetTimeout(d)
	return fg
}

func (fg FieldGetter) State() State { return fg.g.State() }

// Read schedules fn to receive the field's value after the cycle.
func (fg FieldGetter) Read(fn func(any)) FieldGetter {
	fg.g = fg.g.ReadField(fg.field, fn)
	return fg
}

func (fg FieldGetter) Write(value any) FieldGetter {
	fg.g = fg.g.Write(fg.field, value)
	return fg
}

func (fg FieldGetter) WriteFunc(fn func() any) FieldGetter {
	fg.g = fg.g.WriteFunc(fg.field, fn)
	return fg
}

func (fg FieldGetter) Update(fn func(any) (any, error)) FieldGetter {
	fg.g = fg.g.Update(fg.field, fn)
	return fg
}

func (fg FieldGetter) Execute(ctx context.Context) error {
	return fg.g.Execute(ctx)
}

// Value runs the cycle and returns the field's final value.
func (fg FieldGetter) Value(ctx context.Context) (any, error) {
	values, err := fg.g.Call(ctx)
	if err != nil {
		return nil, err
	}
	return values[fg.field], nil
}
