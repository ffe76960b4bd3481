// Package profile declares a component's queries in JSON and turns them into
// layouts, simulated registers and a control tree.
package profile

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/TheLegendszs/v4l4j"
	"github.com/TheLegendszs/v4l4j/control"
	"github.com/TheLegendszs/v4l4j/errors"
	"github.com/TheLegendszs/v4l4j/structmap"
)

// Field declares one field of a query record.
type Field struct {
	Name string `json:"name" yaml:"name"`
	// Type is int32, uint32, enum, string or array.
	Type string `json:"type" yaml:"type"`
	// Offset pins the field; unset fields follow C alignment.
	Offset *uint32 `json:"offset,omitempty" yaml:"offset,omitempty"`
	// Length is the size of a string field.
	Length uint32 `json:"length,omitempty" yaml:"length,omitempty"`
	// Count and Elem describe an array field.
	Count uint32 `json:"count,omitempty" yaml:"count,omitempty"`
	Elem  string `json:"elem,omitempty" yaml:"elem,omitempty"`
	// Scale makes an int32 fixed-point.
	Scale float64 `json:"scale,omitempty" yaml:"scale,omitempty"`
	// Endian is "little" (default) or "big".
	Endian string           `json:"endian,omitempty" yaml:"endian,omitempty"`
	Cases  map[string]int32 `json:"cases,omitempty" yaml:"cases,omitempty"`
}

// Query declares one record exchanged under ID.
type Query struct {
	Name   string  `json:"name" yaml:"name"`
	ID     int32   `json:"id" yaml:"id"`
	Size   uint32  `json:"size,omitempty" yaml:"size,omitempty"`
	Fields []Field `json:"fields" yaml:"fields"`
	// Defaults seed the record when a simulated component is installed.
	Defaults map[string]any `json:"defaults,omitempty" yaml:"defaults,omitempty"`
}

// Enumeration names the queries answering frame size and frame interval
// enumeration, if the component supports it.
type Enumeration struct {
	FrameSize     string `json:"frame_size" yaml:"frame_size"`
	FrameInterval string `json:"frame_interval" yaml:"frame_interval"`
}

// Profile describes a component.
type Profile struct {
	Name        string       `json:"name" yaml:"name"`
	Queries     []Query      `json:"queries" yaml:"queries"`
	Enumeration *Enumeration `json:"enumeration,omitempty" yaml:"enumeration,omitempty"`
}

// Load reads and parses the profile at path. Files ending in .yaml or .yml
// are YAML, anything else JSON.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Load(fmt.Sprintf("read profile %s", path), err)
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return Parse(data)
	}
}

// Parse decodes and validates a profile. Unknown keys are rejected.
func Parse(data []byte) (*Profile, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var p Profile
	if err := dec.Decode(&p); err != nil {
		return nil, errors.Load("decode profile", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// ParseYAML is Parse for YAML documents.
func ParseYAML(data []byte) (*Profile, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var p Profile
	if err := dec.Decode(&p); err != nil {
		return nil, errors.Load("decode profile", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks names, IDs and every layout. All problems are reported
// together.
func (p *Profile) Validate() error {
	if p.Name == "" {
		return errors.Load("profile has no name", nil)
	}
	if len(p.Queries) == 0 {
		return errors.Load(fmt.Sprintf("profile %s declares no queries", p.Name), nil)
	}

	var errs error
	names := make(map[string]bool, len(p.Queries))
	ids := make(map[int32]string, len(p.Queries))
	for _, q := range p.Queries {
		if names[q.Name] {
			errs = multierr.Append(errs, errors.Load(fmt.Sprintf("duplicate query %q", q.Name), nil))
		}
		names[q.Name] = true
		if other, ok := ids[q.ID]; ok {
			errs = multierr.Append(errs, errors.Load(fmt.Sprintf("queries %q and %q share id %d", other, q.Name, q.ID), nil))
		}
		ids[q.ID] = q.Name

		l, err := q.Layout()
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if _, err := q.seed(l); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if e := p.Enumeration; e != nil {
		for _, name := range []string{e.FrameSize, e.FrameInterval} {
			if !names[name] {
				errs = multierr.Append(errs, errors.Load(fmt.Sprintf("enumeration query %q is not declared", name), nil))
			}
		}
	}
	return errs
}

// Query returns the declaration of the named query.
func (p *Profile) Query(name string) (Query, bool) {
	i := slices.IndexFunc(p.Queries, func(q Query) bool { return q.Name == name })
	if i < 0 {
		return Query{}, false
	}
	return p.Queries[i], true
}

// Layouts builds the layout of every query, keyed by query name.
func (p *Profile) Layouts() (map[string]*structmap.Layout, error) {
	out := make(map[string]*structmap.Layout, len(p.Queries))
	for _, q := range p.Queries {
		l, err := q.Layout()
		if err != nil {
			return nil, err
		}
		out[q.Name] = l
	}
	return out, nil
}

// Build returns a root composite named after the profile with one query
// control per declared query, all exchanged through bridge.
func (p *Profile) Build(bridge v4l4j.ComponentBridge) (*control.Composite, error) {
	root, err := control.NewComposite(p.Name)
	if err != nil {
		return nil, err
	}
	for _, decl := range p.Queries {
		l, err := decl.Layout()
		if err != nil {
			return nil, err
		}
		q, err := control.NewQuery(decl.Name, decl.ID, l, bridge)
		if err != nil {
			return nil, err
		}
		qc, err := control.NewQueryControl(decl.Name, q)
		if err != nil {
			return nil, err
		}
		if err := root.Add(qc); err != nil {
			return nil, err
		}
	}
	return root, nil
}

// Registrar accepts initial records, e.g. a simulated component.
type Registrar interface {
	Define(id int32, init []byte) error
}

// Install defines every query on r, seeded with its defaults.
func (p *Profile) Install(r Registrar) error {
	for _, q := range p.Queries {
		l, err := q.Layout()
		if err != nil {
			return err
		}
		rec, err := q.seed(l)
		if err != nil {
			return err
		}
		if err := r.Define(q.ID, rec); err != nil {
			return errors.Load(fmt.Sprintf("install query %q", q.Name), err)
		}
	}
	return nil
}

func (q Query) seed(l *structmap.Layout) ([]byte, error) {
	rec := make([]byte, l.Size())
	if len(q.Defaults) == 0 {
		return rec, nil
	}
	if err := l.Encode(q.Defaults, rec); err != nil {
		return nil, errors.Load(fmt.Sprintf("defaults of query %q", q.Name), err)
	}
	return rec, nil
}

// Layout builds the record layout of q.
func (q Query) Layout() (*structmap.Layout, error) {
	if q.Name == "" {
		return nil, errors.Load("query has no name", nil)
	}
	b := structmap.NewBuilder(q.Name)
	for _, f := range q.Fields {
		var opts []structmap.FieldOption
		switch f.Endian {
		case "", "little":
		case "big":
			opts = append(opts, structmap.WithOrder(binary.BigEndian))
		default:
			return nil, errors.Load(fmt.Sprintf("field %s.%s: unknown endianness %q", q.Name, f.Name, f.Endian), nil)
		}
		if f.Scale != 0 {
			opts = append(opts, structmap.WithScale(f.Scale))
		}
		if f.Offset != nil {
			b.At(*f.Offset)
		}

		kind, ok := structmap.ParseKind(f.Type)
		if !ok {
			return nil, errors.Load(fmt.Sprintf("field %s.%s: unknown type %q", q.Name, f.Name, f.Type), nil)
		}
		switch kind {
		case structmap.KindInt32:
			b.Int32(f.Name, opts...)
		case structmap.KindUInt32:
			b.UInt32(f.Name, opts...)
		case structmap.KindEnum:
			b.Enum(f.Name, f.Cases, opts...)
		case structmap.KindFixedString:
			b.String(f.Name, f.Length, opts...)
		case structmap.KindFixedArray:
			elem, ok := structmap.ParseKind(f.Elem)
			if !ok || (!elem.IsScalar() && elem != structmap.KindUInt8) {
				return nil, errors.Load(fmt.Sprintf("field %s.%s: unknown element type %q", q.Name, f.Name, f.Elem), nil)
			}
			b.Array(f.Name, elem, f.Count, opts...)
		default:
			return nil, errors.Load(fmt.Sprintf("field %s.%s: type %q is only an array element", q.Name, f.Name, f.Type), nil)
		}
	}
	if q.Size != 0 {
		b.Size(q.Size)
	}
	return b.Build()
}
