package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/TheLegendszs/v4l4j"
	"github.com/TheLegendszs/v4l4j/control"
	"github.com/TheLegendszs/v4l4j/errors"
	"github.com/TheLegendszs/v4l4j/profile"
	"github.com/TheLegendszs/v4l4j/resolution"
	"github.com/TheLegendszs/v4l4j/structmap"
)

// snapshotWorkers bounds how many queries a snapshot reads at once.
const snapshotWorkers = 4

type config struct {
	log     *zap.Logger
	out     io.Writer
	profile string
	backend string
	timeout time.Duration
}

type shell struct {
	root    *control.Composite
	reg     *prometheus.Registry
	prof    *profile.Profile
	bridge  v4l4j.ComponentBridge
	release func(context.Context) error
	log     *zap.Logger
	out     io.Writer
	name    string
	timeout time.Duration
}

func newShell(ctx context.Context, cfg config) (*shell, error) {
	p := profile.Default()
	if cfg.profile != "" {
		var err error
		if p, err = profile.Load(cfg.profile); err != nil {
			return nil, err
		}
	}
	if cfg.log == nil {
		cfg.log = zap.NewNop()
	}

	reg := prometheus.NewRegistry()
	bridge, release, err := openDevice(ctx, cfg.backend, p, cfg.log, reg)
	if err != nil {
		return nil, fmt.Errorf("open %s device: %w", cfg.backend, err)
	}
	root, err := p.Build(bridge)
	if err != nil {
		_ = release(ctx)
		return nil, fmt.Errorf("build controls: %w", err)
	}
	return &shell{
		root:    root,
		reg:     reg,
		prof:    p,
		bridge:  bridge,
		release: release,
		log:     cfg.log,
		out:     cfg.out,
		name:    fmt.Sprintf("%s (%s)", p.Name, cfg.backend),
		timeout: cfg.timeout,
	}, nil
}

func (s *shell) close(ctx context.Context) {
	if err := s.release(ctx); err != nil {
		s.log.Warn("release device", zap.Error(err))
	}
}

func (s *shell) exec(ctx context.Context, args []string) error {
	switch cmd, rest := args[0], args[1:]; cmd {
	case "list":
		return s.list(ctx)
	case "get":
		if len(rest) != 1 {
			return fmt.Errorf("usage: get <path>")
		}
		return s.get(ctx, rest[0])
	case "set":
		if len(rest) == 0 || len(rest)%2 != 0 {
			return fmt.Errorf("usage: set <path> <value> [<path> <value>...]")
		}
		return s.set(ctx, rest)
	case "resolutions":
		if len(rest) != 1 {
			return fmt.Errorf("usage: resolutions <fourcc|format>")
		}
		return s.resolutions(ctx, rest[0])
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

type row struct {
	leaf  *control.Leaf
	path  string
	typ   string
	value string
}

// snapshot reads every query once, concurrently, and returns one row per
// leaf sorted by path. Queries that fail are left out and their errors
// returned together.
func (s *shell) snapshot(ctx context.Context) ([]row, error) {
	var (
		roots  []*control.Composite
		leaves []row
	)
	err := s.root.Walk(func(path string, n control.Node) error {
		switch n := n.(type) {
		case *control.Composite:
			if n.Query() != nil && n.Prefix() == "" {
				roots = append(roots, n)
			}
		case *control.Leaf:
			c := n.Codec()
			leaves = append(leaves, row{leaf: n, path: path, typ: c.TypeName()})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	values := make([]structmap.Values, len(roots))
	errs := make([]error, len(roots))
	var g errgroup.Group
	g.SetLimit(snapshotWorkers)
	for i, c := range roots {
		g.Go(func() error {
			values[i], errs[i] = c.Get().SetTimeout(s.timeout).Call(ctx)
			return nil
		})
	}
	_ = g.Wait()

	byQuery := make(map[*control.Query]structmap.Values, len(roots))
	for i, c := range roots {
		if errs[i] == nil {
			byQuery[c.Query()] = values[i]
		}
	}
	rows := leaves[:0]
	for _, r := range leaves {
		vals, ok := byQuery[r.leaf.Query()]
		if !ok {
			continue
		}
		r.value = formatValue(r.leaf.Codec(), vals[r.leaf.Field()])
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].path < rows[j].path })
	return rows, multierr.Combine(errs...)
}

func (s *shell) list(ctx context.Context) error {
	rows, err := s.snapshot(ctx)
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.path, r.typ, r.value)
	}
	if ferr := tw.Flush(); ferr != nil {
		return ferr
	}
	return err
}

func (s *shell) get(ctx context.Context, path string) error {
	n, err := s.root.Child(path)
	if err != nil {
		return err
	}
	switch n := n.(type) {
	case *control.Leaf:
		v, err := n.Get().SetTimeout(s.timeout).Value(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "%s = %s\n", path, formatValue(n.Codec(), v))
	case *control.Composite:
		if n.Query() == nil {
			return errors.Unsupported(errors.PhaseTransaction, fmt.Sprintf("%s groups several queries; get its children", path))
		}
		vals, err := n.Get().SetTimeout(s.timeout).Call(ctx)
		if err != nil {
			return err
		}
		layout := n.Query().Layout()
		for _, name := range vals.Names() {
			codec, _ := layout.Field(join(n.Prefix(), name))
			fmt.Fprintf(s.out, "%s = %s\n", join(path, name), formatValue(codec, vals[name]))
		}
	}
	return nil
}

// set writes every pair in one transaction per query, so either all the
// values of a query are committed or none are.
func (s *shell) set(ctx context.Context, pairs []string) error {
	type pending struct {
		root  *control.Composite
		paths []string
		g     control.Getter
	}
	byQuery := make(map[*control.Query]*pending)
	var order []*control.Query
	for i := 0; i < len(pairs); i += 2 {
		path, text := pairs[i], pairs[i+1]
		leaf, err := s.root.Leaf(path)
		if err != nil {
			return err
		}
		v, err := parseValue(leaf.Codec(), text)
		if err != nil {
			return err
		}
		p, ok := byQuery[leaf.Query()]
		if !ok {
			root := queryRoot(leaf)
			p = &pending{root: root, g: root.Get().SetTimeout(s.timeout)}
			byQuery[leaf.Query()] = p
			order = append(order, leaf.Query())
		}
		p.g = p.g.Write(leaf.Field(), v)
		p.paths = append(p.paths, path)
	}

	for _, q := range order {
		p := byQuery[q]
		vals, err := p.g.Call(ctx)
		if err != nil {
			return err
		}
		for _, path := range p.paths {
			leaf, _ := s.root.Leaf(path)
			fmt.Fprintf(s.out, "%s = %s\n", path, formatValue(leaf.Codec(), vals[leaf.Field()]))
		}
	}
	return nil
}

// queryRoot returns the composite that owns the whole record of l.
func queryRoot(l *control.Leaf) *control.Composite {
	c := l.Parent()
	for c.Prefix() != "" {
		c = c.Parent()
	}
	return c
}

func (s *shell) resolutions(ctx context.Context, arg string) error {
	e := s.prof.Enumeration
	if e == nil {
		return errors.Unsupported(errors.PhaseReport, fmt.Sprintf("profile %s has no enumeration queries", s.prof.Name))
	}
	size, _ := s.prof.Query(e.FrameSize)
	ival, _ := s.prof.Query(e.FrameInterval)
	enum, err := resolution.NewBridgeEnumerator(s.bridge, size.ID, ival.ID)
	if err != nil {
		return err
	}
	enum.Timeout = s.timeout

	format := fourcc(arg)
	if n, err := strconv.ParseUint(arg, 0, 32); err == nil {
		format = uint32(n)
	}
	info := resolution.New(ctx, enum, format, resolution.WithLogger(s.log))
	fmt.Fprintf(s.out, "%s: %s\n", arg, info)
	return nil
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

func formatValue(f structmap.FieldCodec, v any) string {
	switch x := v.(type) {
	case nil:
		return "-"
	case string:
		return strconv.Quote(x)
	case int32:
		if f.Kind == structmap.KindEnum {
			if name, ok := f.CaseName(x); ok {
				return fmt.Sprintf("%s (%d)", name, x)
			}
		}
		return strconv.FormatInt(int64(x), 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// parseValue turns command-line text into a value the field accepts.
// Arrays are comma-separated.
func parseValue(f structmap.FieldCodec, text string) (any, error) {
	invalid := func(format string, args ...any) error {
		return errors.New(errors.PhaseEncode, errors.KindInvalidInput).
			Path(f.Name).
			FieldType(f.TypeName()).
			Detail(format, args...).
			Build()
	}

	switch f.Kind {
	case structmap.KindInt32:
		if f.Scale != 0 {
			v, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, invalid("%q is not a number", text)
			}
			return v, nil
		}
		v, err := strconv.ParseInt(text, 0, 32)
		if err != nil {
			return nil, invalid("%q is not an int32", text)
		}
		return int32(v), nil
	case structmap.KindUInt32:
		v, err := strconv.ParseUint(text, 0, 32)
		if err != nil {
			return nil, invalid("%q is not a uint32", text)
		}
		return uint32(v), nil
	case structmap.KindEnum:
		if _, ok := f.Cases[text]; ok {
			return text, nil
		}
		v, err := strconv.ParseInt(text, 0, 32)
		if err != nil {
			names := make([]string, 0, len(f.Cases))
			for name := range f.Cases {
				names = append(names, name)
			}
			sort.Strings(names)
			return nil, invalid("%q is not one of %s", text, strings.Join(names, ", "))
		}
		return int32(v), nil
	case structmap.KindFixedString:
		return text, nil
	case structmap.KindFixedArray:
		parts := strings.Split(text, ",")
		out := make([]int64, len(parts))
		for i, p := range parts {
			v, err := strconv.ParseInt(strings.TrimSpace(p), 0, 64)
			if err != nil {
				return nil, invalid("element %d: %q is not an integer", i, p)
			}
			out[i] = v
		}
		return out, nil
	}
	return nil, invalid("unsupported field kind %s", f.Kind)
}
