// Package control exposes device configuration records as a tree of named
// controls and reads and writes them through deferred transactions.
//
// # Tree
//
// A Node is either a *Leaf, bound to one field of one query's record, or a
// *Composite owning named children. NewQueryControl builds the tree for a
// query from its layout, turning dotted field names into nested composites:
//
//	format            Composite (query "format")
//	├── width         Leaf      field "width"
//	├── height        Leaf      field "height"
//	└── crop          Composite prefix "crop"
//	    ├── left      Leaf      field "crop.left"
//	    └── top       Leaf      field "crop.top"
//
// Composite.Child resolves a dotted path ("crop.left") through an index
// built on first use and dropped whenever the subtree grows. Names are
// ASCII letters, digits, '_' and '-'; there is no way to escape a dot.
//
// # Transactions
//
// Access returns an unbound Accessor; Get binds it to a fetch of the
// record. Builder calls return new values and never modify the receiver:
//
//	err := root.Get().
//		SetTimeout(time.Second).
//		Write("height", 480).
//		Update("width", func(v any) (any, error) { return v.(int32) * 2, nil }).
//		Read(func(v structmap.Values) { fmt.Println(v) }).
//		Execute(ctx)
//
// Executing performs one fetch exchange, resolves every write and update
// against the fetched record (later writes to a field win), commits once if
// anything changed, then decodes the result once for all reads. Any field
// or type error aborts before the commit.
//
// # Concurrency
//
// Trees are safe for concurrent use. Transactions on the same Query are
// serialized in this process, so concurrent updates of one field do not
// lose increments. Nothing orders exchanges issued by other processes.
package control
