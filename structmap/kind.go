package structmap

// Kind is the type tag of a field.
type Kind uint8

const (
	KindInt32 Kind = iota
	KindUInt32
	KindEnum
	KindFixedString
	KindFixedArray

	// KindUInt8 is only valid as the element kind of a fixed array.
	KindUInt8
)

var kindNames = [...]string{
	KindInt32:       "int32",
	KindUInt32:      "uint32",
	KindEnum:        "enum",
	KindFixedString: "string",
	KindFixedArray:  "array",
	KindUInt8:       "uint8",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// ParseKind maps a kind name back to its Kind.
func ParseKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return Kind(k), true
		}
	}
	return 0, false
}

// IsScalar reports whether the kind occupies a single 32-bit word.
func (k Kind) IsScalar() bool {
	return k == KindInt32 || k == KindUInt32 || k == KindEnum
}

// elemSize is the width of one element of the kind, or 0 for variable kinds.
func (k Kind) elemSize() uint32 {
	switch k {
	case KindInt32, KindUInt32, KindEnum:
		return 4
	case KindUInt8:
		return 1
	default:
		return 0
	}
}
