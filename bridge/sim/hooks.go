package sim

import (
	"encoding/binary"
	"fmt"
)

// ClampInt32 returns a hook that clamps the little-endian int32 at offset
// into [lo, hi], as a driver adjusting an out-of-range request would.
func ClampInt32(offset int, lo, hi int32) Hook {
	return func(id int32, rec []byte) error {
		if offset < 0 || offset+4 > len(rec) {
			return fmt.Errorf("sim: query %d: clamp offset %d outside %d-byte record", id, offset, len(rec))
		}
		v := int32(binary.LittleEndian.Uint32(rec[offset:]))
		v = max(lo, min(hi, v))
		binary.LittleEndian.PutUint32(rec[offset:], uint32(v))
		return nil
	}
}

// RejectUint32 returns a hook failing any write whose little-endian uint32
// at offset is not one of allowed.
func RejectUint32(offset int, err error, allowed ...uint32) Hook {
	return func(id int32, rec []byte) error {
		if offset < 0 || offset+4 > len(rec) {
			return fmt.Errorf("sim: query %d: offset %d outside %d-byte record", id, offset, len(rec))
		}
		v := binary.LittleEndian.Uint32(rec[offset:])
		for _, a := range allowed {
			if v == a {
				return nil
			}
		}
		return fmt.Errorf("%w: query %d: value %d", err, id, v)
	}
}
