package abi

import "math"

// CoerceToInt32 handles JSON decoded numbers (float64) and other numeric types.
func CoerceToInt32(value any) (int32, bool) {
	switch v := value.(type) {
	case int32:
		return v, true
	case int8:
		return int32(v), true
	case int16:
		return int32(v), true
	case uint8:
		return int32(v), true
	case uint16:
		return int32(v), true
	case float64:
		if v >= math.MinInt32 && v <= math.MaxInt32 && v == math.Trunc(v) {
			return int32(v), true
		}
	case float32:
		return CoerceToInt32(float64(v))
	case int:
		if v >= math.MinInt32 && v <= math.MaxInt32 {
			return int32(v), true
		}
	case int64:
		if v >= math.MinInt32 && v <= math.MaxInt32 {
			return int32(v), true
		}
	case uint:
		if v <= math.MaxInt32 {
			return int32(v), true
		}
	case uint32:
		if v <= math.MaxInt32 {
			return int32(v), true
		}
	case uint64:
		if v <= math.MaxInt32 {
			return int32(v), true
		}
	}
	return 0, false
}

// CoerceToUint32 handles JSON decoded numbers (float64) and other numeric types.
func CoerceToUint32(value any) (uint32, bool) {
	switch v := value.(type) {
	case uint32:
		return v, true
	case uint8:
		return uint32(v), true
	case uint16:
		return uint32(v), true
	case float64:
		if v >= 0 && v <= math.MaxUint32 && v == math.Trunc(v) {
			return uint32(v), true
		}
	case float32:
		return CoerceToUint32(float64(v))
	case int:
		if v >= 0 && v <= math.MaxUint32 {
			return uint32(v), true
		}
	case int8:
		if v >= 0 {
			return uint32(v), true
		}
	case int16:
		if v >= 0 {
			return uint32(v), true
		}
	case int32:
		if v >= 0 {
			return uint32(v), true
		}
	case int64:
		if v >= 0 && v <= math.MaxUint32 {
			return uint32(v), true
		}
	case uint:
		if v <= math.MaxUint32 {
			return uint32(v), true
		}
	case uint64:
		if v <= math.MaxUint32 {
			return uint32(v), true
		}
	}
	return 0, false
}

// CoerceToUint8 narrows any integer-valued number to a byte.
func CoerceToUint8(value any) (uint8, bool) {
	if b, ok := value.(uint8); ok {
		return b, true
	}
	v, ok := CoerceToUint32(value)
	if !ok || v > math.MaxUint8 {
		return 0, false
	}
	return uint8(v), true
}

// CoerceToFloat64 accepts any real number, integral or not.
func CoerceToFloat64(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, !math.IsNaN(v) && !math.IsInf(v, 0)
	case float32:
		return CoerceToFloat64(float64(v))
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	}
	return 0, false
}
