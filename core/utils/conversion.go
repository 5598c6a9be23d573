package utils

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"time"
)

// SQLTimeLayout is the text form databases use for DATETIME values.
// Trailing zero fractional seconds are dropped.
const SQLTimeLayout = "2006-01-02 15:04:05.999999999"

// ToString converts various types to string in the form a database returns
// them as text: booleans are 1 or 0, times use SQLTimeLayout in their own
// location, byte slices are read as text.
func ToString(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case bool:
		if v {
			return "1"
		}
		return "0"
	case time.Time:
		return v.Format(SQLTimeLayout)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ParseInt reports whether s is a base-10 integer and returns its value.
func ParseInt(s string) (int64, bool) {
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return i, true
}

// FromJSONNumber converts a decoded JSON number to int64 or uint64 when it is
// an integer in range, and to float64 when that is exact. Anything else is
// kept as its literal text so no precision is lost.
func FromJSONNumber(n json.Number) any {
	if i, err := n.Int64(); err == nil {
		return i
	}
	if u, err := strconv.ParseUint(n.String(), 10, 64); err == nil {
		return u
	}
	f, err := n.Float64()
	if err != nil {
		return n.String()
	}
	exact, ok := new(big.Rat).SetString(n.String())
	if !ok {
		return n.String()
	}
	if got := new(big.Rat).SetFloat64(f); got == nil || got.Cmp(exact) != 0 {
		return n.String()
	}
	return f
}
