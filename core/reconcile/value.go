package reconcile

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"table-sync/core/utils"
)

// Value is a nullable scalar column value. The zero Value is NULL.
type Value struct {
	v     any
	valid bool
}

// Null returns the NULL value.
func Null() Value {
	return Value{}
}

// NewValue wraps a scalar. Accepted types are nil, strings, byte slices (stored
// as strings), booleans, integer and floating point types, time.Time,
// json.Number and any driver.Valuer resolving to one of those.
func NewValue(v any) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Value{}, nil
	case string, bool, time.Time,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return Value{v: t, valid: true}, nil
	case []byte:
		if t == nil {
			return Value{}, nil
		}
		return Value{v: string(t), valid: true}, nil
	case json.Number:
		return Value{v: utils.FromJSONNumber(t), valid: true}, nil
	case driver.Valuer:
		dv, err := t.Value()
		if err != nil {
			return Value{}, fmt.Errorf("resolve %T: %w", v, err)
		}
		if _, nested := dv.(driver.Valuer); nested {
			return Value{}, fmt.Errorf("unsupported value type %T", v)
		}
		return NewValue(dv)
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", v)
	}
}

// MustValue is like NewValue but panics on unsupported types.
func MustValue(v any) Value {
	val, err := NewValue(v)
	if err != nil {
		panic(err)
	}
	return val
}

// IsNull reports whether v is NULL.
func (v Value) IsNull() bool {
	return !v.valid
}

// Interface returns the wrapped scalar, or nil for NULL.
func (v Value) Interface() any {
	if !v.valid {
		return nil
	}
	return v.v
}

// String returns the string form used for comparison. NULL renders as "NULL".
func (v Value) String() string {
	if !v.valid {
		return "NULL"
	}
	return utils.ToString(v.v)
}

// Equal implements null-aware equality.
func (v Value) Equal(o Value) bool {
	if !v.valid || !o.valid {
		return v.valid == o.valid
	}
	return utils.ToString(v.v) == utils.ToString(o.v)
}

// MarshalJSON encodes NULL as null and other values as their scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// RowFromMap validates every value of m and returns it as a Row.
func RowFromMap(m map[string]any) (Row, error) {
	row := make(Row, len(m))
	for name, raw := range m {
		if name == "" {
			return nil, &ConfigurationError{Field: "column", Reason: "empty column name"}
		}
		val, err := NewValue(raw)
		if err != nil {
			return nil, &ConfigurationError{Field: "column " + name, Reason: err.Error()}
		}
		row[name] = val
	}
	return row, nil
}
