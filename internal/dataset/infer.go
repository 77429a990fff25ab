package dataset

import "time"

// Type is the inferred semantic type of an attribute column.
type Type string

const (
	TypeInteger  Type = "integer"
	TypeFloat    Type = "float"
	TypeBoolean  Type = "boolean"
	TypeString   Type = "string"
	TypeDateTime Type = "datetime"
	// TypeMixed marks columns whose non-null values span more than one family.
	TypeMixed Type = "mixed"
	// TypeEmpty marks columns with no non-null value at all.
	TypeEmpty Type = "empty"
)

// IsNumeric reports whether t is one of the numeric types.
func (t Type) IsNumeric() bool { return t == TypeInteger || t == TypeFloat }

// InferType classifies a column by its non-null values.
//
// Families are numeric (integers widen to float when any float is present),
// boolean, string ([]byte counts as string), and datetime. A column whose
// values span more than one family is TypeMixed; a column with only nulls is
// TypeEmpty.
func InferType(values []any) Type {
	var ints, floats, bools, strs, times, others int

	for _, v := range values {
		switch v.(type) {
		case nil:
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			ints++
		case float32, float64:
			floats++
		case bool:
			bools++
		case string, []byte:
			strs++
		case time.Time:
			times++
		default:
			others++
		}
	}

	numeric := ints + floats
	families := 0
	if numeric > 0 {
		families++
	}
	if bools > 0 {
		families++
	}
	if strs > 0 {
		families++
	}
	if times > 0 {
		families++
	}

	switch {
	case others > 0 || families > 1:
		return TypeMixed
	case families == 0:
		return TypeEmpty
	case numeric > 0 && floats > 0:
		return TypeFloat
	case numeric > 0:
		return TypeInteger
	case bools > 0:
		return TypeBoolean
	case times > 0:
		return TypeDateTime
	default:
		return TypeString
	}
}

// AsFloat converts a numeric cell value to float64. ok is false for nulls and
// non-numeric values.
func AsFloat(v any) (f float64, ok bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	}
	return 0, false
}
