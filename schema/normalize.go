package schema

import (
	"encoding/base64"
	"fmt"

	"github.com/hupe1980/vecback/codec"
)

// Coercion records a fallback applied to one record field during
// normalization. Wire-canonical conversions (JSON numbers back to their
// declared widths, numeric slices back to []float32) are silent; coercions
// mark the repairs an operator should know about.
type Coercion struct {
	Field  string
	Detail string
}

// NormalizeRecord converts a decoded record into an insert-ready row for the
// given descriptor.
//
// Values are canonicalized to the declared field types: integer fields to
// int64, Float to float32, Double to float64, FloatVector to []float32,
// BinaryVector to []byte. Auto-generated primary keys are dropped so the
// target store can reassign them. Absent fields, null values, stringified
// varchar fallbacks and dropped extra fields are returned as coercions;
// values that cannot be represented at all return an error.
func NormalizeRecord(d Descriptor, rec map[string]any) (map[string]any, []Coercion, error) {
	out := make(map[string]any, len(d.Fields))

	var coercions []Coercion
	note := func(field, detail string) {
		coercions = append(coercions, Coercion{Field: field, Detail: detail})
	}

	for _, f := range d.Fields {
		v, ok := rec[f.Name]
		if f.IsPrimary && f.AutoID {
			continue
		}
		if !ok {
			note(f.Name, "absent")
			continue
		}
		if v == nil {
			note(f.Name, "null")
			out[f.Name] = nil
			continue
		}

		nv, detail, err := normalizeValue(f, v)
		if err != nil {
			return nil, coercions, fmt.Errorf("field %q: %w", f.Name, err)
		}
		if detail != "" {
			note(f.Name, detail)
		}
		out[f.Name] = nv
	}

	for k := range rec {
		if _, ok := d.Field(k); !ok {
			note(k, "extra field dropped")
		}
	}

	return out, coercions, nil
}

func normalizeValue(f Field, v any) (any, string, error) {
	switch {
	case f.Type.IsInteger():
		n, ok := toInt64(v)
		if !ok {
			return nil, "", fmt.Errorf("cannot represent %T as %s", v, f.Type)
		}
		return n, "", nil

	case f.Type == FieldTypeFloat:
		n, ok := toFloat64(v)
		if !ok {
			return nil, "", fmt.Errorf("cannot represent %T as %s", v, f.Type)
		}
		return float32(n), "", nil

	case f.Type == FieldTypeDouble:
		n, ok := toFloat64(v)
		if !ok {
			return nil, "", fmt.Errorf("cannot represent %T as %s", v, f.Type)
		}
		return n, "", nil

	case f.Type == FieldTypeBool:
		b, ok := v.(bool)
		if !ok {
			return nil, "", fmt.Errorf("cannot represent %T as %s", v, f.Type)
		}
		return b, "", nil

	case f.Type == FieldTypeVarChar:
		if s, ok := v.(string); ok {
			return s, "", nil
		}
		if b, ok := v.([]byte); ok {
			return string(b), "", nil
		}
		// Downgraded fields carry values of their original type; keep them
		// readable instead of failing the row.
		raw, err := codec.Default.Marshal(v)
		if err != nil {
			return nil, "", fmt.Errorf("cannot stringify %T: %w", v, err)
		}
		return string(raw), fmt.Sprintf("%T stringified", v), nil

	case f.Type == FieldTypeJSON:
		return v, "", nil

	case f.Type == FieldTypeFloatVector:
		vec, err := toFloat32Slice(v)
		if err != nil {
			return nil, "", err
		}
		if len(vec) != f.Dim {
			return nil, "", fmt.Errorf("vector has dim %d, want %d", len(vec), f.Dim)
		}
		return vec, "", nil

	case f.Type == FieldTypeBinaryVector:
		var raw []byte
		switch bv := v.(type) {
		case []byte:
			raw = bv
		case string:
			dec, err := base64.StdEncoding.DecodeString(bv)
			if err != nil {
				return nil, "", fmt.Errorf("binary vector: %w", err)
			}
			raw = dec
		default:
			return nil, "", fmt.Errorf("cannot represent %T as %s", v, f.Type)
		}
		if len(raw)*8 != f.Dim {
			return nil, "", fmt.Errorf("binary vector has %d bits, want %d", len(raw)*8, f.Dim)
		}
		return raw, "", nil

	default:
		return nil, "", fmt.Errorf("unsupported field type %q", f.Type)
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
		return 0, false
	case float32:
		if float64(n) == float64(int64(n)) {
			return int64(n), true
		}
		return 0, false
	default:
		return 0, false
	}
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func toFloat32Slice(v any) ([]float32, error) {
	switch vec := v.(type) {
	case []float32:
		out := make([]float32, len(vec))
		copy(out, vec)
		return out, nil
	case []float64:
		out := make([]float32, len(vec))
		for i, n := range vec {
			out[i] = float32(n)
		}
		return out, nil
	case []any:
		out := make([]float32, len(vec))
		for i, e := range vec {
			n, ok := toFloat64(e)
			if !ok {
				return nil, fmt.Errorf("vector element %d: cannot represent %T", i, e)
			}
			out[i] = float32(n)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("cannot represent %T as a float vector", v)
	}
}
