package schema

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRecordCanonicalizesWireTypes(t *testing.T) {
	d := docSchema()

	// The shapes a JSON decode produces: numbers become float64, vectors
	// become []any.
	rec := map[string]any{
		"id":       float64(7),
		"content":  "hello",
		"priority": float64(3),
		"score":    float64(0.5),
		"vector":   []any{float64(0), float64(1), float64(2), float64(3), float64(4), float64(5), float64(6), float64(7)},
	}

	out, coercions, err := NormalizeRecord(d, rec)
	require.NoError(t, err)
	assert.Empty(t, coercions)

	// Auto-id primary key is dropped for reassignment by the target store.
	_, hasID := out["id"]
	assert.False(t, hasID)

	assert.Equal(t, "hello", out["content"])
	assert.Equal(t, int64(3), out["priority"])
	assert.Equal(t, float32(0.5), out["score"])
	assert.Equal(t, []float32{0, 1, 2, 3, 4, 5, 6, 7}, out["vector"])
}

func TestNormalizeRecordFlagsFallbacks(t *testing.T) {
	d := docSchema()

	rec := map[string]any{
		"content":  map[string]any{"nested": true}, // stringified
		"priority": nil,                            // explicit null
		"score":    float64(1),
		"vector":   []any{float64(0), 1.0, 2.0, 3.0, 4.0, 5.0, 6.0, 7.0},
		"leftover": "dropped",
	}

	out, coercions, err := NormalizeRecord(d, rec)
	require.NoError(t, err)

	byField := map[string]string{}
	for _, c := range coercions {
		byField[c.Field] = c.Detail
	}

	assert.Contains(t, byField["content"], "stringified")
	assert.Equal(t, "null", byField["priority"])
	assert.Equal(t, "extra field dropped", byField["leftover"])

	assert.JSONEq(t, `{"nested":true}`, out["content"].(string))
	_, hasLeftover := out["leftover"]
	assert.False(t, hasLeftover)
}

func TestNormalizeRecordAbsentField(t *testing.T) {
	d := docSchema()

	out, coercions, err := NormalizeRecord(d, map[string]any{
		"content": "x",
		"score":   float64(2),
		"vector":  make([]float32, 8),
	})
	require.NoError(t, err)
	require.Len(t, coercions, 1)
	assert.Equal(t, "priority", coercions[0].Field)
	assert.Equal(t, "absent", coercions[0].Detail)

	_, ok := out["priority"]
	assert.False(t, ok)
}

func TestNormalizeRecordErrors(t *testing.T) {
	d := docSchema()

	_, _, err := NormalizeRecord(d, map[string]any{
		"content":  "x",
		"priority": 1.5, // non-integral
		"score":    float64(0),
		"vector":   make([]float32, 8),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "priority")

	_, _, err = NormalizeRecord(d, map[string]any{
		"content": "x",
		"score":   float64(0),
		"vector":  make([]float32, 4), // wrong dim
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dim")
}

func TestNormalizeRecordBinaryVector(t *testing.T) {
	d := Descriptor{Fields: []Field{
		{Name: "id", Type: FieldTypeInt64, IsPrimary: true},
		{Name: "bits", Type: FieldTypeBinaryVector, Dim: 16},
	}}

	raw := []byte{0xAB, 0xCD}

	// JSON round trips []byte as base64.
	out, coercions, err := NormalizeRecord(d, map[string]any{
		"id":   float64(1),
		"bits": base64.StdEncoding.EncodeToString(raw),
	})
	require.NoError(t, err)
	assert.Empty(t, coercions)
	assert.Equal(t, raw, out["bits"])

	_, _, err = NormalizeRecord(d, map[string]any{
		"id":   float64(1),
		"bits": []byte{0xAB}, // 8 bits, want 16
	})
	require.Error(t, err)
}
