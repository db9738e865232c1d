// Package schema describes collection layouts for backup manifests: fields,
// partitions, and index definitions, plus the reconstruction and
// record-normalization rules applied on restore.
package schema

import (
	"fmt"
)

// FieldType identifies the declared type of a collection field.
//
// The manifest stores field types by name, so a manifest written by a newer
// release may carry names this release does not know. Unknown names survive
// decoding unchanged and are downgraded by Reconstruct.
type FieldType string

const (
	FieldTypeBool         FieldType = "Bool"
	FieldTypeInt8         FieldType = "Int8"
	FieldTypeInt16        FieldType = "Int16"
	FieldTypeInt32        FieldType = "Int32"
	FieldTypeInt64        FieldType = "Int64"
	FieldTypeFloat        FieldType = "Float"
	FieldTypeDouble       FieldType = "Double"
	FieldTypeVarChar      FieldType = "VarChar"
	FieldTypeJSON         FieldType = "JSON"
	FieldTypeFloatVector  FieldType = "FloatVector"
	FieldTypeBinaryVector FieldType = "BinaryVector"
)

// Valid reports whether t is a type this release understands.
func (t FieldType) Valid() bool {
	switch t {
	case FieldTypeBool, FieldTypeInt8, FieldTypeInt16, FieldTypeInt32, FieldTypeInt64,
		FieldTypeFloat, FieldTypeDouble, FieldTypeVarChar, FieldTypeJSON,
		FieldTypeFloatVector, FieldTypeBinaryVector:
		return true
	default:
		return false
	}
}

// IsVector reports whether t is an embedding type.
func (t FieldType) IsVector() bool {
	return t == FieldTypeFloatVector || t == FieldTypeBinaryVector
}

// IsInteger reports whether t is a fixed-width integer type.
func (t FieldType) IsInteger() bool {
	switch t {
	case FieldTypeInt8, FieldTypeInt16, FieldTypeInt32, FieldTypeInt64:
		return true
	default:
		return false
	}
}

// String returns the stable name of the type.
func (t FieldType) String() string { return string(t) }

// Field describes a single collection field.
type Field struct {
	Name        string    `json:"name"`
	Type        FieldType `json:"type"`
	IsPrimary   bool      `json:"is_primary,omitempty"`
	AutoID      bool      `json:"auto_id,omitempty"`
	Dim         int       `json:"dim,omitempty"`        // vector types: element count (bits for BinaryVector)
	MaxLength   int       `json:"max_length,omitempty"` // VarChar only
	Description string    `json:"description,omitempty"`
}

// Descriptor is the full field layout of a collection.
//
// Field order is significant and preserved through backup and restore.
type Descriptor struct {
	Description string  `json:"description,omitempty"`
	Fields      []Field `json:"fields"`
}

// Validate checks the descriptor invariants: at least one field, unique field
// names, exactly one primary key of a keyable type, and complete vector and
// varchar attributes.
func (d Descriptor) Validate() error {
	if len(d.Fields) == 0 {
		return fmt.Errorf("schema has no fields")
	}

	seen := make(map[string]struct{}, len(d.Fields))
	primaries := 0

	for _, f := range d.Fields {
		if f.Name == "" {
			return fmt.Errorf("schema has a field with an empty name")
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("duplicate field %q", f.Name)
		}
		seen[f.Name] = struct{}{}

		if !f.Type.Valid() {
			return fmt.Errorf("field %q has unknown type %q", f.Name, f.Type)
		}

		if f.IsPrimary {
			primaries++
			if f.Type != FieldTypeInt64 && f.Type != FieldTypeVarChar {
				return fmt.Errorf("primary key %q must be Int64 or VarChar, got %s", f.Name, f.Type)
			}
		}

		if f.Type.IsVector() && f.Dim <= 0 {
			return fmt.Errorf("vector field %q requires dim > 0", f.Name)
		}
		if f.Type == FieldTypeVarChar && f.MaxLength <= 0 {
			return fmt.Errorf("varchar field %q requires max_length > 0", f.Name)
		}
	}

	if primaries != 1 {
		return fmt.Errorf("schema requires exactly one primary key, got %d", primaries)
	}

	return nil
}

// PrimaryField returns the primary key field.
func (d Descriptor) PrimaryField() (Field, bool) {
	for _, f := range d.Fields {
		if f.IsPrimary {
			return f, true
		}
	}
	return Field{}, false
}

// Field returns the field with the given name.
func (d Descriptor) Field(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// VectorFields returns the embedding fields in declaration order.
func (d Descriptor) VectorFields() []Field {
	var out []Field
	for _, f := range d.Fields {
		if f.Type.IsVector() {
			out = append(out, f)
		}
	}
	return out
}

// FieldNames returns all field names in declaration order.
func (d Descriptor) FieldNames() []string {
	out := make([]string, 0, len(d.Fields))
	for _, f := range d.Fields {
		out = append(out, f.Name)
	}
	return out
}

// ScalarFieldNames returns the names of all non-vector fields in declaration order.
func (d Descriptor) ScalarFieldNames() []string {
	var out []string
	for _, f := range d.Fields {
		if !f.Type.IsVector() {
			out = append(out, f.Name)
		}
	}
	return out
}

// Clone returns a deep copy of the descriptor.
func (d Descriptor) Clone() Descriptor {
	out := d
	out.Fields = make([]Field, len(d.Fields))
	copy(out.Fields, d.Fields)
	return out
}

// DefaultPartitionName is the implicit partition every collection has.
// It is never recreated explicitly on restore.
const DefaultPartitionName = "_default"

// Partition describes a named data partition.
type Partition struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Index describes a vector or scalar index, keyed by field name in the manifest.
type Index struct {
	Type   string         `json:"index_type"`
	Metric string         `json:"metric_type,omitempty"`
	Params map[string]any `json:"params,omitempty"`
}
