package schema

import "fmt"

// DowngradeMaxLength is the varchar capacity assigned to fields whose
// original type is not understood by this release.
const DowngradeMaxLength = 65535

// ReconstructionError reports a descriptor that cannot be turned into a
// usable collection layout, even after downgrades.
type ReconstructionError struct {
	Field  string // empty when the whole descriptor is at fault
	Reason string
}

func (e *ReconstructionError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("schema reconstruction: field %q: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("schema reconstruction: %s", e.Reason)
}

// Reconstruct turns a descriptor read from a manifest into one this release
// can create a collection from.
//
// Fields with unknown types are downgraded to VarChar and reported as
// warnings; their values are stringified on load. Structural defects that no
// downgrade can repair (no fields, no primary key, duplicate names) return a
// *ReconstructionError.
func Reconstruct(d Descriptor) (Descriptor, []string, error) {
	if len(d.Fields) == 0 {
		return Descriptor{}, nil, &ReconstructionError{Reason: "schema has no fields"}
	}

	out := d.Clone()

	var warnings []string
	for i, f := range out.Fields {
		if f.Type.Valid() {
			continue
		}
		warnings = append(warnings, fmt.Sprintf("field %q: unknown type %q downgraded to %s", f.Name, f.Type, FieldTypeVarChar))
		out.Fields[i].Type = FieldTypeVarChar
		out.Fields[i].MaxLength = DowngradeMaxLength
		out.Fields[i].Dim = 0
	}

	if err := out.Validate(); err != nil {
		return Descriptor{}, warnings, &ReconstructionError{Reason: err.Error()}
	}

	return out, warnings, nil
}
