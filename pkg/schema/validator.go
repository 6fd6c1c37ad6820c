// Package schema implements the declarative streaming validator: a named
// field-table walker that checks a fully-parsed JSON value against a
// registered shape — enums, required/optional+default fields, numeric
// bounds, array minimum-length, and discriminated unions — without
// depending on a JSON-schema library.
//
// The teacher repo's own schema package (Validator/Schema interfaces with
// JSONSchema() map output) left Validate as a TODO pointing at two
// third-party libraries it never actually imported. Neither library
// appears in this repo's dependency set for the same reason it didn't
// appear in the teacher's: the shapes this gateway validates (a handful of
// named, enum/union/bounds-flavored reply and tool schemas) are small and
// fixed enough that a declarative Go field table is the natural fit, the
// same way the teacher expresses other declarative concerns (tool
// examples, default-settings merge) as plain Go structs walked at
// runtime rather than through a schema DSL.
package schema

import "fmt"

// Kind is the primitive or composite shape a Field must take.
type Kind string

const (
	KindString Kind = "string"
	KindNumber Kind = "number"
	KindBool   Kind = "bool"
	KindArray  Kind = "array"
	KindObject Kind = "object"
	KindAny    Kind = "any"
)

// Field describes one named member of a FieldSet.
type Field struct {
	Name       string
	Kind       Kind
	Required   bool
	HasDefault bool
	Default    interface{}

	// Enum restricts a string field to one of these values, when non-empty.
	Enum []string

	// Min/Max bound a number field, when non-nil.
	Min *float64
	Max *float64

	// MinItems bounds an array field's minimum length.
	MinItems int

	// ItemKind validates each element of an array of scalars (e.g.
	// KindString for an array of strings). Ignored when Items is set.
	ItemKind Kind

	// Items validates each element of an array of objects.
	Items *FieldSet

	// Properties validates the members of an object-kind field.
	Properties *FieldSet
}

// FieldSet is either a flat set of fields, or — when Discriminant is
// non-empty — a tagged union resolved by the value of the Discriminant
// field among Variants.
type FieldSet struct {
	Fields []Field

	Discriminant string
	Variants     map[string]*FieldSet
}

// Validate checks data (as produced by encoding/json.Unmarshal into
// map[string]interface{}) against fs, appending one message per problem
// found. An empty return means data satisfies the shape.
func (fs *FieldSet) Validate(path string, data map[string]interface{}) []string {
	if fs.Discriminant != "" {
		return fs.validateUnion(path, data)
	}
	var errs []string
	for _, f := range fs.Fields {
		v, present := data[f.Name]
		fieldPath := joinPath(path, f.Name)
		if !present {
			if f.Required && !f.HasDefault {
				errs = append(errs, fieldPath+": required field missing")
			}
			continue
		}
		errs = append(errs, validateValue(fieldPath, f, v)...)
	}
	return errs
}

func (fs *FieldSet) validateUnion(path string, data map[string]interface{}) []string {
	raw, present := data[fs.Discriminant]
	if !present {
		return []string{joinPath(path, fs.Discriminant) + ": discriminant field missing"}
	}
	tag, ok := raw.(string)
	if !ok {
		return []string{joinPath(path, fs.Discriminant) + ": discriminant must be a string"}
	}
	variant, ok := fs.Variants[tag]
	if !ok {
		return []string{joinPath(path, fs.Discriminant) + fmt.Sprintf(": unknown variant %q", tag)}
	}
	return variant.Validate(path, data)
}

func validateValue(path string, f Field, v interface{}) []string {
	switch f.Kind {
	case KindString:
		s, ok := v.(string)
		if !ok {
			return []string{path + ": expected string"}
		}
		if len(f.Enum) > 0 && !containsString(f.Enum, s) {
			return []string{path + fmt.Sprintf(": %q is not one of %v", s, f.Enum)}
		}
		return nil

	case KindNumber:
		n, ok := v.(float64)
		if !ok {
			return []string{path + ": expected number"}
		}
		var errs []string
		if f.Min != nil && n < *f.Min {
			errs = append(errs, path+fmt.Sprintf(": %v is below minimum %v", n, *f.Min))
		}
		if f.Max != nil && n > *f.Max {
			errs = append(errs, path+fmt.Sprintf(": %v is above maximum %v", n, *f.Max))
		}
		return errs

	case KindBool:
		if _, ok := v.(bool); !ok {
			return []string{path + ": expected bool"}
		}
		return nil

	case KindArray:
		arr, ok := v.([]interface{})
		if !ok {
			return []string{path + ": expected array"}
		}
		var errs []string
		if len(arr) < f.MinItems {
			errs = append(errs, path+fmt.Sprintf(": expected at least %d item(s), got %d", f.MinItems, len(arr)))
		}
		for i, el := range arr {
			elPath := fmt.Sprintf("%s[%d]", path, i)
			switch {
			case f.Items != nil:
				m, ok := el.(map[string]interface{})
				if !ok {
					errs = append(errs, elPath+": expected object")
					continue
				}
				errs = append(errs, f.Items.Validate(elPath, m)...)
			case f.ItemKind != "" && f.ItemKind != KindAny:
				errs = append(errs, validateValue(elPath, Field{Kind: f.ItemKind}, el)...)
			}
		}
		return errs

	case KindObject:
		m, ok := v.(map[string]interface{})
		if !ok {
			return []string{path + ": expected object"}
		}
		if f.Properties != nil {
			return f.Properties.Validate(path, m)
		}
		return nil

	case KindAny:
		return nil

	default:
		return []string{path + fmt.Sprintf(": unknown field kind %q", f.Kind)}
	}
}

func containsString(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func joinPath(base, name string) string {
	if base == "" {
		return name
	}
	return base + "." + name
}
