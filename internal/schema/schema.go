// Package schema resolves the logical fields the pipeline needs (date, value,
// location) against the physical column headers of an input dataset. Matching
// is case-insensitive with per-field synonym lists, and all failures are
// collected before reporting so a bad file is diagnosed in one pass.
package schema

import (
	"strings"

	"github.com/envlake/envlake/internal/pipeline"
)

// Field declares one logical field to resolve.
type Field struct {
	// Name is the logical name, e.g. "date".
	Name string

	// Synonyms are alternate physical names accepted for this field,
	// compared case-insensitively after trimming.
	Synonyms []string

	// Required fields that fail to resolve produce a SchemaValidationError.
	// Optional fields resolve to "" without error.
	Required bool

	// Substring permits a fallback match on any header containing Name or
	// one of the Synonyms. Used for fields like "date" where exports
	// qualify the header
	// ("Date Local", "measurement_date_utc").
	Substring bool
}

// Mapping is the resolved logical-to-physical column mapping.
type Mapping map[string]string

// Has reports whether the logical field resolved to a physical column.
func (m Mapping) Has(logical string) bool { return m[logical] != "" }

// DateField returns the standard declaration for the date column.
func DateField(required bool) Field {
	return Field{
		Name:      "date",
		Synonyms:  []string{"dt", "date_local", "date local", "measurement_date", "measurement_date_utc", "utc"},
		Required:  required,
		Substring: true,
	}
}

// ValueField returns the declaration for the primary measurement column.
// name is the operator-requested column (e.g. "o3_ug_m3").
func ValueField(name string, required bool) Field {
	return Field{
		Name:      name,
		Synonyms:  []string{"value", "o3", "ozone", "concentration"},
		Required:  required,
		Substring: true,
	}
}

// LocationField returns the declaration for the location/region column.
func LocationField(name string, required bool) Field {
	return Field{
		Name:     name,
		Synonyms: []string{"location", "region", "site", "site_id"},
		Required: required,
	}
}

// Resolve maps each declared field to an actual column header. It is a pure
// lookup: the dataset itself is not touched. Every unresolved required field
// is reported together in a single SchemaValidationError.
func Resolve(columns []string, fields []Field) (Mapping, error) {
	norm := make([]string, len(columns))
	for i, c := range columns {
		norm[i] = strings.ToLower(strings.TrimSpace(c))
	}

	mapping := make(Mapping, len(fields))
	var missing []string

	for _, f := range fields {
		actual := resolveOne(columns, norm, f)
		if actual == "" && f.Required {
			missing = append(missing, f.Name)
			continue
		}
		mapping[f.Name] = actual
	}

	if len(missing) > 0 {
		return nil, &pipeline.SchemaValidationError{Missing: missing, Available: columns}
	}
	return mapping, nil
}

func resolveOne(columns, norm []string, f Field) string {
	want := strings.ToLower(strings.TrimSpace(f.Name))

	// Exact match on the logical name wins.
	for i, n := range norm {
		if n == want {
			return columns[i]
		}
	}

	// Then synonyms, in declaration order.
	for _, syn := range f.Synonyms {
		s := strings.ToLower(strings.TrimSpace(syn))
		for i, n := range norm {
			if n == s {
				return columns[i]
			}
		}
	}

	// Last resort: a header containing the logical name or a synonym.
	if f.Substring {
		needles := append([]string{want}, f.Synonyms...)
		for _, needle := range needles {
			s := strings.ToLower(strings.TrimSpace(needle))
			for i, n := range norm {
				if strings.Contains(n, s) {
					return columns[i]
				}
			}
		}
	}

	return ""
}
