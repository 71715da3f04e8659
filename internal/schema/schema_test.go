package schema

import (
	"errors"
	"testing"

	"github.com/envlake/envlake/internal/pipeline"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		columns []string
		fields  []Field
		want    Mapping
		wantErr bool
	}{
		{
			name:    "exact case-insensitive match",
			columns: []string{"Date", "O3_ug_m3", "region"},
			fields:  []Field{DateField(true), ValueField("o3_ug_m3", true), LocationField("region", true)},
			want:    Mapping{"date": "Date", "o3_ug_m3": "O3_ug_m3", "region": "region"},
		},
		{
			name:    "synonym match for location",
			columns: []string{"date", "value", "Site_ID"},
			fields:  []Field{DateField(true), LocationField("location", true)},
			want:    Mapping{"date": "date", "location": "Site_ID"},
		},
		{
			name:    "substring fallback for qualified date header",
			columns: []string{"Date Local", "Daily Max 8-hour Ozone Concentration"},
			fields:  []Field{DateField(true), ValueField("o3_ug_m3", true)},
			want:    Mapping{"date": "Date Local", "o3_ug_m3": "Daily Max 8-hour Ozone Concentration"},
		},
		{
			name:    "optional field resolves to empty without error",
			columns: []string{"date", "value"},
			fields:  []Field{DateField(true), LocationField("location", false)},
			want:    Mapping{"date": "date", "location": ""},
		},
		{
			name:    "all missing required fields reported together",
			columns: []string{"foo", "bar"},
			fields:  []Field{DateField(true), LocationField("location", true)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.columns, tt.fields)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				var sve *pipeline.SchemaValidationError
				if !errors.As(err, &sve) {
					t.Fatalf("expected SchemaValidationError, got %T", err)
				}
				if len(sve.Missing) != len(tt.fields) {
					t.Errorf("expected %d missing fields reported, got %v", len(tt.fields), sve.Missing)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for logical, physical := range tt.want {
				if got[logical] != physical {
					t.Errorf("field %q: got %q, want %q", logical, got[logical], physical)
				}
			}
		})
	}
}

func TestMappingHas(t *testing.T) {
	m := Mapping{"date": "Date", "location": ""}
	if !m.Has("date") {
		t.Error("expected Has(date) to be true")
	}
	if m.Has("location") {
		t.Error("expected Has(location) to be false for unresolved field")
	}
}
