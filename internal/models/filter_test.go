// ABOUTME: Tests for metadata filter validation and matching
// ABOUTME: Covers per-field operators and the missing-value policy
package models

import (
	"errors"
	"testing"
)

func TestFilter_Validate(t *testing.T) {
	tests := []struct {
		name    string
		filter  Filter
		wantErr bool
	}{
		{name: "empty filter", filter: nil},
		{name: "rating equality", filter: Filter{Eq(FieldRating, "PG-13")}},
		{name: "year range", filter: Filter(YearBetween(1990, 1999))},
		{name: "year from json number", filter: Filter{{Field: FieldYear, Op: OpGt, Value: float64(2015)}}},
		{name: "year from string", filter: Filter{{Field: FieldYear, Op: OpLt, Value: "2000"}}},
		{name: "unknown field", filter: Filter{{Field: "genre", Op: OpEq, Value: "drama"}}, wantErr: true},
		{name: "range on string field", filter: Filter{{Field: FieldRating, Op: OpGt, Value: "PG"}}, wantErr: true},
		{name: "fractional year", filter: Filter{{Field: FieldYear, Op: OpEq, Value: 1999.5}}, wantErr: true},
		{name: "non-string type", filter: Filter{{Field: FieldType, Op: OpEq, Value: 3}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.filter.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestFilter_ValidateNormalizesYear(t *testing.T) {
	f, err := Filter{{Field: FieldYear, Op: OpGte, Value: float64(1990)}}.Validate()
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if v, ok := f[0].Value.(int); !ok || v != 1990 {
		t.Errorf("expected int 1990, got %#v", f[0].Value)
	}
}

func TestFilter_Matches(t *testing.T) {
	nineties := MovieMetadata{Title: "A", Type: TypeMovie, ReleaseYear: 1995, Rating: "PG"}
	unrated := MovieMetadata{Title: "B", Type: TypeMovie, ReleaseYear: 1995, Rating: MissingRating}
	undated := MovieMetadata{Title: "C", Type: TypeShow, ReleaseYear: MissingReleaseYear, Rating: "TV-MA"}

	mustValidate := func(f Filter) Filter {
		t.Helper()
		v, err := f.Validate()
		if err != nil {
			t.Fatalf("Validate() error: %v", err)
		}
		return v
	}

	tests := []struct {
		name   string
		filter Filter
		meta   MovieMetadata
		want   bool
	}{
		{"no filter matches everything", nil, undated, true},
		{"type and range match", append(Filter{Eq(FieldType, TypeMovie)}, YearBetween(1990, 1999)...), nineties, true},
		{"range excludes", Filter(YearBetween(2000, 2010)), nineties, false},
		{"unrated passes when rating unconstrained", Filter{Eq(FieldType, TypeMovie)}, unrated, true},
		{"unrated never matches rating eq", Filter{Eq(FieldRating, "PG")}, unrated, false},
		{"unrated never matches rating ne", Filter{{Field: FieldRating, Op: OpNe, Value: "R"}}, unrated, false},
		{"undated never matches year lt", Filter{{Field: FieldYear, Op: OpLt, Value: 2000}}, undated, false},
		{"undated passes when year unconstrained", Filter{Eq(FieldRating, "TV-MA")}, undated, true},
		{"year after is strict", Filter{YearAfter(1995)}, nineties, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := mustValidate(tt.filter)
			if got := f.Matches(tt.meta); got != tt.want {
				t.Errorf("Matches() = %v, want %v (filter %s)", got, tt.want, f)
			}
		})
	}
}

func TestCriteria_Filter(t *testing.T) {
	f := Criteria{Type: TypeMovie, Rating: "R", YearMin: 1990, YearMax: 1999}.Filter()
	if len(f) != 4 {
		t.Fatalf("len(Filter()) = %d, want 4", len(f))
	}
	if _, err := f.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	in := MovieMetadata{Type: TypeMovie, Rating: "R", ReleaseYear: 1995}
	out := MovieMetadata{Type: TypeMovie, Rating: "R", ReleaseYear: 2001}
	if !f.Matches(in) || f.Matches(out) {
		t.Errorf("Matches() = %v/%v, want true/false", f.Matches(in), f.Matches(out))
	}
	if got := (Criteria{}).Filter(); got != nil {
		t.Errorf("empty Criteria.Filter() = %v, want nil", got)
	}
}
