package features

import (
	"errors"
	"fmt"
	"sort"
)

// Schema is the named set of feature columns a predictor was trained on. It
// is stored alongside the trained predictors and compared by set equality at
// inference time; column order carries no meaning.
type Schema struct {
	Version string   `json:"version"`
	Columns []string `json:"columns"`
}

// LagSchema returns the training schema of all lag columns: 13 variables at
// offsets 1 through 7. Description columns are not predictor inputs.
func LagSchema(version string) Schema {
	cols := make([]string, 0, NumVariables*LagDays)
	for _, v := range Variables() {
		for k := 1; k <= LagDays; k++ {
			cols = append(cols, LagColumn(v, k))
		}
	}
	return Schema{Version: version, Columns: cols}
}

// Validate checks that the schema names known, distinct lag columns. Same-day
// values and the encoded description are not known when a day is predicted.
func (s Schema) Validate() error {
	if s.Version == "" {
		return errors.New("schema version is empty")
	}
	if len(s.Columns) == 0 {
		return fmt.Errorf("schema %s has no columns", s.Version)
	}
	seen := make(map[string]bool, len(s.Columns))
	for _, col := range s.Columns {
		ref, ok := columnIndex[col]
		if !ok {
			return fmt.Errorf("schema %s: unknown column %q", s.Version, col)
		}
		if ref.kind != kindLag {
			return fmt.Errorf("schema %s: column %q is not a lag column", s.Version, col)
		}
		if seen[col] {
			return fmt.Errorf("schema %s: duplicate column %q", s.Version, col)
		}
		seen[col] = true
	}
	return nil
}

// Select restricts v to exactly the schema columns.
func (s Schema) Select(v Vector) (Columns, error) {
	cols := make(Columns, len(s.Columns))
	var missing []string
	for _, name := range s.Columns {
		val, ok := v.Column(name)
		if !ok {
			missing = append(missing, name)
			continue
		}
		cols[name] = val
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Version: s.Version, Missing: missing}
	}
	return cols, nil
}

// Check requires cols to hold exactly the schema columns.
func (s Schema) Check(cols Columns) error {
	want := make(map[string]bool, len(s.Columns))
	var missing, extra []string
	for _, name := range s.Columns {
		want[name] = true
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	for name := range cols {
		if !want[name] {
			extra = append(extra, name)
		}
	}
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}
	sort.Strings(extra)
	return &SchemaError{Version: s.Version, Missing: missing, Extra: extra}
}

// Equal reports whether both schemas name the same column set.
func (s Schema) Equal(other Schema) bool {
	if len(s.Columns) != len(other.Columns) {
		return false
	}
	set := make(map[string]bool, len(s.Columns))
	for _, c := range s.Columns {
		set[c] = true
	}
	for _, c := range other.Columns {
		if !set[c] {
			return false
		}
	}
	return true
}

// Match returns a *SchemaError naming the differences unless s covers exactly
// the columns of want.
func (s Schema) Match(want Schema) error {
	if s.Equal(want) {
		return nil
	}
	cols := make(Columns, len(s.Columns))
	for _, c := range s.Columns {
		cols[c] = 0
	}
	err := want.Check(cols)
	var schemaErr *SchemaError
	if errors.As(err, &schemaErr) {
		schemaErr.Version = s.Version
	}
	return err
}
