// Package masstransfer derives dimensionless groups from measured flow
// quantities and fits the Sherwood power-law correlation
//
//	Sh = a · Re^x1 · Sc^x2
//
// to observed data.
//
// All data is exchanged as named float columns (Columns). Column names are
// case sensitive and follow the conventional symbols: "Re", "Sc", "Sh" for the
// dimensionless groups and lower-case names for the raw quantities.
package masstransfer

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/ironsheep/bubble-tools-mcp/internal/errkind"
)

// Column names understood by DeriveNumbers and ObservationsFromColumns.
const (
	ColVelocity    = "velocity"
	ColDiameter    = "diameter"
	ColViscosity   = "viscosity"
	ColDiffusivity = "diffusivity"

	ColRe = "Re"
	ColSc = "Sc"
	ColSh = "Sh"
)

// Columns is a table of named, equal-length numeric columns.
type Columns map[string][]float64

// Len returns the common column length, or 0 for an empty table. Call
// checkLengths first if the columns may differ.
func (c Columns) Len() int {
	for _, v := range c {
		return len(v)
	}
	return 0
}

// Names returns the column names in sorted order.
func (c Columns) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c Columns) has(names ...string) bool {
	for _, n := range names {
		if _, ok := c[n]; !ok {
			return false
		}
	}
	return true
}

// checkLengths reports columns whose length differs from the first column in
// name order.
func (c Columns) checkLengths() error {
	names := c.Names()
	if len(names) == 0 {
		return nil
	}
	want := len(c[names[0]])
	for _, n := range names[1:] {
		if len(c[n]) != want {
			return fmt.Errorf("column %q has %d values, %q has %d: %w", n, len(c[n]), names[0], want, errkind.ErrInvalidInput)
		}
	}
	return nil
}

// DeriveNumbers adds the dimensionless groups that can be computed from the
// quantities present:
//
//	Re = velocity · diameter / viscosity   (needs all three)
//	Sc = viscosity / diffusivity           (needs both)
//
// Input columns are copied through unchanged, and a group whose inputs are
// missing is simply absent. A derived group replaces an input column of the
// same name.
//
// Mismatched column lengths and zero divisors wrap errkind.ErrInvalidInput.
// The input is not modified.
func DeriveNumbers(cols Columns) (Columns, error) {
	if err := cols.checkLengths(); err != nil {
		return nil, err
	}

	out := make(Columns, len(cols)+2)
	for name, values := range cols {
		out[name] = append([]float64(nil), values...)
	}

	if cols.has(ColVelocity, ColDiameter, ColViscosity) {
		v, d, mu := cols[ColVelocity], cols[ColDiameter], cols[ColViscosity]
		re := make([]float64, len(v))
		for i := range v {
			if mu[i] == 0 {
				return nil, fmt.Errorf("viscosity is zero in row %d: %w", i+1, errkind.ErrInvalidInput)
			}
			re[i] = v[i] * d[i] / mu[i]
		}
		out[ColRe] = re
	}

	if cols.has(ColViscosity, ColDiffusivity) {
		mu, diff := cols[ColViscosity], cols[ColDiffusivity]
		sc := make([]float64, len(mu))
		for i := range mu {
			if diff[i] == 0 {
				return nil, fmt.Errorf("diffusivity is zero in row %d: %w", i+1, errkind.ErrInvalidInput)
			}
			sc[i] = mu[i] / diff[i]
		}
		out[ColSc] = sc
	}

	return out, nil
}

// ValidateColumns checks that every required column is present, that all
// columns have the same length and that the required columns hold only
// finite numbers.
func ValidateColumns(cols Columns, required ...string) error {
	var missing []string
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required columns: %s: %w", strings.Join(missing, ", "), errkind.ErrInvalidInput)
	}

	if err := cols.checkLengths(); err != nil {
		return err
	}

	for _, name := range required {
		for i, v := range cols[name] {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("column %q row %d is not a finite number: %w", name, i+1, errkind.ErrInvalidInput)
			}
		}
	}
	return nil
}

// ReadColumnsCSV reads a CSV table whose first row names the columns. Every
// other cell must parse as a float. Surrounding whitespace is ignored.
func ReadColumnsCSV(r io.Reader) (Columns, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %v: %w", err, errkind.ErrInvalidInput)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("CSV has no header row: %w", errkind.ErrInvalidInput)
	}

	header := records[0]
	cols := make(Columns, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("column %d has an empty name: %w", i+1, errkind.ErrInvalidInput)
		}
		if _, dup := cols[name]; dup {
			return nil, fmt.Errorf("duplicate column %q: %w", name, errkind.ErrInvalidInput)
		}
		header[i] = name
		cols[name] = make([]float64, 0, len(records)-1)
	}

	// Data rows start at line 2
	for i, record := range records[1:] {
		for j, cell := range record {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid %s at line %d: %v: %w", header[j], i+2, err, errkind.ErrInvalidInput)
			}
			cols[header[j]] = append(cols[header[j]], v)
		}
	}

	return cols, nil
}

// ObservationsFromColumns pairs up the Re, Sc and Sh columns row by row.
func ObservationsFromColumns(cols Columns) ([]Observation, error) {
	if err := ValidateColumns(cols, ColRe, ColSc, ColSh); err != nil {
		return nil, err
	}

	re, sc, sh := cols[ColRe], cols[ColSc], cols[ColSh]
	obs := make([]Observation, len(re))
	for i := range re {
		obs[i] = Observation{Re: re[i], Sc: sc[i], Sh: sh[i]}
	}
	return obs, nil
}
