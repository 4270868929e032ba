package masstransfer

import (
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/bubble-tools-mcp/internal/errkind"
)

func rawQuantities() Columns {
	return Columns{
		ColVelocity:    {1.0, 2.0, 3.0},
		ColDiameter:    {0.01, 0.01, 0.01},
		ColViscosity:   {1e-6, 1e-6, 1e-6},
		ColDiffusivity: {1e-9, 1e-9, 1e-9},
	}
}

func TestDeriveNumbers(t *testing.T) {
	in := rawQuantities()

	out, err := DeriveNumbers(in)
	require.NoError(t, err)

	want := Columns{
		ColVelocity:    {1.0, 2.0, 3.0},
		ColDiameter:    {0.01, 0.01, 0.01},
		ColViscosity:   {1e-6, 1e-6, 1e-6},
		ColDiffusivity: {1e-9, 1e-9, 1e-9},
		ColRe:          {1e4, 2e4, 3e4},
		ColSc:          {1e3, 1e3, 1e3},
	}
	if diff := cmp.Diff(want, out, cmpopts.EquateApprox(1e-12, 0)); diff != "" {
		t.Errorf("DeriveNumbers mismatch (-want +got):\n%s", diff)
	}

	// Input untouched
	assert.NotContains(t, in, ColRe)
	assert.NotContains(t, in, ColSc)
}

func TestDeriveNumbers_IsAdditive(t *testing.T) {
	out, err := DeriveNumbers(Columns{
		ColVelocity:  {0.2},
		ColDiameter:  {0.005},
		ColViscosity: {1e-6},
	})
	require.NoError(t, err)

	assert.Contains(t, out, ColRe)
	assert.NotContains(t, out, ColSc)

	out, err = DeriveNumbers(Columns{
		ColViscosity:   {1e-6},
		ColDiffusivity: {2e-9},
	})
	require.NoError(t, err)

	assert.NotContains(t, out, ColRe)
	assert.InDelta(t, 500, out[ColSc][0], 1e-9)
}

func TestDeriveNumbers_NothingDerivable(t *testing.T) {
	in := Columns{"Sh": {10, 20}, "temperature": {293, 298}}

	out, err := DeriveNumbers(in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDeriveNumbers_DoesNotAlias(t *testing.T) {
	in := rawQuantities()
	out, err := DeriveNumbers(in)
	require.NoError(t, err)

	out[ColVelocity][0] = 99
	assert.Equal(t, 1.0, in[ColVelocity][0])
}

func TestDeriveNumbers_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   Columns
	}{
		{"length mismatch", Columns{ColVelocity: {1, 2}, ColDiameter: {1}, ColViscosity: {1, 1}}},
		{"zero viscosity", Columns{ColVelocity: {1}, ColDiameter: {1}, ColViscosity: {0}}},
		{"zero diffusivity", Columns{ColViscosity: {1e-6}, ColDiffusivity: {0}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DeriveNumbers(tt.in)
			assert.ErrorIs(t, err, errkind.ErrInvalidInput)
		})
	}
}

func TestValidateColumns(t *testing.T) {
	cols := Columns{
		ColRe: {100, 200, 300},
		ColSc: {0.7, 0.7, 0.7},
		ColSh: {10, 15, 20},
	}
	assert.NoError(t, ValidateColumns(cols, ColRe, ColSc, ColSh))

	err := ValidateColumns(Columns{ColRe: {1}}, ColRe, ColSc, ColSh)
	require.ErrorIs(t, err, errkind.ErrInvalidInput)
	assert.Contains(t, err.Error(), "Sc, Sh")

	err = ValidateColumns(Columns{ColRe: {1, math.NaN()}, ColSh: {1, 2}}, ColRe)
	assert.ErrorIs(t, err, errkind.ErrInvalidInput)

	err = ValidateColumns(Columns{ColRe: {1, 2}, ColSh: {1}}, ColRe)
	assert.ErrorIs(t, err, errkind.ErrInvalidInput)
}

func TestReadColumnsCSV(t *testing.T) {
	input := "velocity, diameter,viscosity\n0.1,0.002,1e-6\n 0.2 ,0.003,1e-6\n"

	cols, err := ReadColumnsCSV(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{ColDiameter, ColVelocity, ColViscosity}, cols.Names())
	assert.Equal(t, 2, cols.Len())
	assert.Equal(t, []float64{0.1, 0.2}, cols[ColVelocity])
	assert.Equal(t, []float64{0.002, 0.003}, cols[ColDiameter])
}

func TestReadColumnsCSV_HeaderOnly(t *testing.T) {
	cols, err := ReadColumnsCSV(strings.NewReader("Re,Sc,Sh\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, cols.Len())
	assert.Len(t, cols, 3)
}

func TestReadColumnsCSV_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"not a number", "Re,Sh\n100,abc\n"},
		{"ragged row", "Re,Sh\n100,10\n200\n"},
		{"duplicate column", "Re,Re\n1,2\n"},
		{"empty column name", "Re,,Sh\n1,2,3\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadColumnsCSV(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, errkind.ErrInvalidInput)
		})
	}
}

func TestObservationsFromColumns(t *testing.T) {
	obs, err := ObservationsFromColumns(Columns{
		ColRe: {100, 200},
		ColSc: {0.7, 0.8},
		ColSh: {10, 15},
		"T":   {293, 293},
	})
	require.NoError(t, err)

	assert.Equal(t, []Observation{{Re: 100, Sc: 0.7, Sh: 10}, {Re: 200, Sc: 0.8, Sh: 15}}, obs)

	_, err = ObservationsFromColumns(Columns{ColRe: {1}, ColSh: {1}})
	assert.ErrorIs(t, err, errkind.ErrInvalidInput)
}

func TestDeriveThenFit(t *testing.T) {
	// Raw quantities through to a fitted correlation
	cols := Columns{
		ColVelocity:    {0.05, 0.1, 0.15, 0.2, 0.25, 0.3},
		ColDiameter:    {0.002, 0.003, 0.002, 0.004, 0.003, 0.005},
		ColViscosity:   {1e-6, 1e-6, 1.2e-6, 1e-6, 0.9e-6, 1.1e-6},
		ColDiffusivity: {2e-9, 1.5e-9, 2e-9, 1e-9, 2.5e-9, 1.8e-9},
	}
	derived, err := DeriveNumbers(cols)
	require.NoError(t, err)

	sh := make([]float64, derived.Len())
	for i := range sh {
		sh[i] = PredictSherwood(derived[ColRe][i], derived[ColSc][i], 0.9, 0.5, 0.33)
	}
	derived[ColSh] = sh

	obs, err := ObservationsFromColumns(derived)
	require.NoError(t, err)

	fit, err := FitPowerLaw(obs)
	require.NoError(t, err)
	assert.True(t, fit.Converged)
	assert.Greater(t, fit.RSquared, 0.999)
}
