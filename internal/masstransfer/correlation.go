package masstransfer

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"github.com/ironsheep/bubble-tools-mcp/internal/errkind"
)

// MinObservations is the smallest data set FitPowerLaw accepts: one per
// fitted parameter.
const MinObservations = 3

// DefaultInitialGuess is the (a, x1, x2) starting point of the search, a
// typical laminar mass-transfer correlation.
var DefaultInitialGuess = [3]float64{1.0, 0.5, 0.33}

const (
	defaultMaxIterations = 5000
	defaultTolerance     = 1e-12

	// Iterations without significant improvement before the search stops.
	stallIterations = 100
)

// Observation is one measured data point. Re and Sc must be positive.
type Observation struct {
	Re float64 `json:"re"`
	Sc float64 `json:"sc"`
	Sh float64 `json:"sh"`
}

// FitResult holds the fitted correlation Sh = A · Re^X1 · Sc^X2.
type FitResult struct {
	A  float64 `json:"a"`
	X1 float64 `json:"x1"`
	X2 float64 `json:"x2"`

	// Converged is false when the search stopped on a limit rather than
	// because the objective stopped improving. The parameters are then the
	// best found so far and should not be trusted.
	Converged bool `json:"converged"`

	// SSE is the final sum of squared Sherwood residuals.
	SSE float64 `json:"sse"`

	// RSquared is the coefficient of determination of the fit; 0 when the
	// observed Sh values have no spread.
	RSquared float64 `json:"r_squared"`

	Iterations  int    `json:"iterations"`
	Evaluations int    `json:"evaluations"`
	Status      string `json:"status"`
}

// Err returns nil for a converged fit and an error wrapping
// errkind.ErrNotConverged otherwise.
func (r *FitResult) Err() error {
	if r.Converged {
		return nil
	}
	return fmt.Errorf("search stopped with status %s after %d iterations: %w", r.Status, r.Iterations, errkind.ErrNotConverged)
}

// Predict evaluates the fitted correlation.
func (r *FitResult) Predict(re, sc float64) float64 {
	return PredictSherwood(re, sc, r.A, r.X1, r.X2)
}

type fitSettings struct {
	initial       [3]float64
	maxIterations int
	tolerance     float64
}

// FitOption adjusts the search performed by FitPowerLaw.
type FitOption func(*fitSettings)

// WithInitialGuess starts the search from (a, x1, x2).
func WithInitialGuess(a, x1, x2 float64) FitOption {
	return func(s *fitSettings) {
		s.initial = [3]float64{a, x1, x2}
	}
}

// WithMaxIterations caps the number of simplex iterations.
func WithMaxIterations(n int) FitOption {
	return func(s *fitSettings) {
		s.maxIterations = n
	}
}

// WithTolerance sets the absolute objective improvement below which the
// search counts as stalled.
func WithTolerance(tol float64) FitOption {
	return func(s *fitSettings) {
		s.tolerance = tol
	}
}

// FitPowerLaw fits Sh = a · Re^x1 · Sc^x2 to the observations by minimising
// the sum of squared residuals with the Nelder-Mead simplex method.
//
// Parameters:
//   - obs: At least MinObservations data points.
//   - opts: Optional search settings. By default the search starts at
//     DefaultInitialGuess and runs up to 5000 iterations.
//
// Returns:
//   - *FitResult: The fit. A search that hits its iteration limit is still
//     returned, with Converged false; check FitResult.Err.
//   - error: Wraps errkind.ErrInvalidConfiguration when any Re or Sc is not
//     positive or the options are unusable, and errkind.ErrInvalidInput for
//     too few observations or a non-finite or non-positive Sh. Inputs are
//     checked before the search starts.
//
// The search is attempted once; retrying from another starting point is left
// to the caller.
func FitPowerLaw(obs []Observation, opts ...FitOption) (*FitResult, error) {
	s := fitSettings{
		initial:       DefaultInitialGuess,
		maxIterations: defaultMaxIterations,
		tolerance:     defaultTolerance,
	}
	for _, opt := range opts {
		opt(&s)
	}

	if s.maxIterations < 1 {
		return nil, fmt.Errorf("max iterations must be positive, got %d: %w", s.maxIterations, errkind.ErrInvalidConfiguration)
	}
	if !(s.tolerance >= 0) || math.IsInf(s.tolerance, 0) {
		return nil, fmt.Errorf("tolerance must be a non-negative number, got %v: %w", s.tolerance, errkind.ErrInvalidConfiguration)
	}
	for i, v := range s.initial {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("initial guess component %d is not finite: %w", i, errkind.ErrInvalidConfiguration)
		}
	}

	if err := checkObservations(obs); err != nil {
		return nil, err
	}

	problem := optimize.Problem{
		Func: func(p []float64) float64 {
			return sse(obs, p[0], p[1], p[2])
		},
	}
	settings := &optimize.Settings{
		MajorIterations: s.maxIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   s.tolerance,
			Iterations: stallIterations,
		},
	}

	result, err := optimize.Minimize(problem, s.initial[:], settings, &optimize.NelderMead{})
	if result == nil {
		return nil, fmt.Errorf("optimisation could not start: %w", err)
	}

	fit := &FitResult{
		A:           result.X[0],
		X1:          result.X[1],
		X2:          result.X[2],
		Converged:   err == nil && !result.Status.Early(),
		SSE:         result.F,
		Iterations:  result.MajorIterations,
		Evaluations: result.FuncEvaluations,
		Status:      result.Status.String(),
	}
	fit.RSquared = rSquared(obs, fit)

	return fit, nil
}

// PredictSherwood evaluates a · Re^x1 · Sc^x2.
func PredictSherwood(re, sc, a, x1, x2 float64) float64 {
	return a * math.Pow(re, x1) * math.Pow(sc, x2)
}

func checkObservations(obs []Observation) error {
	if len(obs) < MinObservations {
		return fmt.Errorf("need at least %d observations, got %d: %w", MinObservations, len(obs), errkind.ErrInvalidInput)
	}
	for i, o := range obs {
		if !(o.Re > 0) || math.IsInf(o.Re, 0) {
			return fmt.Errorf("observation %d: Re must be positive, got %v: %w", i+1, o.Re, errkind.ErrInvalidConfiguration)
		}
		if !(o.Sc > 0) || math.IsInf(o.Sc, 0) {
			return fmt.Errorf("observation %d: Sc must be positive, got %v: %w", i+1, o.Sc, errkind.ErrInvalidConfiguration)
		}
		if !(o.Sh > 0) || math.IsInf(o.Sh, 0) {
			return fmt.Errorf("observation %d: Sh must be positive, got %v: %w", i+1, o.Sh, errkind.ErrInvalidInput)
		}
	}
	return nil
}

func sse(obs []Observation, a, x1, x2 float64) float64 {
	var sum float64
	for _, o := range obs {
		r := o.Sh - PredictSherwood(o.Re, o.Sc, a, x1, x2)
		sum += r * r
	}
	return sum
}

func rSquared(obs []Observation, fit *FitResult) float64 {
	predicted := make([]float64, len(obs))
	observed := make([]float64, len(obs))
	for i, o := range obs {
		predicted[i] = fit.Predict(o.Re, o.Sc)
		observed[i] = o.Sh
	}
	r2 := stat.RSquaredFrom(predicted, observed, nil)
	if math.IsNaN(r2) || math.IsInf(r2, 0) {
		return 0
	}
	return r2
}
