package metrics

import (
	"bytes"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/ironsheep/bubble-tools-mcp/internal/errkind"
)

// DefaultHistogramBins is the number of size classes used when none is given.
const DefaultHistogramBins = 20

// Bin is one size class of the diameter distribution. Lower is inclusive,
// Upper exclusive except for the last bin.
type Bin struct {
	LowerCM float64 `json:"lower_cm"`
	UpperCM float64 `json:"upper_cm"`
	Count   int     `json:"count"`
}

// Summary describes the bubble size distribution of one image.
type Summary struct {
	Count          int     `json:"count"`
	MeanDiameterCM float64 `json:"mean_diameter_cm"`

	// StdDiameterCM is the sample standard deviation; 0 for fewer than two
	// bubbles.
	StdDiameterCM float64 `json:"std_diameter_cm"`
	MinDiameterCM float64 `json:"min_diameter_cm"`
	MaxDiameterCM float64 `json:"max_diameter_cm"`
	TotalAreaCM2  float64 `json:"total_area_cm2"`

	Histogram []Bin `json:"histogram"`
}

// Summarize computes size statistics and a diameter histogram with the given
// number of equal-width bins spanning the observed range.
//
// No records is a valid, empty summary. bins < 1 wraps
// errkind.ErrInvalidConfiguration.
func Summarize(records []BubbleRecord, bins int) (*Summary, error) {
	if bins < 1 {
		return nil, fmt.Errorf("histogram needs at least one bin, got %d: %w", bins, errkind.ErrInvalidConfiguration)
	}

	s := &Summary{Count: len(records), Histogram: []Bin{}}
	if len(records) == 0 {
		return s, nil
	}

	diameters := diametersCM(records)
	s.MeanDiameterCM = stat.Mean(diameters, nil)
	if len(diameters) > 1 {
		s.StdDiameterCM = stat.StdDev(diameters, nil)
	}
	s.MinDiameterCM = floats.Min(diameters)
	s.MaxDiameterCM = floats.Max(diameters)
	for _, r := range records {
		s.TotalAreaCM2 += r.AreaCM2
	}

	lo, hi := s.MinDiameterCM, s.MaxDiameterCM
	if hi <= lo {
		// All bubbles the same size: a unit-wide range centred on it
		lo, hi = lo-0.5, hi+0.5
	}
	dividers := make([]float64, bins+1)
	floats.Span(dividers, lo, hi)
	// stat.Histogram excludes the last divider
	dividers[bins] = math.Nextafter(hi, math.Inf(1))

	sort.Float64s(diameters)
	counts := stat.Histogram(nil, dividers, diameters, nil)

	s.Histogram = make([]Bin, bins)
	for i := range s.Histogram {
		s.Histogram[i] = Bin{
			LowerCM: dividers[i],
			UpperCM: dividers[i+1],
			Count:   int(counts[i]),
		}
	}
	s.Histogram[bins-1].UpperCM = hi

	return s, nil
}

// HistogramPNG renders the diameter distribution as a PNG bar chart.
//
// Returns errkind.ErrInvalidInput when there is nothing to plot.
func HistogramPNG(records []BubbleRecord, bins int) ([]byte, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no bubbles to plot: %w", errkind.ErrInvalidInput)
	}
	if bins < 1 {
		return nil, fmt.Errorf("histogram needs at least one bin, got %d: %w", bins, errkind.ErrInvalidConfiguration)
	}

	p := plot.New()
	p.Title.Text = "Bubble Size Distribution"
	p.X.Label.Text = "Diameter (cm)"
	p.Y.Label.Text = "Count"

	h, err := plotter.NewHist(plotter.Values(diametersCM(records)), bins)
	if err != nil {
		return nil, fmt.Errorf("failed to build histogram: %w", err)
	}
	h.LineStyle.Width = vg.Points(1)
	p.Add(h)

	wt, err := p.WriterTo(6*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return nil, fmt.Errorf("failed to render histogram: %w", err)
	}

	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode histogram: %w", err)
	}
	return buf.Bytes(), nil
}

func diametersCM(records []BubbleRecord) []float64 {
	d := make([]float64, len(records))
	for i, r := range records {
		d[i] = r.DiameterCM
	}
	return d
}
