// Package analysis runs the full bubble detection pipeline on one image.
//
// It is the single entry point the server uses: decode the photograph,
// preprocess it (optionally at half resolution), optionally enhance contrast,
// and run the circle detector. The Result keeps everything needed to render
// the detections or convert them into physical sizes.
package analysis

import (
	"fmt"

	"github.com/ironsheep/bubble-tools-mcp/internal/detection"
	"github.com/ironsheep/bubble-tools-mcp/internal/imaging"
	"github.com/ironsheep/bubble-tools-mcp/internal/metrics"
)

// Result is the outcome of analysing one image.
type Result struct {
	// Detections are in Frame coordinates. Never nil.
	Detections []detection.Detection

	// Frame is the exact pixel buffer the detector worked on.
	Frame *imaging.Frame

	// Scale relates Frame to the original image: original = frame / Scale.
	Scale float64

	OriginalWidth  int
	OriginalHeight int

	// Parameters are the settings the analysis ran with.
	Parameters detection.Parameters
}

// NoDetections reports whether the analysis found no bubbles. This is a
// valid outcome, not an error.
func (r *Result) NoDetections() bool {
	return len(r.Detections) == 0
}

// Metrics converts the detections into ranked bubble records using the
// calibration the analysis ran with.
func (r *Result) Metrics() ([]metrics.BubbleRecord, error) {
	return metrics.Extract(r.Detections, r.Scale, r.Parameters.PixelsPerCm)
}

// AnalyzeImage decodes imageBytes and analyses it. See Analyze.
func AnalyzeImage(imageBytes []byte, p detection.Parameters) (*Result, error) {
	raw, err := imaging.DecodeBytes(imageBytes)
	if err != nil {
		return nil, err
	}
	return Analyze(raw, p)
}

// Analyze detects bubbles in an already decoded image.
//
// Parameters are validated before any pixel work is done; invalid ones wrap
// errkind.ErrInvalidConfiguration. Empty or undecodable images wrap
// errkind.ErrInvalidInput.
func Analyze(raw *imaging.RawImage, p detection.Parameters) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	frame, err := imaging.Preprocess(raw, p.SpeedMode)
	if err != nil {
		return nil, err
	}
	if p.Enhance {
		frame = imaging.Enhance(frame)
	}

	dets, err := detection.DetectCircles(frame, p)
	if err != nil {
		return nil, fmt.Errorf("circle detection failed: %w", err)
	}

	return &Result{
		Detections:     dets,
		Frame:          frame,
		Scale:          frame.Scale,
		OriginalWidth:  raw.Width(),
		OriginalHeight: raw.Height(),
		Parameters:     p,
	}, nil
}
