package detection

import (
	"fmt"
	"math"

	"github.com/ironsheep/bubble-tools-mcp/internal/errkind"
)

// Parameters configures one bubble detection run.
//
// The four Hough fields follow the usual gradient circle transform
// convention so values tuned for other tools carry over:
//   - DP: inverse accumulator resolution. 1 votes at full frame resolution,
//     2 at half resolution, and so on. Values below 1 are treated as 1.
//   - MinDist: minimum distance between detected centers, in frame pixels.
//   - Param1: upper Canny threshold; the lower one is half of it.
//   - Param2: accumulator threshold. Lower values find more (and more
//     spurious) circles.
//
// Radii are in processing-frame pixels, so in speed mode they apply to the
// half-size frame.
type Parameters struct {
	DP      float64 `json:"dp"`
	MinDist float64 `json:"min_dist"`
	Param1  float64 `json:"param1"`
	Param2  float64 `json:"param2"`

	// MinRadius may be 0 to search from the smallest detectable radius.
	MinRadius int `json:"min_radius"`
	MaxRadius int `json:"max_radius"`

	// SpeedMode downsamples the image by imaging.SpeedModeScale before
	// detection.
	SpeedMode bool `json:"speed_mode"`

	// PixelsPerCm is the physical calibration used when converting
	// detections into bubble sizes.
	PixelsPerCm float64 `json:"pixels_per_cm"`

	// Enhance runs imaging.Enhance on the frame before detection.
	Enhance bool `json:"enhance"`
}

// DefaultParameters returns the parameters used when nothing else is
// configured.
func DefaultParameters() Parameters {
	return Parameters{
		DP:          1.2,
		MinDist:     20,
		Param1:      50,
		Param2:      30,
		MinRadius:   0,
		MaxRadius:   100,
		SpeedMode:   true,
		PixelsPerCm: 100,
		Enhance:     false,
	}
}

// Validate checks that every numeric field is usable. Violations wrap
// errkind.ErrInvalidConfiguration.
func (p Parameters) Validate() error {
	positive := []struct {
		name  string
		value float64
	}{
		{"dp", p.DP},
		{"minDist", p.MinDist},
		{"param1", p.Param1},
		{"param2", p.Param2},
		{"pixelsPerCm", p.PixelsPerCm},
	}
	for _, f := range positive {
		if !(f.value > 0) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%s must be positive and finite, got %v: %w", f.name, f.value, errkind.ErrInvalidConfiguration)
		}
	}

	if p.MinRadius < 0 {
		return fmt.Errorf("minRadius must not be negative, got %d: %w", p.MinRadius, errkind.ErrInvalidConfiguration)
	}
	if p.MaxRadius <= 0 {
		return fmt.Errorf("maxRadius must be positive, got %d: %w", p.MaxRadius, errkind.ErrInvalidConfiguration)
	}
	if p.MinRadius > p.MaxRadius {
		return fmt.Errorf("minRadius %d exceeds maxRadius %d: %w", p.MinRadius, p.MaxRadius, errkind.ErrInvalidConfiguration)
	}
	return nil
}
