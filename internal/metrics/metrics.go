// Package metrics turns circle detections into physical bubble sizes.
//
// Detections live in processing-frame pixels. Extract maps them back to the
// original photograph (coordinate / scale) and converts diameters to
// centimetres using the image calibration. The resulting records are ranked
// by size, largest first.
package metrics

import (
	"fmt"
	"math"
	"sort"

	"github.com/ironsheep/bubble-tools-mcp/internal/detection"
	"github.com/ironsheep/bubble-tools-mcp/internal/errkind"
)

// BubbleRecord is one detected bubble in original-image coordinates.
type BubbleRecord struct {
	// Rank is 1 for the largest bubble. Ranks are dense: 1..N.
	Rank int `json:"rank"`

	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius_px"`

	DiameterPx float64 `json:"diameter_px"`
	DiameterMM float64 `json:"diameter_mm"`
	DiameterCM float64 `json:"diameter_cm"`
	AreaCM2    float64 `json:"area_cm2"`
}

// Extract converts detections found in a frame of the given scale into ranked
// bubble records.
//
// Parameters:
//   - dets: Detections in processing-frame coordinates, in detector order.
//   - scale: The frame scale relative to the original image, in (0, 1].
//   - pixelsPerCm: Calibration of the original image.
//
// Returns:
//   - []BubbleRecord: One record per detection, sorted by descending diameter.
//     Equal diameters keep detector order. Empty input gives an empty slice.
//   - error: Wraps errkind.ErrInvalidConfiguration for a scale outside (0, 1]
//     or a non-positive calibration.
//
// # Formulae
//
//	x, y, r     = det / scale
//	diameter_px = 2r
//	diameter_cm = diameter_px / pixelsPerCm
//	diameter_mm = diameter_cm * 10
//	area_cm2    = π (diameter_cm / 2)²
func Extract(dets []detection.Detection, scale, pixelsPerCm float64) ([]BubbleRecord, error) {
	if !(scale > 0 && scale <= 1) {
		return nil, fmt.Errorf("scale must be in (0, 1], got %v: %w", scale, errkind.ErrInvalidConfiguration)
	}
	if !(pixelsPerCm > 0) || math.IsInf(pixelsPerCm, 0) {
		return nil, fmt.Errorf("pixels per cm must be positive, got %v: %w", pixelsPerCm, errkind.ErrInvalidConfiguration)
	}

	records := make([]BubbleRecord, len(dets))
	for i, d := range dets {
		radius := d.Radius / scale
		diameterPx := 2 * radius
		diameterCM := diameterPx / pixelsPerCm
		records[i] = BubbleRecord{
			X:          d.X / scale,
			Y:          d.Y / scale,
			Radius:     radius,
			DiameterPx: diameterPx,
			DiameterCM: diameterCM,
			DiameterMM: diameterCM * 10,
			AreaCM2:    math.Pi * (diameterCM / 2) * (diameterCM / 2),
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].DiameterPx > records[j].DiameterPx
	})
	for i := range records {
		records[i].Rank = i + 1
	}

	return records, nil
}

// ByRank returns the record with the given rank.
func ByRank(records []BubbleRecord, rank int) (BubbleRecord, error) {
	for _, r := range records {
		if r.Rank == rank {
			return r, nil
		}
	}
	return BubbleRecord{}, fmt.Errorf("no bubble with rank %d (have %d): %w", rank, len(records), errkind.ErrInvalidInput)
}
