package detection

import (
	"fmt"
	"math"
	"sort"

	"github.com/ironsheep/bubble-tools-mcp/internal/errkind"
	"github.com/ironsheep/bubble-tools-mcp/internal/imaging"
)

// Detection is one circle found by DetectCircles, in the pixel coordinates of
// the processing frame it was found in.
type Detection struct {
	// X and Y locate the center. (0, 0) is the centre of the top-left pixel.
	X float64 `json:"x"`
	Y float64 `json:"y"`

	// Radius is the mean distance of the supporting edge pixels.
	Radius float64 `json:"radius"`

	// Votes is the accumulator count at the center peak.
	Votes int `json:"votes"`
}

// candidate is an accumulator peak awaiting radius estimation.
type candidate struct {
	ix, iy int
	votes  int
}

// DetectCircles finds circular bubble outlines in a preprocessed frame using
// the gradient Hough transform.
//
// Parameters:
//   - frame: Smoothed luminance frame from imaging.Preprocess.
//   - p: Detection parameters. Only the Hough and radius fields are used here;
//     SpeedMode and Enhance are applied by whoever builds the frame.
//
// Returns:
//   - []Detection: Detected circles, strongest accumulator peak first. Never
//     nil; an empty slice means nothing cleared the thresholds.
//   - error: Wraps errkind.ErrInvalidConfiguration for invalid parameters, and
//     errkind.ErrInvalidInput for a nil or empty frame.
//
// # Algorithm (Gradient Hough Circle Transform)
//
//  1. Edges: Canny on the frame, high threshold Param1, low Param1/2
//  2. Center voting: every edge pixel walks along its gradient in both
//     directions for each radius in [max(MinRadius,1), MaxRadius] and votes
//     once per accumulator cell it passes. Cells are DP pixels wide.
//  3. Peaks: local maxima with more than Param2 votes, strongest first
//  4. Suppression: a peak closer than MinDist to an accepted center is
//     dropped, so the stronger of two nearby peaks wins
//  5. Radius: edge pixel distances from the center are binned in 1-pixel
//     bins; the best 3-bin window must hold at least Param2 pixels
//
// # Limitations
//
//   - Strongly overlapping bubbles may share a single peak
//   - Ellipses are only found when they are close to circular
//   - Large MaxRadius values slow voting linearly
func DetectCircles(frame *imaging.Frame, p Parameters) ([]Detection, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if frame == nil || frame.Gray == nil {
		return nil, fmt.Errorf("no frame to search: %w", errkind.ErrInvalidInput)
	}

	width, height := frame.Width(), frame.Height()
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("frame has zero size %dx%d: %w", width, height, errkind.ErrInvalidInput)
	}

	minR := max(p.MinRadius, 1)
	maxR := min(p.MaxRadius, max(width, height))
	detections := make([]Detection, 0)
	if minR > maxR {
		return detections, nil
	}

	em := imaging.Canny(frame.Gray, p.Param1/2, p.Param1)

	// The accumulator is never finer than the frame.
	dp := math.Max(p.DP, 1)
	accW := int(math.Ceil(float64(width) / dp))
	accH := int(math.Ceil(float64(height) / dp))
	acc := accumulate(em, accW, accH, dp, minR, maxR)

	peaks := findPeaks(acc, accW, accH, int(p.Param2))

	minDist2 := p.MinDist * p.MinDist
	for _, c := range peaks {
		cx, cy := refineCenter(acc, accW, accH, c.ix, c.iy, dp)

		tooClose := false
		for _, d := range detections {
			dx, dy := cx-d.X, cy-d.Y
			if dx*dx+dy*dy < minDist2 {
				tooClose = true
				break
			}
		}
		if tooClose {
			continue
		}

		radius, support := estimateRadius(em, cx, cy, minR, maxR)
		if support < int(math.Ceil(p.Param2)) {
			continue
		}

		detections = append(detections, Detection{
			X:      cx,
			Y:      cy,
			Radius: radius,
			Votes:  c.votes,
		})
	}

	return detections, nil
}

// accumulate casts center votes for every edge pixel.
func accumulate(em *imaging.EdgeMap, accW, accH int, dp float64, minR, maxR int) []int {
	acc := make([]int, accW*accH)
	width, height := float64(em.Width), float64(em.Height)

	for y := 0; y < em.Height; y++ {
		for x := 0; x < em.Width; x++ {
			i := y*em.Width + x
			if !em.Edge[i] {
				continue
			}
			gx, gy := em.Dx[i], em.Dy[i]
			mag := math.Hypot(gx, gy)
			if mag == 0 {
				continue
			}
			ux, uy := gx/mag, gy/mag

			for _, sign := range [2]float64{1, -1} {
				last := -1
				for r := minR; r <= maxR; r++ {
					cx := float64(x) + sign*float64(r)*ux
					cy := float64(y) + sign*float64(r)*uy
					if cx < 0 || cy < 0 || cx >= width || cy >= height {
						break
					}
					ix := min(int((cx+0.5)/dp), accW-1)
					iy := min(int((cy+0.5)/dp), accH-1)
					cell := iy*accW + ix
					if cell == last {
						continue
					}
					acc[cell]++
					last = cell
				}
			}
		}
	}

	return acc
}

// findPeaks returns accumulator cells above threshold that are local maxima
// in their 8-neighbourhood, sorted by votes descending. Plateaus keep their
// first cell in scan order.
func findPeaks(acc []int, accW, accH, threshold int) []candidate {
	peaks := make([]candidate, 0)
	for iy := 0; iy < accH; iy++ {
		for ix := 0; ix < accW; ix++ {
			v := acc[iy*accW+ix]
			if v <= threshold {
				continue
			}
			isMax := true
			for dy := -1; dy <= 1 && isMax; dy++ {
				for dx := -1; dx <= 1 && isMax; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					nx, ny := ix+dx, iy+dy
					if nx < 0 || nx >= accW || ny < 0 || ny >= accH {
						continue
					}
					n := acc[ny*accW+nx]
					before := dy < 0 || (dy == 0 && dx < 0)
					if n > v || (before && n == v) {
						isMax = false
					}
				}
			}
			if isMax {
				peaks = append(peaks, candidate{ix: ix, iy: iy, votes: v})
			}
		}
	}

	sort.SliceStable(peaks, func(i, j int) bool {
		return peaks[i].votes > peaks[j].votes
	})
	return peaks
}

// refineCenter returns the vote-weighted centroid of the 3x3 cells around a
// peak, converted back to frame pixel coordinates.
func refineCenter(acc []int, accW, accH, ix, iy int, dp float64) (float64, float64) {
	var sx, sy, sw float64
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			nx, ny := ix+dx, iy+dy
			if nx < 0 || nx >= accW || ny < 0 || ny >= accH {
				continue
			}
			w := float64(acc[ny*accW+nx])
			sx += w * float64(nx)
			sy += w * float64(ny)
			sw += w
		}
	}
	// Cell k covers frame coordinates [k*dp-0.5, (k+1)*dp-0.5)
	cellCenter := func(k float64) float64 {
		return (k+0.5)*dp - 0.5
	}
	if sw == 0 {
		return cellCenter(float64(ix)), cellCenter(float64(iy))
	}
	return cellCenter(sx / sw), cellCenter(sy / sw)
}

// estimateRadius bins the distances of all edge pixels from (cx, cy) and
// returns the mean distance inside the best 3-bin window together with the
// number of pixels in it. Ties go to the smaller radius.
func estimateRadius(em *imaging.EdgeMap, cx, cy float64, minR, maxR int) (float64, int) {
	counts := make([]int, maxR+2)
	sums := make([]float64, maxR+2)

	for y := 0; y < em.Height; y++ {
		for x := 0; x < em.Width; x++ {
			if !em.Edge[y*em.Width+x] {
				continue
			}
			d := math.Hypot(float64(x)-cx, float64(y)-cy)
			bin := int(d + 0.5)
			if bin < minR || bin > maxR {
				continue
			}
			counts[bin]++
			sums[bin] += d
		}
	}

	bestR, bestSupport := 0, 0
	for r := minR; r <= maxR; r++ {
		support := counts[r] + counts[r+1]
		if r > minR {
			support += counts[r-1]
		}
		if support > bestSupport {
			bestR, bestSupport = r, support
		}
	}
	if bestSupport == 0 {
		return 0, 0
	}

	var sum float64
	n := 0
	for r := max(bestR-1, minR); r <= bestR+1 && r <= maxR; r++ {
		sum += sums[r]
		n += counts[r]
	}
	return sum / float64(n), bestSupport
}
