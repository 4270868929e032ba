package imaging

import (
	"fmt"
	"image"
	"image/color"
	"math"
)

// EdgeMap holds the result of Canny edge detection on a Frame, together with
// the Sobel gradients the circle detector needs to cast directional votes.
//
// All slices are row-major with index y*Width + x.
type EdgeMap struct {
	Width  int
	Height int

	// Edge marks pixels that survived non-maximum suppression and hysteresis.
	Edge []bool

	// Dx and Dy are the Sobel derivatives on the 0-255 intensity scale.
	Dx []float64
	Dy []float64
}

// At reports whether (x, y) is an edge pixel.
func (e *EdgeMap) At(x, y int) bool {
	return e.Edge[y*e.Width+x]
}

// Count returns the number of edge pixels.
func (e *EdgeMap) Count() int {
	n := 0
	for _, v := range e.Edge {
		if v {
			n++
		}
	}
	return n
}

// Canny performs Canny edge detection on a grayscale image.
//
// Parameters:
//   - gray: Source luminance, normally an already smoothed Frame.Gray.
//   - low: Low hysteresis threshold on the gradient magnitude (0-255 scale,
//     unnormalised Sobel). Weak edges between low and high are kept only when
//     connected to a strong edge.
//   - high: High threshold. Pixels above it are always edges.
//
// # Algorithm
//
//  1. Gradient computation: Sobel operators for X and Y gradients
//     magnitude = sqrt(Gx² + Gy²)
//  2. Non-maximum suppression: Thin edges to 1-pixel width by keeping only
//     local maxima in the gradient direction
//  3. Hysteresis: strong pixels seed a flood fill through 8-connected weak
//     pixels
//
// No smoothing is applied here; Preprocess already blurred the frame.
func Canny(gray *image.Gray, low, high float64) *EdgeMap {
	b := gray.Bounds()
	width := b.Dx()
	height := b.Dy()
	n := width * height

	em := &EdgeMap{
		Width:  width,
		Height: height,
		Edge:   make([]bool, n),
		Dx:     make([]float64, n),
		Dy:     make([]float64, n),
	}
	if n == 0 {
		return em
	}

	sobelX := [3][3]float64{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	}
	sobelY := [3][3]float64{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	}

	pix := func(x, y int) float64 {
		x = clamp(x, 0, width-1)
		y = clamp(y, 0, height-1)
		return float64(gray.Pix[(y)*gray.Stride+x])
	}

	magnitude := make([]float64, n)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var gx, gy float64
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					v := pix(x+kx, y+ky)
					gx += v * sobelX[ky+1][kx+1]
					gy += v * sobelY[ky+1][kx+1]
				}
			}
			i := y*width + x
			em.Dx[i] = gx
			em.Dy[i] = gy
			magnitude[i] = math.Sqrt(gx*gx + gy*gy)
		}
	}

	// Non-maximum suppression
	suppressed := make([]float64, n)
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			i := y*width + x
			mag := magnitude[i]
			if mag < low {
				continue
			}
			angle := math.Atan2(em.Dy[i], em.Dx[i])

			// Determine neighbors to compare based on gradient direction
			var n1, n2 float64
			if (angle >= -math.Pi/8 && angle < math.Pi/8) || (angle >= 7*math.Pi/8 || angle < -7*math.Pi/8) {
				n1 = magnitude[i-1]
				n2 = magnitude[i+1]
			} else if (angle >= math.Pi/8 && angle < 3*math.Pi/8) || (angle >= -7*math.Pi/8 && angle < -5*math.Pi/8) {
				n1 = magnitude[i-width-1]
				n2 = magnitude[i+width+1]
			} else if (angle >= 3*math.Pi/8 && angle < 5*math.Pi/8) || (angle >= -5*math.Pi/8 && angle < -3*math.Pi/8) {
				n1 = magnitude[i-width]
				n2 = magnitude[i+width]
			} else {
				n1 = magnitude[i-width+1]
				n2 = magnitude[i+width-1]
			}

			// Strict on one side so plateaus keep a single pixel
			if mag > n1 && mag >= n2 {
				suppressed[i] = mag
			}
		}
	}

	// Edge tracking by hysteresis
	stack := make([]int, 0, 256)
	for i, v := range suppressed {
		if v >= high && !em.Edge[i] {
			em.Edge[i] = true
			stack = append(stack, i)
		}
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			px, py := p%width, p/width
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := px+dx, py+dy
					if nx < 0 || nx >= width || ny < 0 || ny >= height {
						continue
					}
					j := ny*width + nx
					if !em.Edge[j] && suppressed[j] >= low {
						em.Edge[j] = true
						stack = append(stack, j)
					}
				}
			}
		}
	}

	return em
}

// EdgeDetectResult contains an edge-detected frame encoded as base64 PNG.
//
// The result is a grayscale image where white pixels (255) represent detected
// edges and black pixels (0) represent non-edges. It shows what the circle
// detector sees for a given edge threshold.
type EdgeDetectResult struct {
	// Width of the output image in pixels (same as the frame).
	Width int `json:"width"`

	// Height of the output image in pixels (same as the frame).
	Height int `json:"height"`

	// EdgePixels is the number of edge pixels found.
	EdgePixels int `json:"edge_pixels"`

	// Scale is the frame scale relative to the original image.
	Scale float64 `json:"scale"`

	// ImageBase64 is the edge image encoded as base64 PNG.
	ImageBase64 string `json:"image_base64"`

	// MimeType is always "image/png" for edge detection results.
	MimeType string `json:"mime_type"`
}

// EdgeDetect renders the Canny edges of a frame using the same thresholds the
// circle detector derives from its edge sensitivity: high = threshold and
// low = threshold / 2.
//
// Lower thresholds detect more edges but increase noise. Higher thresholds
// produce cleaner results but may miss faint bubble outlines.
func EdgeDetect(frame *Frame, threshold float64) (*EdgeDetectResult, error) {
	if frame == nil || frame.Gray == nil {
		return nil, fmt.Errorf("no frame to edge-detect")
	}

	em := Canny(frame.Gray, threshold/2, threshold)

	result := image.NewGray(image.Rect(0, 0, em.Width, em.Height))
	for y := 0; y < em.Height; y++ {
		for x := 0; x < em.Width; x++ {
			if em.At(x, y) {
				result.SetGray(x, y, color.Gray{255})
			}
		}
	}

	encoded, err := encodePNG(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode edge image: %w", err)
	}

	return &EdgeDetectResult{
		Width:       em.Width,
		Height:      em.Height,
		EdgePixels:  em.Count(),
		Scale:       frame.Scale,
		ImageBase64: encoded,
		MimeType:    "image/png",
	}, nil
}

// clamp constrains an integer value to the range [min, max].
// Used for boundary handling in convolution operations.
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
