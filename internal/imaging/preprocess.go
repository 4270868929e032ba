package imaging

import (
	"fmt"
	"image"
	"math"

	"github.com/anthonynsimon/bild/convolution"
	"github.com/disintegration/imaging"

	"github.com/ironsheep/bubble-tools-mcp/internal/errkind"
)

const (
	// SpeedModeScale is the downsampling factor applied in speed mode.
	SpeedModeScale = 0.5

	// blurKernelSize is the side of the square Gaussian smoothing kernel.
	blurKernelSize = 5
)

// Frame is the single-channel image the circle detector works on.
//
// It is derived from a RawImage by Preprocess and may be smaller than the
// original. Scale relates the two coordinate systems:
//
//	original = frame / Scale
//
// Scale is 1.0 for full-resolution frames and SpeedModeScale in speed mode.
type Frame struct {
	// Gray holds the smoothed luminance. Bounds start at (0, 0).
	Gray *image.Gray

	// Scale is the factor applied to the original image (0 < Scale <= 1).
	Scale float64
}

// Width returns the frame width in pixels.
func (f *Frame) Width() int {
	return f.Gray.Bounds().Dx()
}

// Height returns the frame height in pixels.
func (f *Frame) Height() int {
	return f.Gray.Bounds().Dy()
}

// Preprocess prepares a decoded image for circle detection.
//
// Parameters:
//   - raw: The decoded source image. Must be non-empty.
//   - speedMode: When true the image is resampled to SpeedModeScale of its size
//     before anything else, trading precision for speed.
//
// Returns:
//   - *Frame: Smoothed luminance frame with its scale factor.
//   - error: Wraps errkind.ErrInvalidInput for nil or zero-sized images, and for
//     images too small to be halved in speed mode.
//
// # Pipeline
//
//  1. Resample (speed mode only): bilinear, to floor(w*0.5) x floor(h*0.5)
//  2. Luminance: ITU-R BT.601 weights (0.299*R + 0.587*G + 0.114*B)
//  3. Gaussian blur: 5x5 kernel, sigma derived from the kernel size as
//     0.3*((ksize-1)*0.5 - 1) + 0.8 = 1.1, replicated borders
func Preprocess(raw *RawImage, speedMode bool) (*Frame, error) {
	if raw == nil || raw.Image == nil {
		return nil, fmt.Errorf("no image to preprocess: %w", errkind.ErrInvalidInput)
	}

	width := raw.Width()
	height := raw.Height()
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("image has zero size %dx%d: %w", width, height, errkind.ErrInvalidInput)
	}

	src := raw.Image
	scale := 1.0
	if speedMode {
		scale = SpeedModeScale
		fw := int(float64(width) * scale)
		fh := int(float64(height) * scale)
		// imaging.Resize treats a zero dimension as "keep aspect ratio", so
		// a 1-pixel side has to be rejected here.
		if fw == 0 || fh == 0 {
			return nil, fmt.Errorf("image %dx%d too small for speed mode: %w", width, height, errkind.ErrInvalidInput)
		}
		src = imaging.Resize(src, fw, fh, imaging.Linear)
	}

	gray := imaging.Grayscale(src)
	blurred := convolution.Convolve(gray, gaussianKernel(blurKernelSize), &convolution.Options{
		Bias:      0,
		Wrap:      false,
		KeepAlpha: true,
	})

	return &Frame{Gray: toGray(blurred), Scale: scale}, nil
}

// gaussianKernel builds a normalised size x size Gaussian kernel whose sigma
// is derived from the size.
func gaussianKernel(size int) *convolution.Kernel {
	sigma := 0.3*(float64(size-1)*0.5-1) + 0.8
	half := size / 2

	weights := make([]float64, size)
	var sum float64
	for i := range weights {
		x := float64(i - half)
		weights[i] = math.Exp(-x * x / (2 * sigma * sigma))
		sum += weights[i]
	}

	k := convolution.NewKernel(size, size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			k.Matrix[y*size+x] = weights[x] * weights[y] / (sum * sum)
		}
	}
	return k
}

// toGray copies the red channel of an already gray RGBA image into a Gray
// image with bounds starting at (0, 0).
func toGray(src *image.RGBA) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		srcRow := src.Pix[y*src.Stride:]
		dstRow := dst.Pix[y*dst.Stride:]
		for x := 0; x < b.Dx(); x++ {
			dstRow[x] = srcRow[x*4]
		}
	}
	return dst
}
