package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/bubble-tools-mcp/internal/errkind"
)

// MaxCropScale bounds the zoom applied to a crop so a single request cannot
// allocate an arbitrarily large output image.
const MaxCropScale = 10.0

// CropResult contains the cropped image data
type CropResult struct {
	X1          int    `json:"x1"`
	Y1          int    `json:"y1"`
	X2          int    `json:"x2"`
	Y2          int    `json:"y2"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// CropAround extracts the square region around a circle, padded by margin
// pixels on every side and clipped to the image bounds. A scale outside
// (0, MaxCropScale] wraps errkind.ErrInvalidInput.
func CropAround(img image.Image, cx, cy, radius float64, margin int, scale float64) (*CropResult, error) {
	bounds := img.Bounds()
	if radius < 0 {
		return nil, fmt.Errorf("invalid crop radius %.2f", radius)
	}
	if !(scale > 0) || scale > MaxCropScale {
		return nil, fmt.Errorf("crop scale must be in (0, %g], got %v: %w", MaxCropScale, scale, errkind.ErrInvalidInput)
	}

	half := int(radius+0.5) + margin
	x1 := max(int(cx+0.5)-half, bounds.Min.X)
	y1 := max(int(cy+0.5)-half, bounds.Min.Y)
	x2 := min(int(cx+0.5)+half+1, bounds.Max.X)
	y2 := min(int(cy+0.5)+half+1, bounds.Max.Y)
	if x1 >= x2 || y1 >= y2 {
		return nil, fmt.Errorf("crop region (%d,%d)-(%d,%d) outside image bounds (%d,%d)-(%d,%d)",
			x1, y1, x2, y2, bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Max.Y)
	}

	cropped := imaging.Crop(img, image.Rect(x1, y1, x2, y2))

	if scale != 1.0 {
		newWidth := int(float64(cropped.Bounds().Dx()) * scale)
		newHeight := int(float64(cropped.Bounds().Dy()) * scale)
		if newWidth > 0 && newHeight > 0 {
			cropped = imaging.Resize(cropped, newWidth, newHeight, imaging.Lanczos)
		}
	}

	encoded, err := encodePNG(cropped)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cropped image: %w", err)
	}

	return &CropResult{
		X1:          x1,
		Y1:          y1,
		X2:          x2,
		Y2:          y2,
		Width:       cropped.Bounds().Dx(),
		Height:      cropped.Bounds().Dy(),
		ImageBase64: encoded,
		MimeType:    "image/png",
	}, nil
}

// FrameImage encodes a processing frame as base64 PNG so callers can render
// detections on the exact pixels the detector saw.
func FrameImage(frame *Frame) (string, error) {
	if frame == nil || frame.Gray == nil {
		return "", fmt.Errorf("no frame to encode")
	}
	return encodePNG(frame.Gray)
}

// encodePNG encodes img as PNG and returns it base64-encoded.
func encodePNG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
