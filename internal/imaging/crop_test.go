package imaging

import (
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/ironsheep/bubble-tools-mcp/internal/errkind"
)

// decodeBase64PNG decodes a base64 PNG produced by one of the encoders
func decodeBase64PNG(t *testing.T, encoded string) image.Image {
	t.Helper()
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("failed to decode base64: %v", err)
	}
	img, err := png.Decode(strings.NewReader(string(decoded)))
	if err != nil {
		t.Fatalf("failed to decode PNG: %v", err)
	}
	return img
}

func TestCropAround(t *testing.T) {
	img := createDiskImage(100, 100, 50, 50, 10)

	result, err := CropAround(img, 50, 50, 10, 5, 1.0)
	if err != nil {
		t.Fatalf("CropAround failed: %v", err)
	}

	if result.X1 != 35 || result.Y1 != 35 || result.X2 != 66 || result.Y2 != 66 {
		t.Errorf("region: got (%d,%d)-(%d,%d), want (35,35)-(66,66)",
			result.X1, result.Y1, result.X2, result.Y2)
	}
	if result.Width != 31 || result.Height != 31 {
		t.Errorf("dimensions: got %dx%d, want 31x31", result.Width, result.Height)
	}
	if result.MimeType != "image/png" {
		t.Errorf("MimeType: got %s, want image/png", result.MimeType)
	}

	cropped := decodeBase64PNG(t, result.ImageBase64)

	// Centre of the crop is inside the disk, the corner is background
	r, _, _, _ := cropped.At(15, 15).RGBA()
	if r>>8 != 255 {
		t.Errorf("crop centre: got %d, want 255", r>>8)
	}
	r, _, _, _ = cropped.At(0, 0).RGBA()
	if r>>8 != 0 {
		t.Errorf("crop corner: got %d, want 0", r>>8)
	}
}

func TestCropAround_ClipsToBounds(t *testing.T) {
	img := createInMemoryImage(100, 100, color.RGBA{255, 0, 0, 255})

	result, err := CropAround(img, 5, 5, 10, 0, 1.0)
	if err != nil {
		t.Fatalf("CropAround failed: %v", err)
	}

	if result.X1 != 0 || result.Y1 != 0 {
		t.Errorf("top-left: got (%d,%d), want (0,0)", result.X1, result.Y1)
	}
	if result.Width != 16 || result.Height != 16 {
		t.Errorf("dimensions: got %dx%d, want 16x16", result.Width, result.Height)
	}
}

func TestCropAround_WithScale(t *testing.T) {
	img := createInMemoryImage(100, 100, color.RGBA{255, 0, 0, 255})

	result, err := CropAround(img, 50, 50, 10, 5, 2.0)
	if err != nil {
		t.Fatalf("CropAround with scale failed: %v", err)
	}

	if result.Width != 62 || result.Height != 62 {
		t.Errorf("scaled dimensions: got %dx%d, want 62x62", result.Width, result.Height)
	}
}

func TestCropAround_ScaleOutOfRange(t *testing.T) {
	img := createInMemoryImage(100, 100, color.RGBA{255, 0, 0, 255})

	for _, scale := range []float64{0, -1, MaxCropScale + 0.5, 1e6} {
		_, err := CropAround(img, 50, 50, 10, 5, scale)
		if !errors.Is(err, errkind.ErrInvalidInput) {
			t.Errorf("scale %v: got %v, want ErrInvalidInput", scale, err)
		}
	}

	result, err := CropAround(img, 50, 50, 10, 5, MaxCropScale)
	if err != nil {
		t.Fatalf("scale at the cap: %v", err)
	}
	if result.Width != 310 {
		t.Errorf("width at the cap: got %d, want 310", result.Width)
	}
}

func TestCropAround_Invalid(t *testing.T) {
	img := createInMemoryImage(100, 100, color.RGBA{255, 0, 0, 255})

	tests := []struct {
		name           string
		cx, cy, radius float64
	}{
		{"negative radius", 50, 50, -1},
		{"far outside", 500, 500, 10},
		{"left of image", -50, 50, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CropAround(img, tt.cx, tt.cy, tt.radius, 0, 1.0)
			if err == nil {
				t.Error("CropAround should fail")
			}
		})
	}
}

func TestFrameImage(t *testing.T) {
	frame, err := Preprocess(&RawImage{Image: createDiskImage(80, 60, 40, 30, 10)}, true)
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}

	encoded, err := FrameImage(frame)
	if err != nil {
		t.Fatalf("FrameImage failed: %v", err)
	}

	img := decodeBase64PNG(t, encoded)
	if img.Bounds().Dx() != 40 || img.Bounds().Dy() != 30 {
		t.Errorf("dimensions: got %dx%d, want 40x30", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestFrameImage_Nil(t *testing.T) {
	if _, err := FrameImage(nil); err == nil {
		t.Error("FrameImage should fail for nil frame")
	}
}
