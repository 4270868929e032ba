package detection

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ironsheep/bubble-tools-mcp/internal/errkind"
	"github.com/ironsheep/bubble-tools-mcp/internal/imaging"
)

type disk struct {
	cx, cy, r int
}

// createDiskImage draws filled disks of fg on a bg background
func createDiskImage(width, height int, bg, fg color.Color, disks ...disk) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, bg)
			for _, d := range disks {
				dx, dy := x-d.cx, y-d.cy
				if dx*dx+dy*dy <= d.r*d.r {
					img.Set(x, y, fg)
					break
				}
			}
		}
	}
	return img
}

// frameOf preprocesses img the way the analysis pipeline does
func frameOf(t *testing.T, img image.Image, speedMode bool) *imaging.Frame {
	t.Helper()
	frame, err := imaging.Preprocess(&imaging.RawImage{Image: img}, speedMode)
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}
	return frame
}

func near(d Detection, x, y, r, tol float64) bool {
	return math.Abs(d.X-x) <= tol && math.Abs(d.Y-y) <= tol && math.Abs(d.Radius-r) <= tol
}

func TestDetectCircles_SingleDiskSpeedMode(t *testing.T) {
	img := createDiskImage(200, 200, color.Black, color.White, disk{100, 100, 50})
	frame := frameOf(t, img, true)

	dets, err := DetectCircles(frame, DefaultParameters())
	if err != nil {
		t.Fatalf("DetectCircles failed: %v", err)
	}

	if len(dets) != 1 {
		t.Fatalf("expected 1 detection, got %d: %+v", len(dets), dets)
	}
	if !near(dets[0], 50, 50, 25, 2) {
		t.Errorf("detection: got (%.2f, %.2f, r=%.2f), want ~(50, 50, r=25)", dets[0].X, dets[0].Y, dets[0].Radius)
	}
	if dets[0].Votes <= 30 {
		t.Errorf("Votes: got %d, want > param2", dets[0].Votes)
	}
}

func TestDetectCircles_FullResolution(t *testing.T) {
	img := createDiskImage(120, 120, color.Black, color.White, disk{60, 60, 30})
	frame := frameOf(t, img, false)

	dets, err := DetectCircles(frame, DefaultParameters())
	if err != nil {
		t.Fatalf("DetectCircles failed: %v", err)
	}

	if len(dets) != 1 {
		t.Fatalf("expected 1 detection, got %d: %+v", len(dets), dets)
	}
	if !near(dets[0], 60, 60, 30, 1.5) {
		t.Errorf("detection: got (%.2f, %.2f, r=%.2f), want ~(60, 60, r=30)", dets[0].X, dets[0].Y, dets[0].Radius)
	}
}

func TestDetectCircles_DarkBubble(t *testing.T) {
	// Polarity does not matter: votes go both ways along the gradient
	img := createDiskImage(120, 120, color.White, color.Black, disk{60, 60, 30})
	frame := frameOf(t, img, false)

	dets, err := DetectCircles(frame, DefaultParameters())
	if err != nil {
		t.Fatalf("DetectCircles failed: %v", err)
	}

	if len(dets) != 1 || !near(dets[0], 60, 60, 30, 1.5) {
		t.Errorf("expected one detection near (60, 60, r=30), got %+v", dets)
	}
}

func TestDetectCircles_TwoDisks(t *testing.T) {
	img := createDiskImage(160, 100, color.Black, color.White, disk{45, 50, 20}, disk{115, 50, 20})
	frame := frameOf(t, img, false)

	dets, err := DetectCircles(frame, DefaultParameters())
	if err != nil {
		t.Fatalf("DetectCircles failed: %v", err)
	}

	if len(dets) != 2 {
		t.Fatalf("expected 2 detections, got %d: %+v", len(dets), dets)
	}

	foundLeft, foundRight := false, false
	for _, d := range dets {
		if near(d, 45, 50, 20, 1.5) {
			foundLeft = true
		}
		if near(d, 115, 50, 20, 1.5) {
			foundRight = true
		}
	}
	if !foundLeft || !foundRight {
		t.Errorf("expected disks at x=45 and x=115, got %+v", dets)
	}

	// Strongest first
	if dets[0].Votes < dets[1].Votes {
		t.Errorf("detections not ordered by votes: %d then %d", dets[0].Votes, dets[1].Votes)
	}
}

func TestDetectCircles_MinDistMerges(t *testing.T) {
	img := createDiskImage(160, 100, color.Black, color.White, disk{45, 50, 20}, disk{115, 50, 20})
	frame := frameOf(t, img, false)

	p := DefaultParameters()
	p.MinDist = 100

	dets, err := DetectCircles(frame, p)
	if err != nil {
		t.Fatalf("DetectCircles failed: %v", err)
	}
	if len(dets) != 1 {
		t.Errorf("expected the weaker disk to be suppressed, got %d detections", len(dets))
	}
}

func TestDetectCircles_RadiusBounds(t *testing.T) {
	img := createDiskImage(120, 120, color.Black, color.White, disk{60, 60, 25})
	frame := frameOf(t, img, false)

	p := DefaultParameters()
	p.MinRadius = 40
	p.MaxRadius = 60

	dets, err := DetectCircles(frame, p)
	if err != nil {
		t.Fatalf("DetectCircles failed: %v", err)
	}
	if len(dets) != 0 {
		t.Errorf("disk outside the radius range should not be detected, got %+v", dets)
	}
}

func TestDetectCircles_SubPixelDPClampsToFrame(t *testing.T) {
	img := createDiskImage(80, 80, color.Black, color.White, disk{40, 40, 20})
	frame := frameOf(t, img, true)

	fine := DefaultParameters()
	fine.DP = 1e-4
	if err := fine.Validate(); err != nil {
		t.Fatalf("small positive dp should validate: %v", err)
	}

	unit := DefaultParameters()
	unit.DP = 1

	got, err := DetectCircles(frame, fine)
	if err != nil {
		t.Fatalf("DetectCircles failed: %v", err)
	}
	want, err := DetectCircles(frame, unit)
	if err != nil {
		t.Fatalf("DetectCircles failed: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("dp below 1 should behave as dp=1 (-want +got):\n%s", diff)
	}
}

func TestDetectCircles_Empty(t *testing.T) {
	img := createDiskImage(100, 100, color.Gray{128}, color.Gray{128})
	frame := frameOf(t, img, true)

	dets, err := DetectCircles(frame, DefaultParameters())
	if err != nil {
		t.Fatalf("DetectCircles failed: %v", err)
	}
	if dets == nil {
		t.Fatal("DetectCircles should return an empty slice, not nil")
	}
	if len(dets) != 0 {
		t.Errorf("expected no detections, got %d", len(dets))
	}
}

func TestDetectCircles_HighThresholdFindsNothing(t *testing.T) {
	img := createDiskImage(120, 120, color.Black, color.White, disk{60, 60, 30})
	frame := frameOf(t, img, false)

	p := DefaultParameters()
	p.Param2 = 10000

	dets, err := DetectCircles(frame, p)
	if err != nil {
		t.Fatalf("DetectCircles failed: %v", err)
	}
	if len(dets) != 0 {
		t.Errorf("expected no detections above an unreachable threshold, got %d", len(dets))
	}
}

func TestDetectCircles_Deterministic(t *testing.T) {
	img := createDiskImage(160, 100, color.Black, color.White, disk{45, 50, 20}, disk{115, 50, 18})
	frame := frameOf(t, img, false)

	first, err := DetectCircles(frame, DefaultParameters())
	if err != nil {
		t.Fatalf("DetectCircles failed: %v", err)
	}
	second, err := DetectCircles(frame, DefaultParameters())
	if err != nil {
		t.Fatalf("DetectCircles failed: %v", err)
	}

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated detection differs (-first +second):\n%s", diff)
	}
}

func TestDetectCircles_InvalidFrame(t *testing.T) {
	tests := []struct {
		name  string
		frame *imaging.Frame
	}{
		{"nil frame", nil},
		{"nil gray", &imaging.Frame{Scale: 1}},
		{"zero size", &imaging.Frame{Gray: image.NewGray(image.Rect(0, 0, 0, 0)), Scale: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DetectCircles(tt.frame, DefaultParameters())
			if !errors.Is(err, errkind.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestDetectCircles_InvalidParameters(t *testing.T) {
	frame := &imaging.Frame{Gray: image.NewGray(image.Rect(0, 0, 10, 10)), Scale: 1}

	p := DefaultParameters()
	p.MinRadius = 50
	p.MaxRadius = 10

	_, err := DetectCircles(frame, p)
	if !errors.Is(err, errkind.ErrInvalidConfiguration) {
		t.Errorf("expected ErrInvalidConfiguration, got %v", err)
	}
}

func TestFindPeaks_Plateau(t *testing.T) {
	// Two equal neighbouring cells produce a single peak
	acc := []int{
		0, 0, 0, 0,
		0, 5, 5, 0,
		0, 0, 0, 0,
	}

	peaks := findPeaks(acc, 4, 3, 1)
	if len(peaks) != 1 {
		t.Fatalf("expected 1 peak, got %d: %+v", len(peaks), peaks)
	}
	if peaks[0].ix != 1 || peaks[0].iy != 1 || peaks[0].votes != 5 {
		t.Errorf("peak: got %+v, want {1 1 5}", peaks[0])
	}
}

func TestFindPeaks_Order(t *testing.T) {
	acc := []int{
		3, 0, 0, 0, 9,
		0, 0, 0, 0, 0,
		0, 0, 6, 0, 0,
	}

	peaks := findPeaks(acc, 5, 3, 2)
	got := make([]int, len(peaks))
	for i, p := range peaks {
		got[i] = p.votes
	}
	if diff := cmp.Diff([]int{9, 6, 3}, got); diff != "" {
		t.Errorf("peak order (-want +got):\n%s", diff)
	}
}

func TestEstimateRadius(t *testing.T) {
	// Ring of edge pixels at radius 10 around (20, 20)
	w, h := 41, 41
	em := &imaging.EdgeMap{Width: w, Height: h, Edge: make([]bool, w*h)}
	for deg := 0; deg < 360; deg += 3 {
		rad := float64(deg) * math.Pi / 180
		x := int(math.Round(20 + 10*math.Cos(rad)))
		y := int(math.Round(20 + 10*math.Sin(rad)))
		em.Edge[y*w+x] = true
	}

	r, support := estimateRadius(em, 20, 20, 1, 19)
	if math.Abs(r-10) > 0.5 {
		t.Errorf("radius: got %.2f, want ~10", r)
	}
	if support != em.Count() {
		t.Errorf("support: got %d, want all %d ring pixels", support, em.Count())
	}
}
