package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Mark is one circle to draw on an overlay, in the pixel coordinates of the
// image being annotated.
type Mark struct {
	X      float64
	Y      float64
	Radius float64

	// Label is drawn to the right of the circle. Only digits render.
	Label string
}

// OverlayOptions controls how marks are drawn.
type OverlayOptions struct {
	// Color is the outline colour as "#RRGGBB". Empty selects a hue ramp so
	// neighbouring marks are distinguishable.
	Color string

	// Highlight is the label of a mark to emphasise, or "" for none.
	Highlight string

	// HighlightColor is the "#RRGGBB" colour of the highlighted mark.
	HighlightColor string

	// Thickness of the outline in pixels (default 2).
	Thickness int

	// Boxes draws square bounding boxes instead of circles.
	Boxes bool

	// ShowLabels draws each mark's label.
	ShowLabels bool
}

// OverlayResult contains the annotated image
type OverlayResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Marks       int    `json:"marks"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// Overlay draws marks on a copy of img and returns it as base64 PNG.
//
// Invalid colour strings fall back to the defaults: hue ramp for outlines,
// green for the highlight.
func Overlay(img image.Image, marks []Mark, opts OverlayOptions) (*OverlayResult, error) {
	bounds := img.Bounds()

	result := image.NewRGBA(bounds)
	draw.Draw(result, bounds, img, bounds.Min, draw.Src)

	thickness := opts.Thickness
	if thickness <= 0 {
		thickness = 2
	}

	var fixed color.Color
	if opts.Color != "" {
		if c, err := colorful.Hex(opts.Color); err == nil {
			fixed = c
		}
	}
	highlight := color.Color(color.RGBA{0, 255, 0, 255})
	if c, err := colorful.Hex(opts.HighlightColor); err == nil {
		highlight = c
	}

	labelFg := color.RGBA{255, 255, 255, 255}
	labelBg := color.RGBA{0, 0, 0, 180}

	for i, m := range marks {
		c := fixed
		if c == nil {
			c = rampColor(i, len(marks))
		}
		t := thickness
		if opts.Highlight != "" && m.Label == opts.Highlight {
			c = highlight
			t = thickness + 1
		}

		if opts.Boxes {
			drawBox(result, m.X, m.Y, m.Radius, t, c)
		} else {
			drawCircle(result, m.X, m.Y, m.Radius, t, c)
		}

		if opts.ShowLabels && m.Label != "" {
			lx := int(m.X+m.Radius+0.5) + 5
			ly := int(m.Y+0.5) - 3
			drawLabel(result, lx, ly, m.Label, labelFg, labelBg)
		}
	}

	encoded, err := encodePNG(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return &OverlayResult{
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		Marks:       len(marks),
		ImageBase64: encoded,
		MimeType:    "image/png",
	}, nil
}

// rampColor spreads n marks over the hue circle, starting at red.
func rampColor(i, n int) color.Color {
	if n <= 1 {
		return colorful.Hsv(0, 1, 1)
	}
	return colorful.Hsv(300*float64(i)/float64(n-1), 0.9, 1)
}

// drawCircle draws a ring of the given thickness centred on (cx, cy).
// Pixels outside the image are skipped.
func drawCircle(img *image.RGBA, cx, cy, radius float64, thickness int, c color.Color) {
	b := img.Bounds()
	inner := radius - float64(thickness)/2
	outer := radius + float64(thickness)/2
	if inner < 0 {
		inner = 0
	}

	x0 := max(int(math.Floor(cx-outer)), b.Min.X)
	x1 := min(int(math.Ceil(cx+outer)), b.Max.X-1)
	y0 := max(int(math.Floor(cy-outer)), b.Min.Y)
	y1 := min(int(math.Ceil(cy+outer)), b.Max.Y-1)

	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			dx := float64(x) - cx
			dy := float64(y) - cy
			d := math.Sqrt(dx*dx + dy*dy)
			if d >= inner && d <= outer {
				img.Set(x, y, c)
			}
		}
	}
}

// drawBox draws the square bounding box of a circle.
func drawBox(img *image.RGBA, cx, cy, radius float64, thickness int, c color.Color) {
	b := img.Bounds()
	x0 := int(cx - radius + 0.5)
	y0 := int(cy - radius + 0.5)
	x1 := int(cx + radius + 0.5)
	y1 := int(cy + radius + 0.5)

	set := func(x, y int) {
		if x >= b.Min.X && x < b.Max.X && y >= b.Min.Y && y < b.Max.Y {
			img.Set(x, y, c)
		}
	}

	for t := 0; t < thickness; t++ {
		for x := x0 - t; x <= x1+t; x++ {
			set(x, y0-t)
			set(x, y1+t)
		}
		for y := y0 - t; y <= y1+t; y++ {
			set(x0-t, y)
			set(x1+t, y)
		}
	}
}

// drawLabel draws a simple text label at the given position
// This is a basic implementation - for production, consider using a font library
func drawLabel(img *image.RGBA, x, y int, text string, fg, bg color.RGBA) {
	// Simple 3x5 pixel font for digits
	glyphs := map[rune][]string{
		'0': {"111", "101", "101", "101", "111"},
		'1': {"010", "110", "010", "010", "111"},
		'2': {"111", "001", "111", "100", "111"},
		'3': {"111", "001", "111", "001", "111"},
		'4': {"101", "101", "111", "001", "001"},
		'5': {"111", "100", "111", "001", "111"},
		'6': {"111", "100", "111", "101", "111"},
		'7': {"111", "001", "001", "001", "001"},
		'8': {"111", "101", "111", "101", "111"},
		'9': {"111", "101", "111", "001", "111"},
	}

	bounds := img.Bounds()
	charWidth := 4
	labelWidth := len(text) * charWidth
	labelHeight := 7

	// Draw background
	for dy := -1; dy < labelHeight; dy++ {
		for dx := -1; dx < labelWidth; dx++ {
			px, py := x+dx, y+dy
			if px >= bounds.Min.X && px < bounds.Max.X && py >= bounds.Min.Y && py < bounds.Max.Y {
				img.Set(px, py, bg)
			}
		}
	}

	// Draw text
	cx := x
	for _, ch := range text {
		glyph, ok := glyphs[ch]
		if !ok {
			cx += charWidth
			continue
		}
		for row, line := range glyph {
			for col, pixel := range line {
				if pixel == '1' {
					px, py := cx+col, y+row
					if px >= bounds.Min.X && px < bounds.Max.X && py >= bounds.Min.Y && py < bounds.Max.Y {
						img.Set(px, py, fg)
					}
				}
			}
		}
		cx += charWidth
	}
}
