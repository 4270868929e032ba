package imaging

import (
	"image"
	"math"

	"github.com/anthonynsimon/bild/effect"
)

const (
	claheClipLimit = 2.0
	claheTiles     = 8
	medianRadius   = 1
)

// Enhance improves bubble contrast in low-contrast photographs.
//
// It applies contrast limited adaptive histogram equalisation (clip limit 2.0
// on an 8x8 tile grid) followed by a 3x3 median filter to suppress the speckle
// that equalisation amplifies. The returned frame has the same size and scale
// as the input; the input is not modified.
func Enhance(frame *Frame) *Frame {
	equalized := clahe(frame.Gray, claheClipLimit, claheTiles, claheTiles)
	denoised := effect.Median(equalized, medianRadius)
	return &Frame{Gray: toGray(denoised), Scale: frame.Scale}
}

// clahe equalises each tile's histogram with the excess above the clip limit
// redistributed uniformly, then bilinearly interpolates between the lookup
// tables of the four nearest tiles.
//
// The clip limit is relative: a value of 1 means each bin may hold at most
// the tile's mean bin count.
func clahe(gray *image.Gray, clipLimit float64, tilesX, tilesY int) *image.Gray {
	b := gray.Bounds()
	width, height := b.Dx(), b.Dy()
	dst := image.NewGray(image.Rect(0, 0, width, height))
	if width == 0 || height == 0 {
		return dst
	}

	if tilesX > width {
		tilesX = width
	}
	if tilesY > height {
		tilesY = height
	}
	tileW := (width + tilesX - 1) / tilesX
	tileH := (height + tilesY - 1) / tilesY

	at := func(x, y int) uint8 {
		return gray.Pix[y*gray.Stride+x]
	}

	luts := make([][256]uint8, tilesX*tilesY)
	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			x0, y0 := tx*tileW, ty*tileH
			x1, y1 := min(x0+tileW, width), min(y0+tileH, height)

			var hist [256]int
			area := 0
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					hist[at(x, y)]++
					area++
				}
			}
			if area == 0 {
				for v := range luts[ty*tilesX+tx] {
					luts[ty*tilesX+tx][v] = uint8(v)
				}
				continue
			}

			limit := int(clipLimit * float64(area) / 256)
			if limit < 1 {
				limit = 1
			}
			excess := 0
			for v, c := range hist {
				if c > limit {
					excess += c - limit
					hist[v] = limit
				}
			}
			share, rest := excess/256, excess%256
			for v := range hist {
				hist[v] += share
				if v < rest {
					hist[v]++
				}
			}

			cdf := 0
			lut := &luts[ty*tilesX+tx]
			for v, c := range hist {
				cdf += c
				lut[v] = uint8(min(255, cdf*255/area))
			}
		}
	}

	for y := 0; y < height; y++ {
		// Position relative to tile centres
		fy := (float64(y)+0.5)/float64(tileH) - 0.5
		ty0 := clamp(int(math.Floor(fy)), 0, tilesY-1)
		ty1 := clamp(ty0+1, 0, tilesY-1)
		wy := clampF(fy-float64(ty0), 0, 1)

		for x := 0; x < width; x++ {
			fx := (float64(x)+0.5)/float64(tileW) - 0.5
			tx0 := clamp(int(math.Floor(fx)), 0, tilesX-1)
			tx1 := clamp(tx0+1, 0, tilesX-1)
			wx := clampF(fx-float64(tx0), 0, 1)

			v := at(x, y)
			top := (1-wx)*float64(luts[ty0*tilesX+tx0][v]) + wx*float64(luts[ty0*tilesX+tx1][v])
			bottom := (1-wx)*float64(luts[ty1*tilesX+tx0][v]) + wx*float64(luts[ty1*tilesX+tx1][v])
			dst.Pix[y*dst.Stride+x] = uint8((1-wy)*top + wy*bottom + 0.5)
		}
	}

	return dst
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
