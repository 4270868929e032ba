package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"sync"

	"github.com/ironsheep/bubble-tools-mcp/internal/errkind"
)

// RawImage is an encoded raster together with its decoded pixel grid.
//
// The byte buffer is kept unchanged so callers can pass the original encoding
// through to other consumers. The decoded Image is the source of truth for
// original-resolution coordinates. A RawImage must not be modified after
// DecodeBytes returns it.
type RawImage struct {
	// Bytes is the encoded image exactly as supplied.
	Bytes []byte

	// Image is the decoded pixel grid.
	Image image.Image

	// Format is the decoder name reported by image.Decode: "png", "jpeg" or "gif".
	Format string
}

// Width returns the width of the decoded image in pixels.
func (r *RawImage) Width() int {
	return r.Image.Bounds().Dx()
}

// Height returns the height of the decoded image in pixels.
func (r *RawImage) Height() int {
	return r.Image.Bounds().Dy()
}

// Channels returns the number of colour channels of the decoded image:
// 1 for grayscale, 3 for colour without alpha, 4 for colour with alpha.
func (r *RawImage) Channels() int {
	switch r.Image.(type) {
	case *image.Gray, *image.Gray16:
		return 1
	case *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64:
		return 4
	}
	return 3
}

// DecodeBytes decodes a PNG, JPEG or GIF buffer into a RawImage.
//
// Returns an error wrapping errkind.ErrInvalidInput if the buffer is empty,
// cannot be decoded, or decodes to an image with a zero dimension.
func DecodeBytes(data []byte) (*RawImage, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image buffer: %w", errkind.ErrInvalidInput)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %v: %w", err, errkind.ErrInvalidInput)
	}

	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("image has zero size %dx%d: %w", b.Dx(), b.Dy(), errkind.ErrInvalidInput)
	}

	return &RawImage{Bytes: data, Image: img, Format: format}, nil
}

// ImageCache provides thread-safe caching of loaded images to avoid redundant disk reads.
//
// The cache stores decoded RawImage values keyed by their file path. Once an
// image is loaded, subsequent Load() calls for the same path return the cached
// copy without disk I/O. The cache belongs to the tool surface; the analysis
// engine itself always receives explicit image bytes.
//
// ImageCache is safe for concurrent use by multiple goroutines.
//
// # Memory Management
//
// Cached images remain in memory until explicitly removed via Evict() or Clear().
// Both the encoded bytes and the decoded pixels are held, so a long-running
// server analysing many photographs should evict images it is done with.
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]*RawImage
}

// NewImageCache creates and initializes a new empty image cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]*RawImage),
	}
}

// Load retrieves an image from the cache or loads it from disk if not cached.
//
// Parameters:
//   - path: Absolute or relative file path to the image. Supported formats are
//     PNG, JPEG, and GIF.
//
// The image is cached using the exact path string provided. Different paths to the
// same file (e.g., relative vs absolute) will result in separate cache entries.
//
// # Errors
//
//   - Returns error if the file does not exist or cannot be read
//   - Returns an errkind.ErrInvalidInput error if the file is not a valid image
func (c *ImageCache) Load(path string) (*RawImage, error) {
	c.mu.RLock()
	if raw, ok := c.images[path]; ok {
		c.mu.RUnlock()
		return raw, nil
	}
	c.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}

	raw, err := DecodeBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	c.mu.Lock()
	c.images[path] = raw
	c.mu.Unlock()

	return raw, nil
}

// Clear removes all images from the cache, freeing the associated memory.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]*RawImage)
	c.mu.Unlock()
}

// Evict removes a specific image from the cache by its path.
//
// If the path is not in the cache, this method does nothing.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.images, path)
	c.mu.Unlock()
}

// ImageInfo contains metadata about a loaded image file.
type ImageInfo struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Format is the decoded image format: "png", "jpeg" or "gif".
	Format string `json:"format"`

	// Channels is the channel depth: 1 (gray), 3 (colour) or 4 (colour + alpha).
	Channels int `json:"channels"`

	// ColorDepth indicates the bit depth per channel: "8-bit" or "16-bit".
	ColorDepth string `json:"color_depth"`

	// FileSizeBytes is the size of the encoded image in bytes.
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// LoadImageInfo loads an image and returns metadata about it.
//
// The image is loaded into the cache if not already cached.
//
// # Color Depth Detection
//
// Color depth is determined by the Go image type:
//   - *image.RGBA64, *image.NRGBA64, *image.Gray16 -> "16-bit"
//   - All other types -> "8-bit"
func LoadImageInfo(cache *ImageCache, path string) (*ImageInfo, error) {
	raw, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	colorDepth := "8-bit"
	switch raw.Image.(type) {
	case *image.RGBA64, *image.NRGBA64, *image.Gray16:
		colorDepth = "16-bit"
	}

	return &ImageInfo{
		Width:         raw.Width(),
		Height:        raw.Height(),
		Format:        raw.Format,
		Channels:      raw.Channels(),
		ColorDepth:    colorDepth,
		FileSizeBytes: int64(len(raw.Bytes)),
	}, nil
}

// DimensionsResult contains the width and height of an image.
type DimensionsResult struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`
}

// GetDimensions returns the dimensions of an image without additional metadata.
func GetDimensions(cache *ImageCache, path string) (*DimensionsResult, error) {
	raw, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	return &DimensionsResult{
		Width:  raw.Width(),
		Height: raw.Height(),
	}, nil
}
