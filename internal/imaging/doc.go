// Package imaging provides the image handling that sits in front of the
// bubble detector: decoding, preprocessing, edge detection and rendering.
//
// A photograph enters as a RawImage (decoded bytes plus format), is turned
// into a Frame by Preprocess, and is what the circle detector and the edge
// preview operate on. Overlay and CropAround render results back onto either
// the frame or the original image.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - For regions, (x1,y1) is inclusive (top-left), (x2,y2) is exclusive (bottom-right)
//
// A Frame may be smaller than the image it came from. Frame.Scale converts
// between the two: original = frame / Scale.
//
// # Preprocessing
//
// Preprocess resamples (speed mode only), converts to luminance and applies a
// 5x5 Gaussian blur. Enhance optionally follows with CLAHE and a median
// filter for low-contrast photographs.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Frames are never modified
// after construction, so every operation here can run concurrently.
//
// # Error Handling
//
// Undecodable or empty input wraps errkind.ErrInvalidInput so callers can
// distinguish bad images from I/O failures with errors.Is.
package imaging
