// Package detection finds bubbles in preprocessed photographs.
//
// Bubbles in a gas-liquid flow image appear as roughly circular outlines,
// brighter or darker than the surrounding liquid. DetectCircles locates them
// with the gradient Hough transform: every edge pixel votes for the centers
// that lie along its gradient, peaks in the vote accumulator become candidate
// centers, and each candidate's radius is read off the distance histogram of
// the edge pixels around it.
//
// # Coordinate System
//
// Detections are reported in the pixel coordinates of the frame they were
// found in:
//   - Origin (0, 0) at the centre of the top-left pixel
//   - X increases rightward
//   - Y increases downward
//
// A frame built in speed mode is half the size of the original image. Use
// the frame's Scale (original = frame / Scale) to map detections back, as the
// metrics package does.
//
// # Parameters
//
// Parameters mirrors the knobs of the common HOUGH_GRADIENT implementations
// (dp, minDist, param1, param2, radius range) so settings tuned elsewhere can
// be reused. Validate rejects values that cannot produce a meaningful search
// with errkind.ErrInvalidConfiguration.
//
// # Empty Results
//
// An image without bubbles yields an empty, non-nil slice. Nothing is ever
// substituted for a missing detection.
//
// # Performance Considerations
//
// Voting costs O(edge pixels × MaxRadius). For large photographs prefer speed
// mode or a tighter radius range.
package detection
