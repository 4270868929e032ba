// Package server implements the MCP (Model Context Protocol) server for the
// bubble analysis and mass-transfer tools.
//
// It is a thin presentation layer: every tool call decodes its arguments,
// merges them over the configured defaults and calls the analysis, metrics
// and masstransfer packages. No state survives between calls apart from the
// image cache, which image_unload empties.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Basic Image Information:
//   - image_load: Load image and get metadata
//   - image_dimensions: Get width and height
//   - image_unload: Evict one cached image, or clear the cache
//
// Bubble Detection:
//   - bubble_analyze: Detections, frame scale and ranked records
//   - bubble_metrics: Ranked size table with summary statistics
//   - bubble_rank_detail: One record plus a zoomed crop of that bubble
//   - bubble_overlay: Detected bubbles drawn on the image, labelled by rank
//   - bubble_size_histogram: Diameter distribution as table and PNG
//   - bubble_edge_preview: The Canny edges the detector works from
//
// Mass Transfer:
//   - mass_transfer_derive: Re and Sc from raw columns
//   - mass_transfer_fit: Sh = a·Re^x1·Sc^x2 by Nelder-Mead
//   - mass_transfer_predict: Evaluate a fitted correlation
//
// Every bubble tool accepts the detection parameters (dp, min_dist, param1,
// param2, min_radius, max_radius, speed_mode, pixels_per_cm, enhance) as
// optional overrides. Omitted parameters take the configured value; an
// explicit value, including zero, is validated as given.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: "Invalid input", "Invalid configuration" or
//     "Tool execution failed"
//   - data: The Go error string
//
// Finding no bubbles is not an error: the result has count 0 and a hint in
// its message field. A fit that stops on its iteration limit is returned
// with converged=false and a warning.
//
// # Usage
//
//	srv := server.New(cfg)
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
