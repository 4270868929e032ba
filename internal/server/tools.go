package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// pathProperty is the image path argument shared by every image tool.
var pathProperty = map[string]interface{}{
	"type":        "string",
	"description": "Absolute path to the image file",
}

// detectionProperties returns the optional detection overrides accepted by
// every bubble tool. Omitted values fall back to the server configuration.
func detectionProperties() map[string]interface{} {
	return map[string]interface{}{
		"dp": map[string]interface{}{
			"type":        "number",
			"description": "Inverse accumulator resolution (1 = full resolution, 2 = half). Default from config (1.2)",
		},
		"min_dist": map[string]interface{}{
			"type":        "number",
			"description": "Minimum distance in frame pixels between bubble centers. Default 20",
		},
		"param1": map[string]interface{}{
			"type":        "number",
			"description": "Edge sensitivity: upper Canny threshold. Default 50",
		},
		"param2": map[string]interface{}{
			"type":        "number",
			"description": "Accumulator vote threshold; lower finds more (and weaker) circles. Default 30",
		},
		"min_radius": map[string]interface{}{
			"type":        "integer",
			"description": "Smallest radius searched, in frame pixels. Default 0",
		},
		"max_radius": map[string]interface{}{
			"type":        "integer",
			"description": "Largest radius searched, in frame pixels. Default 100",
		},
		"speed_mode": map[string]interface{}{
			"type":        "boolean",
			"description": "Halve the image before detection. Default true",
		},
		"pixels_per_cm": map[string]interface{}{
			"type":        "number",
			"description": "Physical calibration of the photograph in pixels per centimetre. Default 100",
		},
		"enhance": map[string]interface{}{
			"type":        "boolean",
			"description": "Equalise contrast and denoise before detection. Default false",
		},
	}
}

// bubbleSchema builds an input schema for a bubble tool: the path, the
// detection overrides and any tool-specific properties.
func bubbleSchema(extra map[string]interface{}, required ...string) map[string]interface{} {
	props := mergeProperties(detectionProperties(), extra)
	props["path"] = pathProperty
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   append([]string{"path"}, required...),
	}
}

// columnsProperties describes the two ways tabular data can be supplied.
func columnsProperties() map[string]interface{} {
	return map[string]interface{}{
		"columns": map[string]interface{}{
			"type":                 "object",
			"description":          "Named numeric columns of equal length, e.g. {\"velocity\": [0.1, 0.2], ...}",
			"additionalProperties": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "number"}},
		},
		"csv": map[string]interface{}{
			"type":        "string",
			"description": "CSV text with a header row; used when columns is omitted",
		},
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Basic Image Information
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions, format and channel count. The image is cached for subsequent bubble tools.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_dimensions",
			Description: "Get the width and height of an image file.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_unload",
			Description: "Drop an image from the server cache so the next call rereads it from disk. Without a path the whole cache is cleared.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Path exactly as previously passed to a tool. Omit to clear every cached image",
					},
				},
			},
		},

		// Bubble Detection
		{
			Name:        "bubble_analyze",
			Description: "Detect bubbles (circular features) in a photograph. Returns detections in processing-frame coordinates, the frame scale and the ranked bubble records in original-image coordinates and physical units.",
			InputSchema: bubbleSchema(map[string]interface{}{
				"include_frame": map[string]interface{}{
					"type":        "boolean",
					"description": "Also return the processed grayscale frame as base64 PNG. Default false",
				},
			}),
		},
		{
			Name:        "bubble_metrics",
			Description: "Detect bubbles and return the ranked size table (diameter in px, mm and cm, area in cm²) with summary statistics.",
			InputSchema: bubbleSchema(map[string]interface{}{
				"bins": map[string]interface{}{
					"type":        "integer",
					"description": "Number of histogram bins in the summary. Default from config (20)",
				},
			}),
		},
		{
			Name:        "bubble_rank_detail",
			Description: "Detect bubbles and return the record of one rank (1 = largest) with a zoomed crop of that bubble from the original image.",
			InputSchema: bubbleSchema(map[string]interface{}{
				"rank": map[string]interface{}{
					"type":        "integer",
					"description": "Bubble rank, 1 is the largest",
				},
				"margin": map[string]interface{}{
					"type":        "integer",
					"description": "Pixels of context around the bubble. Default 10",
				},
				"zoom": map[string]interface{}{
					"type":        "number",
					"description": "Scale factor applied to the crop, at most 10. Default 1.0",
				},
			}, "rank"),
		},
		{
			Name:        "bubble_overlay",
			Description: "Detect bubbles and draw them on the original image, labelled by rank. Returns base64 PNG.",
			InputSchema: bubbleSchema(map[string]interface{}{
				"highlight_rank": map[string]interface{}{
					"type":        "integer",
					"description": "Rank to emphasise. Default none",
				},
				"color": map[string]interface{}{
					"type":        "string",
					"description": "Outline colour as #RRGGBB. Default: one hue per rank",
				},
				"highlight_color": map[string]interface{}{
					"type":        "string",
					"description": "Colour of the highlighted bubble. Default #00FF00",
				},
				"thickness": map[string]interface{}{
					"type":        "integer",
					"description": "Outline thickness in pixels. Default 2",
				},
				"boxes": map[string]interface{}{
					"type":        "boolean",
					"description": "Draw bounding boxes instead of circles. Default false",
				},
				"hide_labels": map[string]interface{}{
					"type":        "boolean",
					"description": "Do not draw rank labels. Default false",
				},
				"on_frame": map[string]interface{}{
					"type":        "boolean",
					"description": "Draw on the processed frame the detector saw instead of the original image. Default false",
				},
			}),
		},
		{
			Name:        "bubble_size_histogram",
			Description: "Detect bubbles and return the bubble diameter distribution (cm) as a bin table and a rendered PNG histogram.",
			InputSchema: bubbleSchema(map[string]interface{}{
				"bins": map[string]interface{}{
					"type":        "integer",
					"description": "Number of bins. Default from config (20)",
				},
			}),
		},
		{
			Name:        "bubble_edge_preview",
			Description: "Render the Canny edges the bubble detector sees on the processed frame. Use it to tune param1.",
			InputSchema: bubbleSchema(map[string]interface{}{
				"threshold": map[string]interface{}{
					"type":        "number",
					"description": "Upper edge threshold; the lower is half. Default param1",
				},
			}),
		},

		// Mass Transfer
		{
			Name:        "mass_transfer_derive",
			Description: "Derive Reynolds (Re = velocity·diameter/viscosity) and Schmidt (Sc = viscosity/diffusivity) numbers from raw columns. Input columns are returned unchanged alongside the derived ones.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": columnsProperties(),
			},
		},
		{
			Name:        "mass_transfer_fit",
			Description: "Fit the Sherwood correlation Sh = a·Re^x1·Sc^x2 to measured data with the Nelder-Mead simplex method. Data needs Re, Sc and Sh columns, or raw columns from which Re and Sc can be derived.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": mergeProperties(columnsProperties(), map[string]interface{}{
					"observations": map[string]interface{}{
						"type":        "array",
						"description": "Observations as {re, sc, sh} objects; takes precedence over columns and csv",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"re": map[string]interface{}{"type": "number"},
								"sc": map[string]interface{}{"type": "number"},
								"sh": map[string]interface{}{"type": "number"},
							},
							"required": []string{"re", "sc", "sh"},
						},
					},
					"initial_guess": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "number"},
						"description": "Starting point [a, x1, x2]. Default [1.0, 0.5, 0.33]",
					},
					"max_iterations": map[string]interface{}{
						"type":        "integer",
						"description": "Iteration limit. Default 5000",
					},
					"tolerance": map[string]interface{}{
						"type":        "number",
						"description": "Objective improvement below which the search stops; 0 runs to the iteration limit. Default 1e-12",
					},
				}),
			},
		},
		{
			Name:        "mass_transfer_predict",
			Description: "Evaluate Sh = a·Re^x1·Sc^x2 for given coefficients.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"re": map[string]interface{}{"type": "number", "description": "Reynolds number"},
					"sc": map[string]interface{}{"type": "number", "description": "Schmidt number"},
					"a":  map[string]interface{}{"type": "number", "description": "Coefficient a"},
					"x1": map[string]interface{}{"type": "number", "description": "Reynolds exponent"},
					"x2": map[string]interface{}{"type": "number", "description": "Schmidt exponent"},
				},
				"required": []string{"re", "sc", "a", "x1", "x2"},
			},
		},
	}
}

func mergeProperties(a, b map[string]interface{}) map[string]interface{} {
	for k, v := range b {
		a[k] = v
	}
	return a
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
