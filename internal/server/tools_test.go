package server

import (
	"testing"
)

func TestGetToolDefinitions(t *testing.T) {
	tools := GetToolDefinitions()

	expectedTools := []string{
		"image_load",
		"image_dimensions",
		"image_unload",
		"bubble_analyze",
		"bubble_metrics",
		"bubble_rank_detail",
		"bubble_overlay",
		"bubble_size_histogram",
		"bubble_edge_preview",
		"mass_transfer_derive",
		"mass_transfer_fit",
		"mass_transfer_predict",
	}

	if len(tools) != len(expectedTools) {
		t.Errorf("tool count: got %d, want %d", len(tools), len(expectedTools))
	}

	toolMap := make(map[string]Tool)
	for _, tool := range tools {
		if _, dup := toolMap[tool.Name]; dup {
			t.Errorf("duplicate tool %s", tool.Name)
		}
		toolMap[tool.Name] = tool
	}

	for _, name := range expectedTools {
		if _, ok := toolMap[name]; !ok {
			t.Errorf("Expected tool %s not found", name)
		}
	}
}

func TestToolDefinitions_Structure(t *testing.T) {
	tools := GetToolDefinitions()

	for _, tool := range tools {
		t.Run(tool.Name, func(t *testing.T) {
			if tool.Description == "" {
				t.Error("Tool description is empty")
			}
			if tool.InputSchema == nil {
				t.Fatal("Tool InputSchema is nil")
			}
			if schemaType := tool.InputSchema["type"]; schemaType != "object" {
				t.Errorf("InputSchema type: got %v, want 'object'", schemaType)
			}
			if _, ok := tool.InputSchema["properties"].(map[string]interface{}); !ok {
				t.Error("InputSchema properties should be a map")
			}
		})
	}
}

func TestToolDefinitions_BubbleToolsAcceptDetectionParameters(t *testing.T) {
	bubbleTools := []string{
		"bubble_analyze",
		"bubble_metrics",
		"bubble_rank_detail",
		"bubble_overlay",
		"bubble_size_histogram",
		"bubble_edge_preview",
	}
	params := []string{"path", "dp", "min_dist", "param1", "param2", "min_radius", "max_radius", "speed_mode", "pixels_per_cm", "enhance"}

	toolMap := make(map[string]Tool)
	for _, tool := range GetToolDefinitions() {
		toolMap[tool.Name] = tool
	}

	for _, name := range bubbleTools {
		t.Run(name, func(t *testing.T) {
			tool := toolMap[name]
			props := tool.InputSchema["properties"].(map[string]interface{})
			for _, p := range params {
				if _, ok := props[p]; !ok {
					t.Errorf("missing property %s", p)
				}
			}

			required, ok := tool.InputSchema["required"].([]string)
			if !ok || len(required) == 0 || required[0] != "path" {
				t.Errorf("required: got %v, want path first", tool.InputSchema["required"])
			}
		})
	}
}

func TestToolDefinitions_SchemasDoNotShareProperties(t *testing.T) {
	// Tool-specific properties must not leak between bubble tools
	toolMap := make(map[string]Tool)
	for _, tool := range GetToolDefinitions() {
		toolMap[tool.Name] = tool
	}

	analyze := toolMap["bubble_analyze"].InputSchema["properties"].(map[string]interface{})
	if _, ok := analyze["rank"]; ok {
		t.Error("bubble_analyze should not have a rank property")
	}

	detail := toolMap["bubble_rank_detail"]
	required := detail.InputSchema["required"].([]string)
	if len(required) != 2 || required[1] != "rank" {
		t.Errorf("bubble_rank_detail required: got %v, want [path rank]", required)
	}
}

func TestHandleToolsList(t *testing.T) {
	s := New(nil)
	req := &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/list",
	}

	resp := s.handleRequest(req)

	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}

	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}

	toolsList, ok := result["tools"].([]Tool)
	if !ok {
		t.Fatal("tools should be a slice of Tool")
	}
	if len(toolsList) != len(GetToolDefinitions()) {
		t.Errorf("Tool count: got %d, want %d", len(toolsList), len(GetToolDefinitions()))
	}
}
