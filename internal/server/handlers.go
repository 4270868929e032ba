package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/ironsheep/bubble-tools-mcp/internal/analysis"
	"github.com/ironsheep/bubble-tools-mcp/internal/detection"
	"github.com/ironsheep/bubble-tools-mcp/internal/errkind"
	"github.com/ironsheep/bubble-tools-mcp/internal/imaging"
	"github.com/ironsheep/bubble-tools-mcp/internal/masstransfer"
	"github.com/ironsheep/bubble-tools-mcp/internal/metrics"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "bubble_analyze", "mass_transfer_fit").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
// The message names the error category (see errorMessage).
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	if s.cfg.Debug() {
		log.Printf("[DEBUG] tools/call %s", params.Name)
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		if s.cfg.Debug() {
			log.Printf("[DEBUG] %s failed: %v", params.Name, err)
		}
		return s.errorResponse(req.ID, -32000, errorMessage(err), err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
//
// Each tool handler:
//  1. Unmarshals arguments from JSON
//  2. Applies configured defaults for omitted parameters
//  3. Loads images from cache as needed
//  4. Calls the analysis/metrics/masstransfer functions
//  5. Returns the result or error
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Basic Image Information
	case "image_load":
		return s.handleImageLoad(args)
	case "image_dimensions":
		return s.handleImageDimensions(args)
	case "image_unload":
		return s.handleImageUnload(args)

	// Bubble Detection
	case "bubble_analyze":
		return s.handleBubbleAnalyze(args)
	case "bubble_metrics":
		return s.handleBubbleMetrics(args)
	case "bubble_rank_detail":
		return s.handleBubbleRankDetail(args)
	case "bubble_overlay":
		return s.handleBubbleOverlay(args)
	case "bubble_size_histogram":
		return s.handleBubbleSizeHistogram(args)
	case "bubble_edge_preview":
		return s.handleBubbleEdgePreview(args)

	// Mass Transfer
	case "mass_transfer_derive":
		return s.handleMassTransferDerive(args)
	case "mass_transfer_fit":
		return s.handleMassTransferFit(args)
	case "mass_transfer_predict":
		return s.handleMassTransferPredict(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// errorMessage names the category of a tool failure.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, errkind.ErrInvalidConfiguration):
		return "Invalid configuration"
	case errors.Is(err, errkind.ErrInvalidInput):
		return "Invalid input"
	default:
		return "Tool execution failed"
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// decodeArgs unmarshals tool arguments. Missing arguments decode as an
// empty object.
func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %v: %w", err, errkind.ErrInvalidInput)
	}
	return nil
}

// === Basic Image Information Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

func (s *Server) handleImageDimensions(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return imaging.GetDimensions(s.cache, a.Path)
}

type imageUnloadResult struct {
	Path    string `json:"path,omitempty"`
	Cleared bool   `json:"cleared"`
}

func (s *Server) handleImageUnload(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		s.cache.Clear()
		return &imageUnloadResult{Cleared: true}, nil
	}
	s.cache.Evict(a.Path)
	return &imageUnloadResult{Path: a.Path}, nil
}

// === Bubble Detection Handlers ===

// detectionArgs are the per-call overrides of the configured detection
// parameters. A nil field keeps the configured value, so an explicit zero
// reaches validation instead of silently becoming the default.
type detectionArgs struct {
	DP          *float64 `json:"dp"`
	MinDist     *float64 `json:"min_dist"`
	Param1      *float64 `json:"param1"`
	Param2      *float64 `json:"param2"`
	MinRadius   *int     `json:"min_radius"`
	MaxRadius   *int     `json:"max_radius"`
	SpeedMode   *bool    `json:"speed_mode"`
	PixelsPerCm *float64 `json:"pixels_per_cm"`
	Enhance     *bool    `json:"enhance"`
}

func (a detectionArgs) apply(p detection.Parameters) detection.Parameters {
	if a.DP != nil {
		p.DP = *a.DP
	}
	if a.MinDist != nil {
		p.MinDist = *a.MinDist
	}
	if a.Param1 != nil {
		p.Param1 = *a.Param1
	}
	if a.Param2 != nil {
		p.Param2 = *a.Param2
	}
	if a.MinRadius != nil {
		p.MinRadius = *a.MinRadius
	}
	if a.MaxRadius != nil {
		p.MaxRadius = *a.MaxRadius
	}
	if a.SpeedMode != nil {
		p.SpeedMode = *a.SpeedMode
	}
	if a.PixelsPerCm != nil {
		p.PixelsPerCm = *a.PixelsPerCm
	}
	if a.Enhance != nil {
		p.Enhance = *a.Enhance
	}
	return p
}

// analyze loads the image at path and runs the bubble pipeline on it with
// the configured parameters overridden by d.
func (s *Server) analyze(path string, d detectionArgs) (*analysis.Result, []metrics.BubbleRecord, error) {
	raw, err := s.cache.Load(path)
	if err != nil {
		return nil, nil, err
	}

	result, err := analysis.Analyze(raw, d.apply(s.cfg.DetectionParameters()))
	if err != nil {
		return nil, nil, err
	}

	records, err := result.Metrics()
	if err != nil {
		return nil, nil, err
	}

	if s.cfg.Debug() {
		log.Printf("[DEBUG] %s: %d bubbles in %dx%d frame (scale %.2f)",
			path, len(records), result.Frame.Width(), result.Frame.Height(), result.Scale)
	}

	return result, records, nil
}

const noBubblesMessage = "No bubbles detected. Try lowering param2 or param1, or widening the radius range."

type bubbleAnalyzeArgs struct {
	Path         string `json:"path"`
	IncludeFrame bool   `json:"include_frame"`
	detectionArgs
}

type bubbleAnalyzeResult struct {
	Count          int                    `json:"count"`
	NoDetections   bool                   `json:"no_detections"`
	Message        string                 `json:"message,omitempty"`
	Scale          float64                `json:"scale"`
	OriginalWidth  int                    `json:"original_width"`
	OriginalHeight int                    `json:"original_height"`
	FrameWidth     int                    `json:"frame_width"`
	FrameHeight    int                    `json:"frame_height"`
	Parameters     detection.Parameters   `json:"parameters"`
	Detections     []detection.Detection  `json:"detections"`
	Bubbles        []metrics.BubbleRecord `json:"bubbles"`
	FrameBase64    string                 `json:"frame_base64,omitempty"`
}

func (s *Server) handleBubbleAnalyze(args json.RawMessage) (interface{}, error) {
	var a bubbleAnalyzeArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}

	result, records, err := s.analyze(a.Path, a.detectionArgs)
	if err != nil {
		return nil, err
	}

	out := &bubbleAnalyzeResult{
		Count:          len(records),
		NoDetections:   result.NoDetections(),
		Scale:          result.Scale,
		OriginalWidth:  result.OriginalWidth,
		OriginalHeight: result.OriginalHeight,
		FrameWidth:     result.Frame.Width(),
		FrameHeight:    result.Frame.Height(),
		Parameters:     result.Parameters,
		Detections:     result.Detections,
		Bubbles:        records,
	}
	if out.NoDetections {
		out.Message = noBubblesMessage
	}
	if a.IncludeFrame {
		encoded, err := imaging.FrameImage(result.Frame)
		if err != nil {
			return nil, err
		}
		out.FrameBase64 = encoded
	}
	return out, nil
}

type bubbleMetricsArgs struct {
	Path string `json:"path"`
	Bins int    `json:"bins"`
	detectionArgs
}

type bubbleMetricsResult struct {
	Count   int                    `json:"count"`
	Message string                 `json:"message,omitempty"`
	Bubbles []metrics.BubbleRecord `json:"bubbles"`
	Summary *metrics.Summary       `json:"summary"`
}

func (s *Server) handleBubbleMetrics(args json.RawMessage) (interface{}, error) {
	var a bubbleMetricsArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Bins == 0 {
		a.Bins = s.histogramBins()
	}

	_, records, err := s.analyze(a.Path, a.detectionArgs)
	if err != nil {
		return nil, err
	}

	summary, err := metrics.Summarize(records, a.Bins)
	if err != nil {
		return nil, err
	}

	out := &bubbleMetricsResult{
		Count:   len(records),
		Bubbles: records,
		Summary: summary,
	}
	if len(records) == 0 {
		out.Message = noBubblesMessage
	}
	return out, nil
}

type bubbleRankDetailArgs struct {
	Path   string   `json:"path"`
	Rank   int      `json:"rank"`
	Margin *int     `json:"margin"`
	Zoom   *float64 `json:"zoom"`
	detectionArgs
}

type bubbleRankDetailResult struct {
	Bubble metrics.BubbleRecord `json:"bubble"`
	Of     int                  `json:"of"`
	Crop   *imaging.CropResult  `json:"crop"`
}

func (s *Server) handleBubbleRankDetail(args json.RawMessage) (interface{}, error) {
	var a bubbleRankDetailArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	margin := 10
	if a.Margin != nil {
		margin = *a.Margin
	}
	if margin < 0 {
		return nil, fmt.Errorf("margin must not be negative, got %d: %w", margin, errkind.ErrInvalidInput)
	}
	zoom := 1.0
	if a.Zoom != nil {
		zoom = *a.Zoom
	}
	if !(zoom > 0) || zoom > imaging.MaxCropScale {
		return nil, fmt.Errorf("zoom must be in (0, %g], got %v: %w", imaging.MaxCropScale, zoom, errkind.ErrInvalidInput)
	}

	_, records, err := s.analyze(a.Path, a.detectionArgs)
	if err != nil {
		return nil, err
	}

	rec, err := metrics.ByRank(records, a.Rank)
	if err != nil {
		return nil, err
	}

	raw, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	crop, err := imaging.CropAround(raw.Image, rec.X, rec.Y, rec.Radius, margin, zoom)
	if err != nil {
		return nil, err
	}

	return &bubbleRankDetailResult{
		Bubble: rec,
		Of:     len(records),
		Crop:   crop,
	}, nil
}

type bubbleOverlayArgs struct {
	Path           string `json:"path"`
	HighlightRank  int    `json:"highlight_rank"`
	Color          string `json:"color"`
	HighlightColor string `json:"highlight_color"`
	Thickness      int    `json:"thickness"`
	Boxes          bool   `json:"boxes"`
	HideLabels     bool   `json:"hide_labels"`
	OnFrame        bool   `json:"on_frame"`
	detectionArgs
}

func (s *Server) handleBubbleOverlay(args json.RawMessage) (interface{}, error) {
	var a bubbleOverlayArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Thickness == 0 {
		a.Thickness = 2
	}

	result, records, err := s.analyze(a.Path, a.detectionArgs)
	if err != nil {
		return nil, err
	}
	if a.HighlightRank != 0 {
		if _, err := metrics.ByRank(records, a.HighlightRank); err != nil {
			return nil, err
		}
	}

	// Records are in original coordinates; the frame is Scale times smaller.
	if a.OnFrame {
		return imaging.Overlay(result.Frame.Gray, marksFor(records, result.Scale), a.overlayOptions())
	}

	raw, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.Overlay(raw.Image, marksFor(records, 1), a.overlayOptions())
}

func (a bubbleOverlayArgs) overlayOptions() imaging.OverlayOptions {
	opts := imaging.OverlayOptions{
		Color:          a.Color,
		HighlightColor: a.HighlightColor,
		Thickness:      a.Thickness,
		Boxes:          a.Boxes,
		ShowLabels:     !a.HideLabels,
	}
	if a.HighlightRank > 0 {
		opts.Highlight = strconv.Itoa(a.HighlightRank)
	}
	return opts
}

// marksFor turns ranked records into overlay marks labelled by rank, with
// coordinates multiplied by factor.
func marksFor(records []metrics.BubbleRecord, factor float64) []imaging.Mark {
	marks := make([]imaging.Mark, len(records))
	for i, r := range records {
		marks[i] = imaging.Mark{
			X:      r.X * factor,
			Y:      r.Y * factor,
			Radius: r.Radius * factor,
			Label:  strconv.Itoa(r.Rank),
		}
	}
	return marks
}

// histogramBins is the bin count used when a call does not name one.
func (s *Server) histogramBins() int {
	if s.cfg.Metrics.HistogramBins > 0 {
		return s.cfg.Metrics.HistogramBins
	}
	return metrics.DefaultHistogramBins
}

type bubbleSizeHistogramArgs struct {
	Path string `json:"path"`
	Bins int    `json:"bins"`
	detectionArgs
}

type bubbleSizeHistogramResult struct {
	*metrics.Summary
	Message     string `json:"message,omitempty"`
	ImageBase64 string `json:"image_base64,omitempty"`
	MimeType    string `json:"mime_type,omitempty"`
}

func (s *Server) handleBubbleSizeHistogram(args json.RawMessage) (interface{}, error) {
	var a bubbleSizeHistogramArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Bins == 0 {
		a.Bins = s.histogramBins()
	}

	_, records, err := s.analyze(a.Path, a.detectionArgs)
	if err != nil {
		return nil, err
	}

	summary, err := metrics.Summarize(records, a.Bins)
	if err != nil {
		return nil, err
	}
	out := &bubbleSizeHistogramResult{Summary: summary}
	if len(records) == 0 {
		out.Message = noBubblesMessage
		return out, nil
	}

	png, err := metrics.HistogramPNG(records, a.Bins)
	if err != nil {
		return nil, err
	}
	out.ImageBase64 = base64.StdEncoding.EncodeToString(png)
	out.MimeType = "image/png"
	return out, nil
}

type bubbleEdgePreviewArgs struct {
	Path      string  `json:"path"`
	Threshold float64 `json:"threshold"`
	detectionArgs
}

func (s *Server) handleBubbleEdgePreview(args json.RawMessage) (interface{}, error) {
	var a bubbleEdgePreviewArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}

	p := a.apply(s.cfg.DetectionParameters())
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if a.Threshold == 0 {
		a.Threshold = p.Param1
	}
	if a.Threshold < 0 {
		return nil, fmt.Errorf("threshold must be positive, got %v: %w", a.Threshold, errkind.ErrInvalidConfiguration)
	}

	raw, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	frame, err := imaging.Preprocess(raw, p.SpeedMode)
	if err != nil {
		return nil, err
	}
	if p.Enhance {
		frame = imaging.Enhance(frame)
	}
	return imaging.EdgeDetect(frame, a.Threshold)
}

// === Mass Transfer Handlers ===

// columnArgs carries tabular data either as named columns or as CSV text.
type columnArgs struct {
	Columns masstransfer.Columns `json:"columns"`
	CSV     string               `json:"csv"`
}

func (a columnArgs) hasData() bool {
	return len(a.Columns) > 0 || strings.TrimSpace(a.CSV) != ""
}

func (a columnArgs) load() (masstransfer.Columns, error) {
	if len(a.Columns) > 0 {
		return a.Columns, nil
	}
	if strings.TrimSpace(a.CSV) == "" {
		return nil, fmt.Errorf("either columns or csv is required: %w", errkind.ErrInvalidInput)
	}
	return masstransfer.ReadColumnsCSV(strings.NewReader(a.CSV))
}

type massTransferDeriveResult struct {
	Rows    int                  `json:"rows"`
	Derived []string             `json:"derived"`
	Columns masstransfer.Columns `json:"columns"`
}

func (s *Server) handleMassTransferDerive(args json.RawMessage) (interface{}, error) {
	var a columnArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	cols, err := a.load()
	if err != nil {
		return nil, err
	}

	out, err := masstransfer.DeriveNumbers(cols)
	if err != nil {
		return nil, err
	}

	derived := []string{}
	for _, name := range []string{masstransfer.ColRe, masstransfer.ColSc} {
		if _, ok := out[name]; ok {
			derived = append(derived, name)
		}
	}

	return &massTransferDeriveResult{
		Rows:    out.Len(),
		Derived: derived,
		Columns: out,
	}, nil
}

type massTransferFitArgs struct {
	Observations  []masstransfer.Observation `json:"observations"`
	InitialGuess  []float64                  `json:"initial_guess"`
	MaxIterations *int                       `json:"max_iterations"`
	Tolerance     *float64                   `json:"tolerance"`
	columnArgs
}

type massTransferFitResult struct {
	*masstransfer.FitResult
	Observations int    `json:"observations"`
	Correlation  string `json:"correlation"`
	Warning      string `json:"warning,omitempty"`
}

func (s *Server) handleMassTransferFit(args json.RawMessage) (interface{}, error) {
	var a massTransferFitArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}

	guess := a.InitialGuess
	if len(guess) == 0 {
		guess = s.cfg.Fitting.InitialGuess
	}
	if len(guess) != 3 {
		return nil, fmt.Errorf("initial_guess needs 3 values [a, x1, x2], got %d: %w", len(guess), errkind.ErrInvalidConfiguration)
	}
	maxIterations := s.cfg.Fitting.MaxIterations
	if a.MaxIterations != nil {
		maxIterations = *a.MaxIterations
	}
	tolerance := s.cfg.Fitting.Tolerance
	if a.Tolerance != nil {
		tolerance = *a.Tolerance
	}

	obs := a.Observations
	if len(obs) == 0 {
		var err error
		obs, err = observationsFrom(a.columnArgs)
		if err != nil {
			return nil, err
		}
	}

	fit, err := masstransfer.FitPowerLaw(obs,
		masstransfer.WithInitialGuess(guess[0], guess[1], guess[2]),
		masstransfer.WithMaxIterations(maxIterations),
		masstransfer.WithTolerance(tolerance),
	)
	if err != nil {
		return nil, err
	}

	if s.cfg.Debug() {
		log.Printf("[DEBUG] fit of %d observations: %s after %d iterations", len(obs), fit.Status, fit.Iterations)
	}

	out := &massTransferFitResult{
		FitResult:    fit,
		Observations: len(obs),
		Correlation:  fmt.Sprintf("Sh = %.4g * Re^%.4g * Sc^%.4g", fit.A, fit.X1, fit.X2),
	}
	if err := fit.Err(); err != nil {
		out.Warning = err.Error()
	}
	return out, nil
}

// observationsFrom reads tabular data and derives Re and Sc when they are
// not supplied directly.
func observationsFrom(a columnArgs) ([]masstransfer.Observation, error) {
	if !a.hasData() {
		return nil, fmt.Errorf("observations, columns or csv is required: %w", errkind.ErrInvalidInput)
	}
	cols, err := a.load()
	if err != nil {
		return nil, err
	}
	_, hasRe := cols[masstransfer.ColRe]
	_, hasSc := cols[masstransfer.ColSc]
	if !hasRe || !hasSc {
		if cols, err = masstransfer.DeriveNumbers(cols); err != nil {
			return nil, err
		}
	}
	return masstransfer.ObservationsFromColumns(cols)
}

type massTransferPredictArgs struct {
	Re float64  `json:"re"`
	Sc float64  `json:"sc"`
	A  *float64 `json:"a"`
	X1 *float64 `json:"x1"`
	X2 *float64 `json:"x2"`
}

func (s *Server) handleMassTransferPredict(args json.RawMessage) (interface{}, error) {
	var a massTransferPredictArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if !(a.Re > 0) || !(a.Sc > 0) {
		return nil, fmt.Errorf("re and sc must be positive, got re=%v sc=%v: %w", a.Re, a.Sc, errkind.ErrInvalidConfiguration)
	}
	// An omitted coefficient would otherwise predict Sh = 0.
	if a.A == nil || a.X1 == nil || a.X2 == nil {
		return nil, fmt.Errorf("a, x1 and x2 are required: %w", errkind.ErrInvalidInput)
	}

	return map[string]float64{
		"sh": masstransfer.PredictSherwood(a.Re, a.Sc, *a.A, *a.X1, *a.X2),
	}, nil
}
