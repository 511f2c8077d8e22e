package processors

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/procq/procq/internal/task"
)

// knownAnalysisTypes is the accepted analysis_types vocabulary.
var knownAnalysisTypes = map[string]bool{
	"objects":  true,
	"text":     true,
	"faces":    true,
	"labels":   true,
	"ui_state": true,
}

// ImageAnalysis validates the request and emits one empty analysis
// section per requested analysis type.
type ImageAnalysis struct{}

type imageRequest struct {
	ImageURL      string   `json:"image_url"`
	AnalysisTypes []string `json:"analysis_types"`
}

type imageResult struct {
	AnalysisResults map[string]json.RawMessage `json:"analysis_results"`
	DetectedObjects []string                   `json:"detected_objects"`
	ImageMetadata   map[string]any             `json:"image_metadata"`
}

// Process implements dispatch.Processor.
func (ImageAnalysis) Process(_ context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var req imageRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, task.NewValidation("image_analysis payload: %v", err)
	}
	if req.ImageURL == "" {
		return nil, task.NewValidation("image_analysis payload missing image_url")
	}
	if _, err := url.ParseRequestURI(req.ImageURL); err != nil {
		return nil, task.NewValidation("image_analysis image_url is not a valid URL: %v", err)
	}
	if len(req.AnalysisTypes) == 0 {
		return nil, task.NewValidation("image_analysis payload missing analysis_types")
	}
	for _, at := range req.AnalysisTypes {
		if !knownAnalysisTypes[at] {
			return nil, task.NewValidation("image_analysis unknown analysis type %q", at)
		}
	}

	sections := make(map[string]json.RawMessage, len(req.AnalysisTypes))
	for _, at := range req.AnalysisTypes {
		sections[at] = json.RawMessage(`{}`)
	}
	return json.Marshal(imageResult{
		AnalysisResults: sections,
		DetectedObjects: []string{},
		ImageMetadata: map[string]any{
			"source_url": req.ImageURL,
			"analyses":   len(req.AnalysisTypes),
		},
	})
}
