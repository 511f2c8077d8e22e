package processors

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/procq/procq/internal/task"
)

// StepDetection validates the screenshot references and returns an
// empty step frame annotated with the session context it was given.
type StepDetection struct{}

type stepRequest struct {
	ScreenshotURL     string         `json:"screenshot_url"`
	PrevScreenshotURL string         `json:"previous_screenshot_url"`
	SessionContext    map[string]any `json:"session_context"`
}

type stepResult struct {
	DetectedSteps      []json.RawMessage `json:"detected_steps"`
	ScreenshotAnalysis map[string]any    `json:"screenshot_analysis"`
	Metadata           map[string]any    `json:"processing_metadata"`
}

// Process implements dispatch.Processor.
func (StepDetection) Process(_ context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var req stepRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, task.NewValidation("step_detection payload: %v", err)
	}
	if req.ScreenshotURL == "" {
		return nil, task.NewValidation("step_detection payload missing screenshot_url")
	}
	if _, err := url.ParseRequestURI(req.ScreenshotURL); err != nil {
		return nil, task.NewValidation("step_detection screenshot_url is not a valid URL: %v", err)
	}
	if req.PrevScreenshotURL != "" {
		if _, err := url.ParseRequestURI(req.PrevScreenshotURL); err != nil {
			return nil, task.NewValidation("step_detection previous_screenshot_url is not a valid URL: %v", err)
		}
	}

	return json.Marshal(stepResult{
		DetectedSteps: []json.RawMessage{},
		ScreenshotAnalysis: map[string]any{
			"screenshot_url": req.ScreenshotURL,
			"has_previous":   req.PrevScreenshotURL != "",
		},
		Metadata: map[string]any{
			"session_context_keys": len(req.SessionContext),
		},
	})
}
