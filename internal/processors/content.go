package processors

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/procq/procq/internal/task"
)

// ContentGeneration expands a prompt into placeholder content of the
// requested type.
type ContentGeneration struct{}

type contentRequest struct {
	Prompt      string         `json:"prompt"`
	ContentType string         `json:"content_type"`
	Context     map[string]any `json:"context"`
	MaxLength   int            `json:"max_length"`
}

type contentResult struct {
	GeneratedContent string         `json:"generated_content"`
	ContentType      string         `json:"content_type"`
	Metadata         map[string]any `json:"generation_metadata"`
}

// Process implements dispatch.Processor.
func (ContentGeneration) Process(_ context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var req contentRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, task.NewValidation("content_generation payload: %v", err)
	}
	if req.Prompt == "" {
		return nil, task.NewValidation("content_generation payload missing prompt")
	}
	if req.ContentType == "" {
		return nil, task.NewValidation("content_generation payload missing content_type")
	}

	content := fmt.Sprintf("%s\n\n%s", strings.ToUpper(req.ContentType), req.Prompt)
	if req.MaxLength > 0 && len(content) > req.MaxLength {
		content = content[:req.MaxLength]
	}

	return json.Marshal(contentResult{
		GeneratedContent: content,
		ContentType:      req.ContentType,
		Metadata: map[string]any{
			"prompt_chars": len(req.Prompt),
			"context_keys": len(req.Context),
			"truncated":    req.MaxLength > 0 && len(content) == req.MaxLength,
			"generator":    "local",
		},
	})
}
