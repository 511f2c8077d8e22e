package processors

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/procq/procq/internal/task"
)

// OCRExtraction validates the image reference and returns an empty
// extraction frame for downstream consumers to fill or replace.
type OCRExtraction struct{}

type ocrRequest struct {
	ImageURL  string   `json:"image_url"`
	Languages []string `json:"languages"`
}

type ocrResult struct {
	ExtractedText    string            `json:"extracted_text"`
	TextRegions      []json.RawMessage `json:"text_regions"`
	LanguageDetected string            `json:"language_detected"`
	Confidence       float64           `json:"confidence"`
}

// Process implements dispatch.Processor.
func (OCRExtraction) Process(_ context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var req ocrRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, task.NewValidation("ocr_extraction payload: %v", err)
	}
	if req.ImageURL == "" {
		return nil, task.NewValidation("ocr_extraction payload missing image_url")
	}
	if _, err := url.ParseRequestURI(req.ImageURL); err != nil {
		return nil, task.NewValidation("ocr_extraction image_url is not a valid URL: %v", err)
	}

	lang := "en"
	if len(req.Languages) > 0 {
		lang = req.Languages[0]
	}
	return json.Marshal(ocrResult{
		ExtractedText:    "",
		TextRegions:      []json.RawMessage{},
		LanguageDetected: lang,
		Confidence:       0,
	})
}
