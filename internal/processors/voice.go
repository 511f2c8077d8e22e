package processors

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/procq/procq/internal/task"
)

// wordsPerSecond is the speech rate used for duration estimates.
const wordsPerSecond = 2.5

// VoiceSynthesis validates the request and returns a duration estimate
// derived from the text length. No audio is rendered locally.
type VoiceSynthesis struct{}

type voiceRequest struct {
	Text    string  `json:"text"`
	VoiceID string  `json:"voice_id"`
	Speed   float64 `json:"speed"`
}

type voiceResult struct {
	AudioURL     string         `json:"audio_url"`
	DurationSecs float64        `json:"duration"`
	Metadata     map[string]any `json:"voice_metadata"`
}

// Process implements dispatch.Processor.
func (VoiceSynthesis) Process(_ context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var req voiceRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, task.NewValidation("voice_synthesis payload: %v", err)
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, task.NewValidation("voice_synthesis payload missing text")
	}
	if req.Speed < 0 {
		return nil, task.NewValidation("voice_synthesis speed must be non-negative")
	}

	speed := req.Speed
	if speed == 0 {
		speed = 1
	}
	voice := req.VoiceID
	if voice == "" {
		voice = "default"
	}
	words := len(strings.Fields(req.Text))
	duration := float64(words) / (wordsPerSecond * speed)

	return json.Marshal(voiceResult{
		AudioURL:     "",
		DurationSecs: duration,
		Metadata: map[string]any{
			"voice_id": voice,
			"speed":    speed,
			"words":    words,
		},
	})
}
