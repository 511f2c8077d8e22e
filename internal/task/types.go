package task

import (
	"encoding/json"
	"fmt"
)

// Type identifies a processing capability. The set is closed: adding a
// capability means adding a constant here and a registration entry in
// the dispatch table, nothing else.
type Type string

const (
	TypeContentGeneration Type = "content_generation"
	TypeOCRExtraction     Type = "ocr_extraction"
	TypeImageAnalysis     Type = "image_analysis"
	TypeVoiceSynthesis    Type = "voice_synthesis"
	TypeStepDetection     Type = "step_detection"
)

// Types lists every known task type in a stable order.
func Types() []Type {
	return []Type{
		TypeContentGeneration,
		TypeOCRExtraction,
		TypeImageAnalysis,
		TypeVoiceSynthesis,
		TypeStepDetection,
	}
}

// ParseType validates a wire-level type string.
func ParseType(s string) (Type, error) {
	t := Type(s)
	for _, known := range Types() {
		if t == known {
			return t, nil
		}
	}
	return "", NewValidation("unknown task type %q", s)
}

// Priority bounds accepted at submission.
const (
	MinPriority = 1
	MaxPriority = 10
)

// Task is one unit of asynchronous work. Immutable once created.
type Task struct {
	ID          string          `json:"task_id"`
	Type        Type            `json:"task_type"`
	Payload     json.RawMessage `json:"payload"`
	Priority    int             `json:"priority"`
	SubmittedMs int64           `json:"submitted_ms"`
}

// Validate checks the submission-time invariants.
func (t Task) Validate() error {
	if t.ID == "" {
		return NewValidation("task id required")
	}
	if _, err := ParseType(string(t.Type)); err != nil {
		return err
	}
	if t.Priority < MinPriority || t.Priority > MaxPriority {
		return NewValidation("priority %d out of range [%d,%d]", t.Priority, MinPriority, MaxPriority)
	}
	if len(t.Payload) == 0 || !json.Valid(t.Payload) {
		return NewValidation("payload must be valid JSON")
	}
	return nil
}

// Status is the lifecycle state of a submitted task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether a status can never change again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// rank orders statuses along the only legal path:
// pending -> processing -> {completed|failed}.
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusProcessing:
		return 1
	case StatusCompleted, StatusFailed:
		return 2
	default:
		return -1
	}
}

// CanTransition reports whether moving from s to next is monotonic.
// Terminal states accept no further transitions.
func (s Status) CanTransition(next Status) bool {
	if s.Terminal() {
		return false
	}
	return next.rank() > s.rank()
}

// StatusRecord tracks one task's lifecycle and outcome. Exactly one
// record exists per task; it is purged after the TTL window measured
// from the last write.
type StatusRecord struct {
	TaskID         string          `json:"task_id"`
	Status         Status          `json:"status"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          string          `json:"error,omitempty"`
	ProcessingSecs float64         `json:"processing_time,omitempty"`
	CreatedMs      int64           `json:"created_ms"`
	CompletedMs    int64           `json:"completed_ms,omitempty"`
	ExpiresMs      int64           `json:"expires_ms"`
}

func (r StatusRecord) String() string {
	return fmt.Sprintf("task %s: %s", r.TaskID, r.Status)
}
