package processors

import (
	"github.com/procq/procq/internal/dispatch"
	"github.com/procq/procq/internal/task"
)

// RegisterAll installs the built-in processor for every shipped task
// type into reg.
func RegisterAll(reg *dispatch.Registry) {
	reg.Register(task.TypeContentGeneration, ContentGeneration{})
	reg.Register(task.TypeOCRExtraction, OCRExtraction{})
	reg.Register(task.TypeImageAnalysis, ImageAnalysis{})
	reg.Register(task.TypeVoiceSynthesis, VoiceSynthesis{})
	reg.Register(task.TypeStepDetection, StepDetection{})
}
