package domain

import "time"

// Phase is the kind of a progress event.
type Phase string

// Progress phases.
const (
	PhaseStart     Phase = "start"
	PhaseEnd       Phase = "end"
	PhaseInfo      Phase = "info"
	PhaseWarning   Phase = "warning"
	PhaseError     Phase = "error"
	PhaseCancelled Phase = "cancelled"
)

// Build steps in execution order.
const (
	StageCheckIndex = "check_index"
	StageScan       = "scan"
	StageRead       = "read"
	StageManifest   = "manifest"
	StageChunk      = "chunk"
	StageEmbed      = "embed"
)

// BuildStages lists the six build steps in order.
var BuildStages = []string{StageCheckIndex, StageScan, StageRead, StageManifest, StageChunk, StageEmbed}

// StepIndex returns the 1-based step number of a build stage, 0 if unknown.
func StepIndex(stage string) int {
	for i, s := range BuildStages {
		if s == stage {
			return i + 1
		}
	}
	return 0
}

// ProgressEvent is emitted by long-running components.
type ProgressEvent struct {
	Time      time.Time
	Component string
	Corpus    string
	Stage     string
	Step      int
	Phase     Phase
	Message   string
	Extra     map[string]any
}

// Int returns an integer extra value, or 0.
func (e ProgressEvent) Int(key string) int {
	if v, ok := e.Extra[key].(int); ok {
		return v
	}
	return 0
}
