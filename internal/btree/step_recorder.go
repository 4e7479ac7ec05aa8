package btree

import (
	"pagetree/internal/page"
)

// StepType represents the type of execution step
type StepType string

const (
	// Navigation & Search Events
	StepTypeNodeVisit StepType = "NODE_VISIT"
	StepTypeLeafFound StepType = "LEAF_FOUND"

	// Insert Logic
	StepTypeInsertEntry      StepType = "INSERT_ENTRY"
	StepTypeAppendValue      StepType = "APPEND_VALUE"
	StepTypeOverflowDetected StepType = "OVERFLOW_DETECTED"
	StepTypeNodeSplit        StepType = "NODE_SPLIT"
	StepTypePromoteKey       StepType = "PROMOTE_KEY"
	StepTypeNewRootCreated   StepType = "NEW_ROOT_CREATED"

	// Operation Lifecycle
	StepTypeOperationComplete StepType = "OPERATION_COMPLETE"
	StepTypeSearchFound       StepType = "SEARCH_FOUND"
	StepTypeSearchNotFound    StepType = "SEARCH_NOT_FOUND"
)

// Step represents a single execution step in an operation
type Step struct {
	StepID   uint64                 `json:"step_id"`
	Type     StepType               `json:"type"`
	Page     page.PageNo            `json:"page,omitempty"`
	Target   page.PageNo            `json:"target,omitempty"`
	Key      any                    `json:"key,omitempty"`
	Depth    int                    `json:"depth"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// StepRecorder interface for recording execution steps
type StepRecorder interface {
	// RecordStep records a single step
	RecordStep(stepType StepType, pageNo page.PageNo, depth int, metadata map[string]interface{})

	// RecordStepWithKey records a step with a key
	RecordStepWithKey(stepType StepType, pageNo page.PageNo, depth int, key any, metadata map[string]interface{})

	// RecordStepWithTarget records a step that links two pages, such as a split
	RecordStepWithTarget(stepType StepType, pageNo, target page.PageNo, depth int, key any, metadata map[string]interface{})

	// GetSteps returns all recorded steps
	GetSteps() []Step

	// Reset clears all recorded steps
	Reset()
}

// NoOpRecorder is a no-op implementation that does nothing (zero overhead)
type NoOpRecorder struct{}

func NewNoOpRecorder() *NoOpRecorder {
	return &NoOpRecorder{}
}

func (r *NoOpRecorder) RecordStep(StepType, page.PageNo, int, map[string]interface{}) {}

func (r *NoOpRecorder) RecordStepWithKey(StepType, page.PageNo, int, any, map[string]interface{}) {}

func (r *NoOpRecorder) RecordStepWithTarget(StepType, page.PageNo, page.PageNo, int, any, map[string]interface{}) {
}

func (r *NoOpRecorder) GetSteps() []Step { return nil }

func (r *NoOpRecorder) Reset() {}

// BufferedRecorder collects steps in memory
type BufferedRecorder struct {
	steps  []Step
	stepID uint64
}

func NewBufferedRecorder() *BufferedRecorder {
	return &BufferedRecorder{
		steps: make([]Step, 0),
	}
}

func (r *BufferedRecorder) add(step Step) {
	r.stepID++
	step.StepID = r.stepID
	if step.Metadata == nil {
		step.Metadata = make(map[string]interface{})
	}
	r.steps = append(r.steps, step)
}

func (r *BufferedRecorder) RecordStep(stepType StepType, pageNo page.PageNo, depth int, metadata map[string]interface{}) {
	r.add(Step{Type: stepType, Page: pageNo, Depth: depth, Metadata: metadata})
}

func (r *BufferedRecorder) RecordStepWithKey(stepType StepType, pageNo page.PageNo, depth int, key any, metadata map[string]interface{}) {
	r.add(Step{Type: stepType, Page: pageNo, Key: key, Depth: depth, Metadata: metadata})
}

func (r *BufferedRecorder) RecordStepWithTarget(stepType StepType, pageNo, target page.PageNo, depth int, key any, metadata map[string]interface{}) {
	r.add(Step{Type: stepType, Page: pageNo, Target: target, Key: key, Depth: depth, Metadata: metadata})
}

func (r *BufferedRecorder) GetSteps() []Step {
	return r.steps
}

// Count returns how many recorded steps have the given type.
func (r *BufferedRecorder) Count(stepType StepType) int {
	n := 0
	for _, s := range r.steps {
		if s.Type == stepType {
			n++
		}
	}
	return n
}

func (r *BufferedRecorder) Reset() {
	r.steps = r.steps[:0]
	r.stepID = 0
}
