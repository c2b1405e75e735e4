package etg

import (
	"fmt"

	"github.com/HendryAvila/etgraph/internal/project"
	"github.com/google/uuid"
)

// Result is the (task, step, tool) triple an event produced or resolved.
// StepID and ToolID are nil when the event does not involve one.
type Result struct {
	TaskID string  `json:"task_id"`
	StepID *string `json:"step_id"`
	ToolID *string `json:"tool_id"`
}

// Processor applies events to a document. It keeps no state of its own.
type Processor struct {
	newID func() string
	now   func() string
}

// NewProcessor returns a Processor generating UUID ids and UTC timestamps.
func NewProcessor() *Processor {
	return &Processor{newID: uuid.NewString, now: project.Now}
}

// Apply runs the transition for ev against doc. An empty taskID is replaced
// with a fresh id. References to unknown tools or tasks are not errors:
// tool_end and task_end become no-ops so that replayed or out-of-order logs
// are tolerated.
func (p *Processor) Apply(doc *project.Document, taskID string, ev Event) (Result, error) {
	if taskID == "" {
		taskID = p.newID()
	}
	res := Result{TaskID: taskID}

	switch e := ev.(type) {
	case TaskStart:
		p.taskStart(doc, taskID, e)
	case StepEvent:
		res.StepID = ptr(p.step(doc, taskID, e))
	case ToolStart:
		stepID, toolID := p.toolStart(doc, taskID, e)
		res.StepID, res.ToolID = ptr(stepID), ptr(toolID)
	case ToolEnd:
		if tool, ok := p.toolEnd(doc, taskID, e); ok {
			res.StepID, res.ToolID = ptr(tool.StepID), ptr(tool.ID)
		}
	case CheckpointEvent:
		res.StepID = ptr(p.checkpoint(doc, taskID, e))
	case ErrorEvent:
		res.StepID = ptr(p.recordError(doc, taskID, e))
	case TaskEnd:
		if task, ok := doc.Task(taskID); ok {
			task.Status = e.Status
			if task.Status == "" {
				task.Status = project.StatusCompleted
			}
		}
	default:
		kind := "<nil>"
		if ev != nil {
			kind = string(ev.Kind())
		}
		return Result{}, &UnsupportedEventKindError{Kind: kind}
	}
	return res, nil
}

// EnsureStep returns the step that tool, checkpoint and error events attach
// to: the task's most recently appended step, or, when the task has none
// yet, a new empty step with order 1. created reports the second case.
func (p *Processor) EnsureStep(doc *project.Document, taskID string) (stepID string, created bool) {
	if id, ok := doc.LatestStepID(taskID); ok {
		return id, false
	}
	step := &project.Step{
		ID:           p.newID(),
		TaskID:       taskID,
		Order:        1,
		FilesTouched: []string{},
	}
	doc.ETG.Steps.Set(step.ID, step)
	doc.ETG.TaskSteps[taskID] = []string{step.ID}
	return step.ID, true
}

// --- Transitions ---

// taskStart (re)creates the task record. Steps already listed for the task
// are kept.
func (p *Processor) taskStart(doc *project.Document, taskID string, e TaskStart) {
	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}
	doc.ETG.Tasks.Set(taskID, &project.Task{
		ID:           taskID,
		CreatedAt:    p.orNow(e.CreatedAt),
		UserPrompt:   e.UserPrompt,
		Status:       project.StatusRunning,
		Tags:         tags,
		FilesTouched: []string{},
	})
	if _, ok := doc.ETG.TaskSteps[taskID]; !ok {
		doc.ETG.TaskSteps[taskID] = []string{}
	}
}

func (p *Processor) step(doc *project.Document, taskID string, e StepEvent) string {
	order := e.Order
	if order == 0 {
		order = len(doc.ETG.TaskSteps[taskID]) + 1
	}
	step := &project.Step{
		ID:           p.newID(),
		TaskID:       taskID,
		Order:        order,
		Role:         e.Role,
		LLMSummary:   e.LLMSummary,
		FilesTouched: []string{},
	}
	doc.ETG.Steps.Set(step.ID, step)
	doc.ETG.TaskSteps[taskID] = append(doc.ETG.TaskSteps[taskID], step.ID)
	return step.ID
}

func (p *Processor) toolStart(doc *project.Document, taskID string, e ToolStart) (stepID, toolID string) {
	stepID, _ = p.EnsureStep(doc, taskID)
	tool := &project.Tool{
		ID:           p.newID(),
		TaskID:       taskID,
		StepID:       stepID,
		ToolName:     e.ToolName,
		ParamsJSON:   e.ParamsJSON,
		StartedAt:    p.orNow(e.StartedAt),
		FilesTouched: project.AppendUnique(nil, e.FilesTouched...),
	}
	doc.ETG.Tools.Set(tool.ID, tool)
	propagate(doc, tool.StepID, tool.TaskID, tool.FilesTouched)
	return stepID, tool.ID
}

func (p *Processor) toolEnd(doc *project.Document, taskID string, e ToolEnd) (*project.Tool, bool) {
	toolID := e.ToolID
	if toolID == "" {
		var ok bool
		if toolID, ok = doc.LatestToolID(taskID); !ok {
			return nil, false
		}
	}
	tool, ok := doc.Tool(toolID)
	if !ok {
		return nil, false
	}

	tool.Success = e.Success
	tool.DurationMS = e.DurationMS
	tool.Stdout = e.Stdout
	tool.Stderr = e.Stderr
	tool.FilesTouched = project.AppendUnique(tool.FilesTouched, e.FilesTouched...)
	propagate(doc, tool.StepID, tool.TaskID, e.FilesTouched)
	return tool, true
}

func (p *Processor) checkpoint(doc *project.Document, taskID string, e CheckpointEvent) string {
	stepID, _ := p.EnsureStep(doc, taskID)
	cp := &project.Checkpoint{
		ID:             p.newID(),
		TaskID:         taskID,
		StepID:         stepID,
		CheckpointFile: e.CheckpointFile,
		CreatedAt:      p.orNow(e.CreatedAt),
	}
	doc.ETG.Checkpoints.Set(cp.ID, cp)
	return stepID
}

func (p *Processor) recordError(doc *project.Document, taskID string, e ErrorEvent) string {
	stepID, _ := p.EnsureStep(doc, taskID)
	errorType := e.ErrorType
	if errorType == "" {
		errorType = project.DefaultErrorType
	}
	rec := &project.ErrorRecord{
		ID:            p.newID(),
		TaskID:        taskID,
		StepID:        stepID,
		ErrorType:     errorType,
		Message:       e.Message,
		RawLogExcerpt: e.RawLogExcerpt,
	}
	doc.ETG.Errors.Set(rec.ID, rec)
	if step, ok := doc.Step(stepID); ok {
		step.LastErrorID = rec.ID
	}
	return stepID
}

// --- Helpers ---

// propagate merges files into the owning step and task, in that order.
// Missing owners are skipped: a task may never have been started.
func propagate(doc *project.Document, stepID, taskID string, files []string) {
	if len(files) == 0 {
		return
	}
	if step, ok := doc.Step(stepID); ok {
		step.FilesTouched = project.AppendUnique(step.FilesTouched, files...)
	}
	if task, ok := doc.Task(taskID); ok {
		task.FilesTouched = project.AppendUnique(task.FilesTouched, files...)
	}
}

func (p *Processor) orNow(ts string) string {
	if ts != "" {
		return ts
	}
	return p.now()
}

func ptr(s string) *string { return &s }

// String renders a result for logs.
func (r Result) String() string {
	return fmt.Sprintf("task=%s step=%s tool=%s", r.TaskID, deref(r.StepID), deref(r.ToolID))
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
