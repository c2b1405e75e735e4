// Package project defines the per-project record: a static file graph plus
// the Execution Trace Graph (ETG) of tasks, steps, tools, checkpoints and
// errors recorded while an agent works on the project.
//
// The JSON shape of Document is a compatibility surface. Documents written
// by earlier versions must load and save back without losing fields, so the
// field names below mirror what has always been on disk.
package project

import (
	"encoding/json"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Status values a task moves through.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
)

// DefaultErrorType is recorded when an error event carries no category.
const DefaultErrorType = "runtime_error"

// --- Graph ---

// FileRecord is the metadata kept for one indexed file.
type FileRecord struct {
	Path         string `json:"path"`
	Language     string `json:"language"`
	SizeBytes    int64  `json:"size_bytes"`
	Hash         string `json:"hash"`
	LastModified string `json:"last_modified"`
}

// Graph is the static code/file graph. Symbols and concepts are carried as
// opaque JSON so that enriched documents round-trip untouched.
type Graph struct {
	Files    map[string]FileRecord      `json:"files"`
	Symbols  map[string]json.RawMessage `json:"symbols"`
	Concepts map[string]json.RawMessage `json:"concepts"`
}

// --- ETG ---

// Task is one unit of agent work, opened by a task_start event.
type Task struct {
	ID           string   `json:"id"`
	CreatedAt    string   `json:"created_at"`
	UserPrompt   string   `json:"user_prompt"`
	Status       string   `json:"status"`
	Tags         []string `json:"tags"`
	FilesTouched []string `json:"files_touched"`
}

// Step is an ordered phase within a task.
type Step struct {
	ID           string   `json:"id"`
	TaskID       string   `json:"task_id"`
	Order        int      `json:"order"`
	Role         string   `json:"role"`
	LLMSummary   string   `json:"llm_summary"`
	FilesTouched []string `json:"files_touched"`
	LastErrorID  string   `json:"last_error_id,omitempty"`
}

// Tool is a single tool invocation. The completion fields stay nil until a
// tool_end event resolves to it.
type Tool struct {
	ID           string          `json:"id"`
	TaskID       string          `json:"task_id"`
	StepID       string          `json:"step_id"`
	ToolName     string          `json:"tool_name"`
	ParamsJSON   json.RawMessage `json:"params_json"`
	StartedAt    string          `json:"started_at"`
	FilesTouched []string        `json:"files_touched"`
	Success      *bool           `json:"success"`
	DurationMS   *float64        `json:"duration_ms"`
	Stdout       *string         `json:"stdout"`
	Stderr       *string         `json:"stderr"`
}

// Checkpoint references an artifact saved during a step.
type Checkpoint struct {
	ID             string  `json:"id"`
	TaskID         string  `json:"task_id"`
	StepID         string  `json:"step_id"`
	CheckpointFile *string `json:"checkpoint_file"`
	CreatedAt      string  `json:"created_at"`
}

// ErrorRecord is a failure observed during a step.
type ErrorRecord struct {
	ID            string `json:"id"`
	TaskID        string `json:"task_id"`
	StepID        string `json:"step_id"`
	ErrorType     string `json:"error_type"`
	Message       string `json:"message"`
	RawLogExcerpt string `json:"raw_log_excerpt"`
}

// ETG holds every trace record keyed by id. The collections preserve
// insertion order, both in memory and on disk: "latest tool of a task" and
// the tie order of similarity results depend on it.
type ETG struct {
	Tasks       *orderedmap.OrderedMap[string, *Task]        `json:"tasks"`
	Steps       *orderedmap.OrderedMap[string, *Step]        `json:"steps"`
	Tools       *orderedmap.OrderedMap[string, *Tool]        `json:"tools"`
	Checkpoints *orderedmap.OrderedMap[string, *Checkpoint]  `json:"checkpoints"`
	Errors      *orderedmap.OrderedMap[string, *ErrorRecord] `json:"errors"`
	// TaskSteps lists step ids per task in the order they were appended.
	// It is the only source for "latest step of a task".
	TaskSteps map[string][]string `json:"task_steps"`
}

// --- Document ---

// Document is the root aggregate persisted once per project root.
type Document struct {
	ProjectRoot string `json:"project_root"`
	Graph       Graph  `json:"graph"`
	ETG         ETG    `json:"etg"`
}

// NewDocument returns an empty document for root.
func NewDocument(root string) *Document {
	doc := &Document{ProjectRoot: root}
	doc.Normalize()
	return doc
}

// Normalize fills in any sub-graph missing from a loaded document so that
// callers never have to nil-check collections.
func (d *Document) Normalize() {
	if d.Graph.Files == nil {
		d.Graph.Files = make(map[string]FileRecord)
	}
	if d.Graph.Symbols == nil {
		d.Graph.Symbols = make(map[string]json.RawMessage)
	}
	if d.Graph.Concepts == nil {
		d.Graph.Concepts = make(map[string]json.RawMessage)
	}
	if d.ETG.Tasks == nil {
		d.ETG.Tasks = orderedmap.New[string, *Task]()
	}
	if d.ETG.Steps == nil {
		d.ETG.Steps = orderedmap.New[string, *Step]()
	}
	if d.ETG.Tools == nil {
		d.ETG.Tools = orderedmap.New[string, *Tool]()
	}
	if d.ETG.Checkpoints == nil {
		d.ETG.Checkpoints = orderedmap.New[string, *Checkpoint]()
	}
	if d.ETG.Errors == nil {
		d.ETG.Errors = orderedmap.New[string, *ErrorRecord]()
	}
	if d.ETG.TaskSteps == nil {
		d.ETG.TaskSteps = make(map[string][]string)
	}
}

// Clone returns a deep copy made through the JSON encoding, so that a
// failed mutation can be discarded without touching the original.
func (d *Document) Clone() (*Document, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Decode parses a persisted document and normalizes it.
func Decode(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	doc.Normalize()
	return &doc, nil
}

// Encode renders the document in its on-disk form.
func (d *Document) Encode() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// --- Accessors ---

// Task returns the task with id, if present.
func (d *Document) Task(id string) (*Task, bool) {
	t, ok := d.ETG.Tasks.Get(id)
	return t, ok && t != nil
}

// Step returns the step with id, if present.
func (d *Document) Step(id string) (*Step, bool) {
	s, ok := d.ETG.Steps.Get(id)
	return s, ok && s != nil
}

// Tool returns the tool invocation with id, if present.
func (d *Document) Tool(id string) (*Tool, bool) {
	t, ok := d.ETG.Tools.Get(id)
	return t, ok && t != nil
}

// LatestStepID returns the most recently appended step of a task.
func (d *Document) LatestStepID(taskID string) (string, bool) {
	ids := d.ETG.TaskSteps[taskID]
	if len(ids) == 0 {
		return "", false
	}
	return ids[len(ids)-1], true
}

// LatestToolID returns the most recently created tool belonging to taskID.
func (d *Document) LatestToolID(taskID string) (string, bool) {
	for pair := d.ETG.Tools.Newest(); pair != nil; pair = pair.Prev() {
		if pair.Value != nil && pair.Value.TaskID == taskID {
			return pair.Key, true
		}
	}
	return "", false
}

// Steps returns all steps in insertion order.
func (d *Document) Steps() []*Step {
	out := make([]*Step, 0, d.ETG.Steps.Len())
	for pair := d.ETG.Steps.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value != nil {
			out = append(out, pair.Value)
		}
	}
	return out
}

// ErrorsForStep returns every error recorded against stepID, oldest first.
func (d *Document) ErrorsForStep(stepID string) []ErrorRecord {
	out := []ErrorRecord{}
	for pair := d.ETG.Errors.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value != nil && pair.Value.StepID == stepID {
			out = append(out, *pair.Value)
		}
	}
	return out
}
