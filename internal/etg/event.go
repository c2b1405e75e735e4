// Package etg applies lifecycle events to the Execution Trace Graph of a
// project document.
//
// Events form a closed set: each kind has its own payload type implementing
// Event, and ParseEvent is the only way to turn a kind string and a JSON
// payload into one. Processor.Apply then runs the state transition for that
// event against a document.
package etg

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Kind names an event in the trace vocabulary.
type Kind string

const (
	KindTaskStart  Kind = "task_start"
	KindStep       Kind = "step"
	KindToolStart  Kind = "tool_start"
	KindToolEnd    Kind = "tool_end"
	KindCheckpoint Kind = "checkpoint"
	KindError      Kind = "error"
	KindTaskEnd    Kind = "task_end"
)

// Kinds returns every supported kind in lifecycle order.
func Kinds() []Kind {
	return []Kind{KindTaskStart, KindStep, KindToolStart, KindToolEnd, KindCheckpoint, KindError, KindTaskEnd}
}

// KindNames returns Kinds as plain strings, for schema enums.
func KindNames() []string {
	kinds := Kinds()
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}

// --- Errors ---

// ErrUnsupportedEventKind is matched by every UnsupportedEventKindError.
var ErrUnsupportedEventKind = errors.New("unsupported event kind")

// ErrInvalidPayload is returned when a payload does not decode into the
// shape its kind expects.
var ErrInvalidPayload = errors.New("invalid event payload")

// UnsupportedEventKindError reports a kind outside the vocabulary.
type UnsupportedEventKindError struct {
	Kind string
}

func (e *UnsupportedEventKindError) Error() string {
	return fmt.Sprintf("unsupported event kind: %q", e.Kind)
}

// Is makes errors.Is(err, ErrUnsupportedEventKind) hold.
func (e *UnsupportedEventKindError) Is(target error) bool {
	return target == ErrUnsupportedEventKind
}

// --- Events ---

// Event is one of the payload types below. The unexported method keeps the
// set closed to this package.
type Event interface {
	Kind() Kind
	isEvent()
}

// TaskStart opens a task.
type TaskStart struct {
	CreatedAt  string   `json:"created_at"`
	UserPrompt string   `json:"user_prompt"`
	Tags       []string `json:"tags"`
}

// StepEvent appends an explicit step. Order 0 means "next available".
type StepEvent struct {
	Order      int    `json:"order"`
	Role       string `json:"role"`
	LLMSummary string `json:"llm_summary"`
}

// ToolStart records a tool invocation under the task's current step.
type ToolStart struct {
	ToolName     string          `json:"tool_name"`
	ParamsJSON   json.RawMessage `json:"params_json"`
	StartedAt    string          `json:"started_at"`
	FilesTouched []string        `json:"files_touched"`
}

// ToolEnd completes a tool invocation. An empty ToolID targets the most
// recently started tool of the task.
type ToolEnd struct {
	ToolID       string   `json:"tool_id"`
	Success      *bool    `json:"success"`
	DurationMS   *float64 `json:"duration_ms"`
	Stdout       *string  `json:"stdout"`
	Stderr       *string  `json:"stderr"`
	FilesTouched []string `json:"files_touched"`
}

// CheckpointEvent records a saved artifact under the task's current step.
type CheckpointEvent struct {
	CheckpointFile *string `json:"checkpoint_file"`
	CreatedAt      string  `json:"created_at"`
}

// ErrorEvent records a failure under the task's current step.
type ErrorEvent struct {
	ErrorType     string `json:"error_type"`
	Message       string `json:"message"`
	RawLogExcerpt string `json:"raw_log_excerpt"`
}

// TaskEnd closes a task. An empty Status means completed.
type TaskEnd struct {
	Status string `json:"status"`
}

func (TaskStart) Kind() Kind       { return KindTaskStart }
func (StepEvent) Kind() Kind       { return KindStep }
func (ToolStart) Kind() Kind       { return KindToolStart }
func (ToolEnd) Kind() Kind         { return KindToolEnd }
func (CheckpointEvent) Kind() Kind { return KindCheckpoint }
func (ErrorEvent) Kind() Kind      { return KindError }
func (TaskEnd) Kind() Kind         { return KindTaskEnd }

func (TaskStart) isEvent()       {}
func (StepEvent) isEvent()       {}
func (ToolStart) isEvent()       {}
func (ToolEnd) isEvent()         {}
func (CheckpointEvent) isEvent() {}
func (ErrorEvent) isEvent()      {}
func (TaskEnd) isEvent()         {}

// --- Decoding ---

// ParseEvent decodes payload into the event type for kind. A nil, empty or
// JSON null payload decodes to the zero event. Unknown fields are ignored.
func ParseEvent(kind string, payload json.RawMessage) (Event, error) {
	var ev Event
	switch Kind(kind) {
	case KindTaskStart:
		var e TaskStart
		if err := decodePayload(payload, &e); err != nil {
			return nil, payloadError(kind, err)
		}
		ev = e
	case KindStep:
		var e StepEvent
		if err := decodePayload(payload, &e); err != nil {
			return nil, payloadError(kind, err)
		}
		ev = e
	case KindToolStart:
		var e ToolStart
		if err := decodePayload(payload, &e); err != nil {
			return nil, payloadError(kind, err)
		}
		ev = e
	case KindToolEnd:
		var e ToolEnd
		if err := decodePayload(payload, &e); err != nil {
			return nil, payloadError(kind, err)
		}
		ev = e
	case KindCheckpoint:
		var e CheckpointEvent
		if err := decodePayload(payload, &e); err != nil {
			return nil, payloadError(kind, err)
		}
		ev = e
	case KindError:
		var e ErrorEvent
		if err := decodePayload(payload, &e); err != nil {
			return nil, payloadError(kind, err)
		}
		ev = e
	case KindTaskEnd:
		var e TaskEnd
		if err := decodePayload(payload, &e); err != nil {
			return nil, payloadError(kind, err)
		}
		ev = e
	default:
		return nil, &UnsupportedEventKindError{Kind: kind}
	}
	return ev, nil
}

// ParsePayloadMap is ParseEvent for payloads that arrive already decoded,
// as MCP tool arguments do.
func ParsePayloadMap(kind string, payload map[string]any) (Event, error) {
	if payload == nil {
		return ParseEvent(kind, nil)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, payloadError(kind, err)
	}
	return ParseEvent(kind, data)
}

func decodePayload(payload json.RawMessage, v any) error {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return json.Unmarshal(trimmed, v)
}

func payloadError(kind string, err error) error {
	return fmt.Errorf("%w for %s: %v", ErrInvalidPayload, kind, err)
}
