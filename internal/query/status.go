package query

import (
	"fmt"
	"strings"

	"github.com/HendryAvila/etgraph/internal/project"
)

// DefaultRecentTasks is how many tasks a Summary lists.
const DefaultRecentTasks = 5

// TaskSummary is one line of the recent-task listing.
type TaskSummary struct {
	TaskID     string `json:"task_id"`
	UserPrompt string `json:"user_prompt"`
	Status     string `json:"status"`
	CreatedAt  string `json:"created_at"`
	Steps      int    `json:"steps"`
	Files      int    `json:"files"`
}

// Summary counts the records held for a project.
type Summary struct {
	ProjectRoot string        `json:"project_root"`
	Files       int           `json:"files"`
	Tasks       int           `json:"tasks"`
	Steps       int           `json:"steps"`
	Tools       int           `json:"tools"`
	Checkpoints int           `json:"checkpoints"`
	Errors      int           `json:"errors"`
	RecentTasks []TaskSummary `json:"recent_tasks"`
}

// Summarize counts doc's records and lists its most recently started
// tasks, newest first. recent <= 0 means DefaultRecentTasks.
func Summarize(doc *project.Document, recent int) Summary {
	if recent <= 0 {
		recent = DefaultRecentTasks
	}
	s := Summary{
		ProjectRoot: doc.ProjectRoot,
		Files:       len(doc.Graph.Files),
		Tasks:       doc.ETG.Tasks.Len(),
		Steps:       doc.ETG.Steps.Len(),
		Tools:       doc.ETG.Tools.Len(),
		Checkpoints: doc.ETG.Checkpoints.Len(),
		Errors:      doc.ETG.Errors.Len(),
		RecentTasks: []TaskSummary{},
	}
	for pair := doc.ETG.Tasks.Newest(); pair != nil && len(s.RecentTasks) < recent; pair = pair.Prev() {
		t := pair.Value
		s.RecentTasks = append(s.RecentTasks, TaskSummary{
			TaskID:     t.ID,
			UserPrompt: t.UserPrompt,
			Status:     t.Status,
			CreatedAt:  t.CreatedAt,
			Steps:      len(doc.ETG.TaskSteps[t.ID]),
			Files:      len(t.FilesTouched),
		})
	}
	return s
}

// Markdown renders the summary for a terminal or an MCP resource.
func (s Summary) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "### %s\n", s.ProjectRoot)
	fmt.Fprintf(&b, "Files indexed: %d\n", s.Files)
	fmt.Fprintf(&b, "Tasks: %d, steps: %d, tools: %d, checkpoints: %d, errors: %d",
		s.Tasks, s.Steps, s.Tools, s.Checkpoints, s.Errors)
	if len(s.RecentTasks) == 0 {
		return b.String()
	}
	b.WriteString("\n\n### Recent tasks")
	for _, t := range s.RecentTasks {
		fmt.Fprintf(&b, "\n- %s [%s] %s (steps=%d, files=%d)", t.TaskID, t.Status, t.UserPrompt, t.Steps, t.Files)
	}
	return b.String()
}
