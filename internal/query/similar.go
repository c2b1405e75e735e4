// Package query answers read-only questions about a project document:
// which past steps resemble a free-text query, and what is known about a
// set of files.
package query

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/HendryAvila/etgraph/internal/project"
)

// DefaultLimit caps similarity results when the caller gives no limit.
const DefaultLimit = 5

// NoResults is the summary rendered for an empty result list.
const NoResults = "No similar attempts found."

// ErrEmptyQuery is returned for a blank query string. Every step would
// match it.
var ErrEmptyQuery = errors.New("query must not be empty")

// Candidate is one step scored against a query.
type Candidate struct {
	StepID     string                `json:"step_id"`
	TaskID     string                `json:"task_id"`
	Score      int                   `json:"score"`
	UserPrompt string                `json:"user_prompt"`
	LLMSummary string                `json:"llm_summary"`
	Files      []string              `json:"files"`
	Errors     []project.ErrorRecord `json:"errors"`
}

// Similar scores every step of doc against text and returns the best
// matches, highest score first. Steps with equal scores keep the order in
// which they were recorded. When filters is non-empty, only steps that
// touched at least one of those files are considered; both sides are
// normalized against root before comparing. limit <= 0 means DefaultLimit.
func Similar(doc *project.Document, root, text string, filters []string, limit int) ([]Candidate, error) {
	q := strings.ToLower(text)
	if strings.TrimSpace(q) == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	wanted := toSet(project.NormalizePaths(root, filters))

	candidates := []Candidate{}
	for _, step := range doc.Steps() {
		if len(wanted) > 0 && !touchesAny(root, step.FilesTouched, wanted) {
			continue
		}
		prompt := ""
		if task, ok := doc.Task(step.TaskID); ok {
			prompt = task.UserPrompt
		}
		files := sortedFiles(step.FilesTouched)

		score := Score(q, prompt, step.LLMSummary, files)
		if score == 0 {
			continue
		}
		candidates = append(candidates, Candidate{
			StepID:     step.ID,
			TaskID:     step.TaskID,
			Score:      score,
			UserPrompt: prompt,
			LLMSummary: step.LLMSummary,
			Files:      files,
			Errors:     doc.ErrorsForStep(step.ID),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// Score counts non-overlapping occurrences of the lower-cased query q in the
// step's search text (prompt, summary and file paths, case-folded), plus one
// for every file path containing q.
func Score(q, prompt, summary string, files []string) int {
	search := strings.ToLower(strings.Join([]string{prompt, summary, strings.Join(files, " ")}, "\n"))
	score := strings.Count(search, q)
	for _, f := range files {
		if strings.Contains(strings.ToLower(f), q) {
			score++
		}
	}
	// Any substring hit ranks at least 1, whatever the counting above did.
	if score == 0 && strings.Contains(search, q) {
		score = 1
	}
	return score
}

// SummaryMarkdown renders results as a ranked markdown list.
func SummaryMarkdown(results []Candidate) string {
	if len(results) == 0 {
		return NoResults
	}
	lines := make([]string, len(results))
	for i, r := range results {
		lines[i] = fmt.Sprintf("- Step %d (task %s): score=%d files=%s", i+1, r.TaskID, r.Score, strings.Join(r.Files, ", "))
	}
	return strings.Join(lines, "\n")
}

// --- Helpers ---

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, s := range items {
		set[s] = true
	}
	return set
}

// touchesAny reports whether any of files, normalized against root, is in
// wanted.
func touchesAny(root string, files []string, wanted map[string]bool) bool {
	for _, f := range files {
		if wanted[project.NormalizePath(root, f)] {
			return true
		}
	}
	return false
}

func sortedFiles(files []string) []string {
	out := append([]string{}, files...)
	sort.Strings(out)
	return out
}
