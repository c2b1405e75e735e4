package query

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/HendryAvila/etgraph/internal/project"
)

// DefaultRadius is echoed when the caller gives no radius.
const DefaultRadius = 1

// ContextStep is a step record annotated with its id, as listed in a
// context pack.
type ContextStep struct {
	project.Step
	StepID string `json:"step_id"`
}

// ContextPack is what is known about a set of files. Files maps every
// requested path to its record, or to null when the file is not indexed.
// Radius is accepted and echoed; no neighbor expansion is done yet.
type ContextPack struct {
	Files    map[string]*project.FileRecord `json:"files"`
	Symbols  map[string]json.RawMessage     `json:"symbols"`
	Concepts map[string]json.RawMessage     `json:"concepts"`
	ETGSteps []ContextStep                  `json:"etg_steps"`
	Radius   int                            `json:"radius"`

	order []string
}

// ContextForFiles gathers file records and every step that touched one of
// paths. Paths are normalized against root. Steps are sorted by order,
// keeping recording order among equal orders.
func ContextForFiles(doc *project.Document, root string, paths []string, radius int) *ContextPack {
	files := project.NormalizePaths(root, paths)
	pack := &ContextPack{
		Files:    make(map[string]*project.FileRecord, len(files)),
		Symbols:  map[string]json.RawMessage{},
		Concepts: map[string]json.RawMessage{},
		ETGSteps: []ContextStep{},
		Radius:   radius,
		order:    files,
	}
	for _, f := range files {
		if rec, ok := doc.Graph.Files[f]; ok {
			pack.Files[f] = &rec
		} else {
			pack.Files[f] = nil
		}
	}

	wanted := toSet(files)
	for _, step := range doc.Steps() {
		if touchesAny(root, step.FilesTouched, wanted) {
			pack.ETGSteps = append(pack.ETGSteps, ContextStep{Step: *step, StepID: step.ID})
		}
	}
	sort.SliceStable(pack.ETGSteps, func(i, j int) bool {
		return pack.ETGSteps[i].Order < pack.ETGSteps[j].Order
	})
	return pack
}

// Display renders the pack as markdown: the requested files, then the
// steps that touched them.
func (p *ContextPack) Display() string {
	var b strings.Builder
	order := p.order
	if order == nil {
		for f := range p.Files {
			order = append(order, f)
		}
		sort.Strings(order)
	}

	b.WriteString("### Graph context\nFiles:")
	for _, f := range order {
		if rec := p.Files[f]; rec != nil {
			fmt.Fprintf(&b, "\n- %s (size=%d, lang=%s)", f, rec.SizeBytes, rec.Language)
		} else {
			fmt.Fprintf(&b, "\n- %s (not indexed)", f)
		}
	}
	if len(p.ETGSteps) > 0 {
		b.WriteString("\n\n### Recent ETG steps")
		for _, s := range p.ETGSteps {
			fmt.Fprintf(&b, "\n- Task %s step %s: %s (files: %s)", s.TaskID, s.StepID, s.LLMSummary, strings.Join(s.FilesTouched, ", "))
		}
	}
	return b.String()
}
