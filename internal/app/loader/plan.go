package loader

import (
	"github.com/google/uuid"

	"github.com/heartmarshall/discogs-dumpload/internal/domain"
)

// Step is one scheduled load of a single dump.
type Step struct {
	Type domain.EntityType
	Dump domain.Dump
	// After lists the scheduled types this step must wait for before its
	// commit stage, in canonical order.
	After []domain.EntityType
	// Downstream lists the scheduled types that depend on this one.
	Downstream []domain.EntityType
}

// NeedsCache reports whether any downstream step will consult the ids this
// step loads.
func (s Step) NeedsCache() bool { return len(s.Downstream) > 0 }

// Plan is the ordered list of steps for one run.
type Plan struct {
	RunID uuid.UUID
	Steps []Step
}

// Types returns the planned types in execution order.
func (p Plan) Types() []domain.EntityType {
	out := make([]domain.EntityType, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = s.Type
	}
	return out
}

// NewPlan orders the resolved dumps topologically over the dependency graph
// restricted to the resolved types. Ties go to the canonical type order.
func NewPlan(set domain.ResolvedSet) Plan {
	scheduled := set.Types()

	after := make(map[domain.EntityType][]domain.EntityType, len(scheduled))
	downstream := make(map[domain.EntityType][]domain.EntityType, len(scheduled))
	indegree := make(map[domain.EntityType]int, len(scheduled))
	for _, t := range scheduled {
		for _, d := range scheduled {
			if d == t || !t.DependsOn(d) {
				continue
			}
			after[t] = append(after[t], d)
			downstream[d] = append(downstream[d], t)
			indegree[t]++
		}
	}

	// Kahn's algorithm; scanning scheduled in canonical order each round
	// yields the canonical tie-break.
	steps := make([]Step, 0, len(scheduled))
	placed := make(map[domain.EntityType]bool, len(scheduled))
	for len(steps) < len(scheduled) {
		progressed := false
		for _, t := range scheduled {
			if placed[t] || indegree[t] > 0 {
				continue
			}
			placed[t] = true
			progressed = true
			steps = append(steps, Step{
				Type:       t,
				Dump:       set[t],
				After:      after[t],
				Downstream: downstream[t],
			})
			for _, next := range downstream[t] {
				indegree[next]--
			}
			break
		}
		if !progressed {
			// The dependency table is a DAG; this only guards against edits
			// that break it.
			panic("loader: dependency cycle among scheduled types")
		}
	}

	return Plan{RunID: uuid.New(), Steps: steps}
}
