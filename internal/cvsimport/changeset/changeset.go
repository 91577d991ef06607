// Package changeset groups a timestamp-ordered stream of Changes into
// Changesets using CVS's quiet-period heuristic: commits are not atomic in
// CVS, so the importer infers commit boundaries from author/log identity
// and a gap in activity.
package changeset

import (
	"time"

	"github.com/opencvs/cvsimport/internal/cvsimport/model"
)

// DefaultQuietPeriod is the default gap, in seconds, that must elapse
// before an open changeset is considered closed.
const DefaultQuietPeriod = 60 * time.Second

// Generator consumes Changes in non-decreasing timestamp order and emits
// Changesets as they close.
type Generator struct {
	quietPeriod time.Duration
	open        []*model.Changeset
}

// New returns a Generator with the given quiet period.
func New(quietPeriod time.Duration) *Generator {
	if quietPeriod <= 0 {
		quietPeriod = DefaultQuietPeriod
	}
	return &Generator{quietPeriod: quietPeriod}
}

// Feed applies one Change and returns the changesets that close as a
// result, in the order they were opened.
func (g *Generator) Feed(c *model.Change) []*model.Changeset {
	closed := g.closeByQuietPeriod(c.Timestamp)

	for _, x := range g.open {
		if x.Integrate(c) {
			return closed
		}
	}

	g.open = append(g.open, model.NewChangeset(c))
	return closed
}

// closeByQuietPeriod removes and returns every open changeset whose end
// time is at least quietPeriod behind t.
func (g *Generator) closeByQuietPeriod(t time.Time) []*model.Changeset {
	var closed []*model.Changeset
	var remaining []*model.Changeset
	for _, x := range g.open {
		if t.Sub(x.EndTime) >= g.quietPeriod {
			closed = append(closed, x)
		} else {
			remaining = append(remaining, x)
		}
	}
	g.open = remaining
	return closed
}

// Flush emits every remaining open changeset in arrival order. If limit is
// nonzero, at most limit changesets are emitted and the rest stay open for
// a subsequent Flush.
func (g *Generator) Flush(limit int) []*model.Changeset {
	if limit <= 0 || limit >= len(g.open) {
		out := g.open
		g.open = nil
		return out
	}
	out := g.open[:limit]
	g.open = g.open[limit:]
	return out
}

// Pending reports how many changesets are currently open.
func (g *Generator) Pending() int {
	return len(g.open)
}
