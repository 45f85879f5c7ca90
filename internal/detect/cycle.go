package detect

import (
	"context"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rawblock/muling-engine/internal/graph"
)

// Cycle Detector
//
// Enumerates simple directed cycles of length 3-5 — the canonical
// round-tripping signature where funds leave an account and return to it
// through a short chain of mules.
//
// Search: Johnson-style rooted DFS with an explicit stack. Each candidate
// root only explores nodes with a larger id, so every simple cycle is
// produced exactly once, rooted at its smallest member. Roots are visited
// in ascending id order and successors in ascending target order, which
// makes the enumeration order total: smallest-root first, then
// lexicographic by node tuple. The length bound prunes inside the search,
// not as a post-filter.

// CycleConfig bounds the cycle search.
type CycleConfig struct {
	MinLength int // shortest suspicious cycle (direct reciprocals excluded)
	MaxLength int // length bound enforced during the DFS
	MaxCycles int // global enumeration cap
}

// DefaultCycleConfig returns the reference bounds.
func DefaultCycleConfig() CycleConfig {
	return CycleConfig{MinLength: 3, MaxLength: 5, MaxCycles: 500}
}

// DetectCycles enumerates bounded simple cycles and scores each one.
// The boolean reports whether the global cap was hit. The context is
// checked per root so an abandoned request stops at the next boundary.
func DetectCycles(ctx context.Context, g *graph.Graph, cfg CycleConfig) ([]Finding, bool) {
	var findings []Finding

	type frame struct {
		node string
		next int // index of the next out-edge to try
	}

	for _, root := range g.AccountIDs() {
		if ctx.Err() != nil {
			return findings, false
		}
		if len(findings) >= cfg.MaxCycles {
			return findings, true
		}

		path := []string{root}
		onPath := map[string]bool{root: true}
		stack := []frame{{node: root}}

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			outs := g.OutEdges(top.node)

			if top.next >= len(outs) {
				stack = stack[:len(stack)-1]
				onPath[top.node] = false
				path = path[:len(path)-1]
				continue
			}

			target := outs[top.next].Target
			top.next++

			if target == root && len(path) >= cfg.MinLength {
				if f, ok := scoreCycle(g, path, cfg); ok {
					findings = append(findings, f)
					if len(findings) >= cfg.MaxCycles {
						return findings, true
					}
				}
				continue
			}

			// Only larger ids keep the rooting canonical; the length
			// bound prunes before the push.
			if target > root && !onPath[target] && len(path) < cfg.MaxLength {
				path = append(path, target)
				onPath[target] = true
				stack = append(stack, frame{node: target})
			}
		}
	}

	return findings, false
}

// scoreCycle computes the finding for one enumerated cycle. Cycles touching
// a zero-total edge are discarded.
func scoreCycle(g *graph.Graph, cycle []string, cfg CycleConfig) (Finding, bool) {
	k := len(cycle)

	total := decimal.Zero
	edges := make([]*graph.Edge, k)
	for i := 0; i < k; i++ {
		edge := g.EdgeBetween(cycle[i], cycle[(i+1)%k])
		if edge == nil || !edge.TotalAmount.IsPositive() {
			return Finding{}, false
		}
		edges[i] = edge
		total = total.Add(edge.TotalAmount)
	}

	// Span: anchor on the first edge's first transfer, take each edge's
	// closest timestamp to that anchor, and measure the spread.
	anchor := edges[0].Timestamps[0]
	minTs, maxTs := anchor, anchor
	for _, edge := range edges[1:] {
		ts := closestTimestamp(edge.Timestamps, anchor)
		if ts.Before(minTs) {
			minTs = ts
		}
		if ts.After(maxTs) {
			maxTs = ts
		}
	}
	span := maxTs.Sub(minTs)

	lengthFactor := float64(6-k) / 3.0
	amountFactor := math.Min(total.InexactFloat64()/50_000, 1.0)
	compactness := 1.0 / (1.0 + spanHours(span)/24.0)

	return Finding{
		PatternType: PatternCycle,
		Accounts:    append([]string(nil), cycle...),
		Amount:      total,
		Span:        span,
		RawScore:    clip(0.4*lengthFactor + 0.3*amountFactor + 0.3*compactness),
	}, true
}

// closestTimestamp returns the entry of a sorted timestamp list nearest to
// the anchor.
func closestTimestamp(ts []time.Time, anchor time.Time) time.Time {
	best := ts[0]
	bestDiff := absDuration(best.Sub(anchor))
	for _, t := range ts[1:] {
		if d := absDuration(t.Sub(anchor)); d < bestDiff {
			best, bestDiff = t, d
		}
	}
	return best
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
