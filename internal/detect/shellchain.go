package detect

import (
	"context"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rawblock/muling-engine/internal/graph"
)

// Shell-Chain Detector
//
// Layering runs funds through throwaway pass-through accounts: each hop is
// an account that exists only to receive and forward. The structural
// signature is a directed simple path of 3+ hops whose interior nodes have
// almost no other connectivity (total degree <= 3). Origin and terminal are
// exempt — real source and destination accounts are usually well connected.
//
// Search: bounded BFS from every origin, extending only through nodes that
// can still serve as low-degree intermediates. Origins ascend in id order
// and successors in target order, so chains surface in BFS order with
// lexicographic tie-break on the path tuple.

// ShellChainConfig bounds the chain search.
type ShellChainConfig struct {
	MinHops               int // shortest qualifying path, in edges
	MaxDepth              int // BFS depth bound, in edges
	IntermediateDegreeMax int // total-degree ceiling for interior nodes
	MaxChains             int // global enumeration cap
}

// DefaultShellChainConfig returns the reference bounds.
func DefaultShellChainConfig() ShellChainConfig {
	return ShellChainConfig{MinHops: 3, MaxDepth: 6, IntermediateDegreeMax: 3, MaxChains: 200}
}

// DetectShellChains enumerates layered chains and scores each one. The
// boolean reports whether the global cap was hit.
func DetectShellChains(ctx context.Context, g *graph.Graph, cfg ShellChainConfig) ([]Finding, bool) {
	var findings []Finding

	for _, origin := range g.AccountIDs() {
		if ctx.Err() != nil {
			return findings, false
		}
		if len(findings) >= cfg.MaxChains {
			return findings, true
		}

		// Every enqueued path keeps the invariant that all of its
		// non-origin nodes satisfy the intermediate degree bound, so a
		// qualifying extension only needs the hop count check: the new
		// terminal is exempt, and the previous terminal was verified
		// before it was enqueued.
		queue := [][]string{{origin}}

		for len(queue) > 0 {
			path := queue[0]
			queue = queue[1:]

			for _, edge := range g.OutEdges(path[len(path)-1]) {
				next := edge.Target
				if contains(path, next) {
					continue
				}

				hops := len(path) // path has len(path)-1 hops; the extension adds one
				if hops >= cfg.MinHops {
					extended := append(append([]string(nil), path...), next)
					findings = append(findings, scoreChain(g, extended))
					if len(findings) >= cfg.MaxChains {
						return findings, true
					}
				}

				if hops < cfg.MaxDepth && g.Account(next).Degree() <= cfg.IntermediateDegreeMax {
					queue = append(queue, append(append([]string(nil), path...), next))
				}
			}
		}
	}

	return findings, false
}

// scoreChain computes the finding for one qualifying path.
func scoreChain(g *graph.Graph, path []string) Finding {
	hops := len(path) - 1

	total := decimal.Zero
	var minTs, maxTs time.Time
	for i := 0; i < hops; i++ {
		edge := g.EdgeBetween(path[i], path[i+1])
		total = total.Add(edge.TotalAmount)
		for _, ts := range edge.Timestamps {
			if minTs.IsZero() || ts.Before(minTs) {
				minTs = ts
			}
			if ts.After(maxTs) {
				maxTs = ts
			}
		}
	}
	span := maxTs.Sub(minTs)

	compactness := 1.0 / (1.0 + spanHours(span)/24.0)
	amountFactor := math.Min(1.0, total.InexactFloat64()/100_000)
	lengthFactor := math.Min(1.0, float64(hops)/6.0)

	return Finding{
		PatternType: PatternShellChain,
		Accounts:    append([]string(nil), path...),
		Amount:      total,
		Span:        span,
		RawScore:    clip(0.4*compactness + 0.3*amountFactor + 0.3*lengthFactor),
	}
}

func contains(path []string, id string) bool {
	for _, p := range path {
		if p == id {
			return true
		}
	}
	return false
}
