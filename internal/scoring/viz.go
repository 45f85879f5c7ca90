package scoring

import (
	"sort"

	"github.com/rawblock/muling-engine/internal/graph"
	"github.com/rawblock/muling-engine/pkg/models"
)

// Visualisation trimming. The front-end renders at most VizMaxNodes nodes:
// every suspicious account, then their direct neighbours, then arbitrary
// remaining accounts to fill the budget. Selection within each tier is
// lexicographic so repeated runs return the identical graph. Edges are kept
// only when both endpoints survived the trim.

func buildVizGraph(g *graph.Graph, suspicious []models.SuspiciousAccount, scores map[string]int, maxNodes int) models.GraphData {
	retained := make(map[string]bool)

	// Tier 1: suspicious accounts, unconditionally.
	suspiciousIDs := make([]string, 0, len(suspicious))
	for _, acct := range suspicious {
		suspiciousIDs = append(suspiciousIDs, acct.AccountID)
	}
	sort.Strings(suspiciousIDs)
	for _, id := range suspiciousIDs {
		retained[id] = true
	}

	// Tier 2: their one-hop neighbourhood, while the budget lasts.
	var neighbours []string
	seen := make(map[string]bool)
	for _, id := range suspiciousIDs {
		for _, edge := range g.OutEdges(id) {
			if !retained[edge.Target] && !seen[edge.Target] {
				seen[edge.Target] = true
				neighbours = append(neighbours, edge.Target)
			}
		}
		for _, edge := range g.InEdges(id) {
			if !retained[edge.Source] && !seen[edge.Source] {
				seen[edge.Source] = true
				neighbours = append(neighbours, edge.Source)
			}
		}
	}
	sort.Strings(neighbours)
	for _, id := range neighbours {
		if len(retained) >= maxNodes {
			break
		}
		retained[id] = true
	}

	// Tier 3: pad with the remaining accounts.
	for _, id := range g.AccountIDs() {
		if len(retained) >= maxNodes {
			break
		}
		retained[id] = true
	}

	ids := make([]string, 0, len(retained))
	for id := range retained {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	nodes := make([]models.VizNode, 0, len(ids))
	for _, id := range ids {
		acct := g.Account(id)
		nodes = append(nodes, models.VizNode{
			ID:             id,
			TotalSent:      acct.TotalSent,
			TotalReceived:  acct.TotalReceived,
			SuspicionScore: scores[id],
			IsSuspicious:   scores[id] > 0,
		})
	}

	edges := make([]models.VizEdge, 0)
	for _, id := range ids {
		for _, edge := range g.OutEdges(id) {
			if !retained[edge.Target] {
				continue
			}
			edges = append(edges, models.VizEdge{
				Source: edge.Source,
				Target: edge.Target,
				Amount: edge.TotalAmount,
				Count:  edge.Count,
			})
		}
	}

	return models.GraphData{Nodes: nodes, Edges: edges}
}
