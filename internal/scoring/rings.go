package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/rawblock/muling-engine/internal/detect"
	"github.com/rawblock/muling-engine/pkg/models"
)

// Ring Assembler
//
// Cycle and shell-chain findings describe account groups acting together,
// so each becomes a candidate fraud ring. Candidates whose member sets
// overlap by more than the Jaccard threshold collapse into one ring that
// keeps the higher risk score and that ring's pattern type. Smurfing
// findings never form rings; they only contribute score and pattern tags.
//
// After merging, membership is reconciled against the suspicious-account
// set: vetoed or below-threshold accounts are pruned, an account in
// several rings stays only in its highest-risk one, and rings left with
// fewer than two members are dropped. That keeps the report internally
// consistent — every listed member is a suspicious account carrying the
// same ring id.

type ringCandidate struct {
	ord     int // first-emission order, drives ring id assignment
	members []string
	pattern string
	risk    int
}

// assembleRings builds, merges and reconciles rings. The findings slice
// must already be in the scorer's deterministic order.
func assembleRings(findings []detect.Finding, scores map[string]int, cfg Config) []models.FraudRing {
	var candidates []*ringCandidate
	for _, f := range findings {
		if f.PatternType != detect.PatternCycle && f.PatternType != detect.PatternShellChain {
			continue
		}
		candidates = append(candidates, &ringCandidate{
			ord:     len(candidates),
			members: dedupe(f.Accounts),
			pattern: f.PatternType,
			risk:    int(math.Round(f.RawScore * 100)),
		})
	}

	merged := mergeCandidates(candidates, cfg.RingMergeJaccard)

	// Reconcile membership with the suspicious set.
	assigned := make(map[string]*ringCandidate)
	for _, ring := range merged {
		kept := ring.members[:0]
		for _, member := range ring.members {
			if _, suspicious := scores[member]; !suspicious {
				continue
			}
			kept = append(kept, member)
		}
		ring.members = kept
	}
	for _, ring := range merged {
		for _, member := range ring.members {
			current, ok := assigned[member]
			if !ok || ring.risk > current.risk {
				assigned[member] = ring
			}
		}
	}

	var out []models.FraudRing
	for _, ring := range merged {
		var members []string
		for _, member := range ring.members {
			if assigned[member] == ring {
				members = append(members, member)
			}
		}
		if len(members) < 2 {
			continue
		}
		sort.Strings(members)
		out = append(out, models.FraudRing{
			RingID:         fmt.Sprintf("RING-%04d", len(out)+1),
			MemberAccounts: members,
			PatternType:    ring.pattern,
			RiskScore:      ring.risk,
		})
	}
	return out
}

// mergeCandidates collapses overlapping candidates, cascading merges until
// no pair exceeds the threshold. The survivor keeps the earliest emission
// position and the attributes of its higher-risk constituent.
func mergeCandidates(candidates []*ringCandidate, jaccardMin float64) []*ringCandidate {
	var merged []*ringCandidate

	for _, cand := range candidates {
		current := cand
		for {
			idx := -1
			for i, existing := range merged {
				if jaccard(existing.members, current.members) > jaccardMin {
					idx = i
					break
				}
			}
			if idx < 0 {
				break
			}
			existing := merged[idx]
			merged = append(merged[:idx], merged[idx+1:]...)
			current = union(existing, current)
		}
		merged = append(merged, current)
	}

	sort.Slice(merged, func(i, j int) bool { return merged[i].ord < merged[j].ord })
	return merged
}

func union(a, b *ringCandidate) *ringCandidate {
	if b.ord < a.ord {
		a, b = b, a
	}
	members := append([]string(nil), a.members...)
	seen := make(map[string]bool, len(members))
	for _, m := range members {
		seen[m] = true
	}
	for _, m := range b.members {
		if !seen[m] {
			members = append(members, m)
		}
	}

	out := &ringCandidate{ord: a.ord, members: members, pattern: a.pattern, risk: a.risk}
	if b.risk > a.risk {
		out.pattern = b.pattern
		out.risk = b.risk
	}
	return out
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	seen := make(map[string]bool, len(a))
	for _, m := range a {
		seen[m] = true
	}
	intersection := 0
	for _, m := range b {
		if seen[m] {
			intersection++
		}
	}
	unionSize := len(seen) + len(b) - intersection
	return float64(intersection) / float64(unionSize)
}

func dedupe(list []string) []string {
	seen := make(map[string]bool, len(list))
	out := make([]string, 0, len(list))
	for _, v := range list {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
