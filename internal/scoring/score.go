package scoring

import (
	"math"
	"sort"
	"time"

	"github.com/rawblock/muling-engine/internal/detect"
	"github.com/rawblock/muling-engine/internal/graph"
	"github.com/rawblock/muling-engine/pkg/models"
)

// Composite Suspicion Scorer
//
// Fuses the detector findings into one 0-100 score per account:
//
//   cycle participation   40
//   smurfing pattern      30
//   shell layering        20
//   velocity abnormality  10
//
// Within a family the account's score is the MAXIMUM raw score across its
// findings, so overlapping findings never double-count. Accounts tagged by
// the false-positive classifier are vetoed outright, whatever the
// detectors said about them.

// Pattern families for composite weighting.
const (
	familyCycle    = "cycle"
	familySmurfing = "smurfing"
	familyShell    = "shell"
)

// Extra pattern tag for accounts whose velocity component is extreme.
const patternHighVelocity = "high_velocity"

// Config holds the scorer tunables.
type Config struct {
	WeightCycle      float64
	WeightSmurfing   float64
	WeightShell      float64
	WeightVelocity   float64
	ReportMinScore   int     // accounts below this composite are dropped
	PatternMinRaw    float64 // findings at or below this raw score don't contribute pattern tags
	HighVelocityMin  float64 // velocity component that earns the high_velocity tag
	RingMergeJaccard float64 // member-set overlap that merges two rings
	VizMaxNodes      int     // visualisation graph node budget
}

// DefaultConfig returns the reference weights and thresholds.
func DefaultConfig() Config {
	return Config{
		WeightCycle:      40,
		WeightSmurfing:   30,
		WeightShell:      20,
		WeightVelocity:   10,
		ReportMinScore:   10,
		PatternMinRaw:    0.1,
		HighVelocityMin:  0.7,
		RingMergeJaccard: 0.5,
		VizMaxNodes:      300,
	}
}

// Result is the scorer output: the three report sections that depend on
// detector findings.
type Result struct {
	SuspiciousAccounts []models.SuspiciousAccount
	FraudRings         []models.FraudRing
	GraphData          models.GraphData
}

// Score fuses findings, applies the veto and the report threshold, builds
// the rings and trims the visualisation graph.
func Score(g *graph.Graph, findings []detect.Finding, fpTags map[string][]string, cfg Config) Result {
	sortFindings(findings)

	type accountState struct {
		family   map[string]float64
		patterns []string // insertion-ordered, deduplicated
	}
	states := make(map[string]*accountState)

	state := func(id string) *accountState {
		s, ok := states[id]
		if !ok {
			s = &accountState{family: make(map[string]float64)}
			states[id] = s
		}
		return s
	}

	for _, f := range findings {
		fam := familyOf(f.PatternType)
		for _, id := range f.Accounts {
			s := state(id)
			if f.RawScore > s.family[fam] {
				s.family[fam] = math.Min(f.RawScore, 1.0)
			}
			if f.RawScore > cfg.PatternMinRaw {
				s.patterns = appendUnique(s.patterns, f.PatternType)
			}
		}
	}

	scores := make(map[string]int)
	var suspicious []models.SuspiciousAccount

	for _, id := range g.AccountIDs() {
		s, ok := states[id]
		velocity := velocityScore(g.Account(id))
		if !ok {
			if velocity == 0 {
				continue
			}
			s = state(id)
		}

		raw := s.family[familyCycle]*cfg.WeightCycle +
			s.family[familySmurfing]*cfg.WeightSmurfing +
			s.family[familyShell]*cfg.WeightShell +
			velocity*cfg.WeightVelocity
		final := int(math.Round(math.Min(raw, 100)))

		if velocity > cfg.HighVelocityMin {
			s.patterns = appendUnique(s.patterns, patternHighVelocity)
		}

		// The veto: classifier-tagged accounts never reach the report.
		if len(fpTags[id]) > 0 {
			continue
		}
		if final < cfg.ReportMinScore {
			continue
		}

		scores[id] = final
		suspicious = append(suspicious, models.SuspiciousAccount{
			AccountID:        id,
			SuspicionScore:   final,
			DetectedPatterns: s.patterns,
		})
	}

	rings := assembleRings(findings, scores, cfg)

	ringByAccount := make(map[string]string)
	for _, ring := range rings {
		for _, member := range ring.MemberAccounts {
			ringByAccount[member] = ring.RingID
		}
	}
	for i := range suspicious {
		suspicious[i].RingID = ringByAccount[suspicious[i].AccountID]
	}

	sort.Slice(suspicious, func(i, j int) bool {
		if suspicious[i].SuspicionScore != suspicious[j].SuspicionScore {
			return suspicious[i].SuspicionScore > suspicious[j].SuspicionScore
		}
		return suspicious[i].AccountID < suspicious[j].AccountID
	})

	return Result{
		SuspiciousAccounts: suspicious,
		FraudRings:         rings,
		GraphData:          buildVizGraph(g, suspicious, scores, cfg.VizMaxNodes),
	}
}

// sortFindings imposes the total order the scorer requires so parallel
// detector execution cannot leak goroutine scheduling into the report.
func sortFindings(findings []detect.Finding) {
	sort.Slice(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.PatternType != b.PatternType {
			return a.PatternType < b.PatternType
		}
		if a.RawScore != b.RawScore {
			return a.RawScore > b.RawScore
		}
		return lessTuple(a.Accounts, b.Accounts)
	})
}

func lessTuple(a, b []string) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

func familyOf(pattern string) string {
	switch pattern {
	case detect.PatternFanIn, detect.PatternFanOut:
		return familySmurfing
	case detect.PatternShellChain:
		return familyShell
	default:
		return familyCycle
	}
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

// velocityScore grades the mean gap between consecutive transactions the
// account participates in, either direction.
func velocityScore(acct *graph.Account) float64 {
	events := make([]time.Time, 0, len(acct.SentTx)+len(acct.RecvTx))
	for _, tx := range acct.SentTx {
		events = append(events, tx.Timestamp)
	}
	for _, tx := range acct.RecvTx {
		events = append(events, tx.Timestamp)
	}
	if len(events) < 2 {
		return 0.0
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Before(events[j]) })

	var total time.Duration
	for i := 1; i < len(events); i++ {
		total += events[i].Sub(events[i-1])
	}
	mean := total / time.Duration(len(events)-1)

	switch {
	case mean < time.Minute:
		return 1.0
	case mean < time.Hour:
		return 0.7
	case mean < 24*time.Hour:
		return 0.3
	default:
		return 0.0
	}
}
