package scoring

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rawblock/muling-engine/internal/detect"
	"github.com/rawblock/muling-engine/internal/graph"
	"github.com/rawblock/muling-engine/pkg/models"
)

var testBase = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

var txSeq int

func record(sender, receiver string, amount float64, at time.Time) models.Transaction {
	txSeq++
	return models.Transaction{
		TransactionID: fmt.Sprintf("tx-%d", txSeq),
		SenderID:      sender,
		ReceiverID:    receiver,
		Amount:        decimal.NewFromFloat(amount),
		Timestamp:     at,
	}
}

func cycleGraph() *graph.Graph {
	return graph.Build([]models.Transaction{
		record("A", "B", 10_000, testBase),
		record("B", "C", 10_000, testBase.Add(time.Hour)),
		record("C", "A", 10_000, testBase.Add(2*time.Hour)),
	})
}

func finding(pattern string, raw float64, accounts ...string) detect.Finding {
	return detect.Finding{
		PatternType: pattern,
		Accounts:    accounts,
		Amount:      decimal.NewFromInt(10_000),
		Span:        time.Hour,
		RawScore:    raw,
	}
}

func accountByID(result Result, id string) *models.SuspiciousAccount {
	for i := range result.SuspiciousAccounts {
		if result.SuspiciousAccounts[i].AccountID == id {
			return &result.SuspiciousAccounts[i]
		}
	}
	return nil
}

func TestScore_FamilyTakesMaxNotSum(t *testing.T) {
	g := cycleGraph()
	findings := []detect.Finding{
		finding(detect.PatternCycle, 0.5, "A", "B", "C"),
		finding(detect.PatternCycle, 0.8, "A", "B", "C"),
	}

	result := Score(g, findings, nil, DefaultConfig())

	a := accountByID(result, "A")
	if a == nil {
		t.Fatal("expected A in suspicious output")
	}
	// cycle 0.8*40 = 32, velocity 0.3*10 = 3 (2h mean gap)
	if a.SuspicionScore != 35 {
		t.Errorf("score = %d, want 35 (max per family, not sum)", a.SuspicionScore)
	}
}

func TestScore_VetoOverridesDetectors(t *testing.T) {
	g := cycleGraph()
	findings := []detect.Finding{finding(detect.PatternCycle, 1.0, "A", "B", "C")}
	fpTags := map[string][]string{"A": {detect.TagSalaryRecipient}}

	result := Score(g, findings, fpTags, DefaultConfig())

	if accountByID(result, "A") != nil {
		t.Fatal("classifier-tagged account must never appear in the report")
	}
	if accountByID(result, "B") == nil || accountByID(result, "C") == nil {
		t.Fatal("untagged cycle members must stay in the report")
	}
}

func TestScore_ReportThreshold(t *testing.T) {
	g := cycleGraph()
	findings := []detect.Finding{finding(detect.PatternCycle, 0.05, "A", "B", "C")}

	result := Score(g, findings, nil, DefaultConfig())

	// cycle 0.05*40 = 2, velocity 3: composite 5 < 10.
	if len(result.SuspiciousAccounts) != 0 {
		t.Fatalf("expected scores under the floor to be dropped, got %v", result.SuspiciousAccounts)
	}
}

func TestScore_PatternTagsRequireSignal(t *testing.T) {
	g := cycleGraph()
	findings := []detect.Finding{
		finding(detect.PatternCycle, 0.9, "A", "B", "C"),
		finding(detect.PatternShellChain, 0.05, "A", "B", "C", "D"),
	}

	result := Score(g, findings, nil, DefaultConfig())

	a := accountByID(result, "A")
	if a == nil {
		t.Fatal("expected A in suspicious output")
	}
	for _, p := range a.DetectedPatterns {
		if p == detect.PatternShellChain {
			t.Error("findings at raw <= 0.1 must not contribute pattern tags")
		}
	}
}

func TestScore_HighVelocityTag(t *testing.T) {
	// Rapid-fire transfers: mean gap well under a minute.
	var txs []models.Transaction
	for i := 0; i < 30; i++ {
		txs = append(txs, record("FAST", fmt.Sprintf("R%02d", i%3), 500, testBase.Add(time.Duration(i)*time.Second)))
	}
	g := graph.Build(txs)

	result := Score(g, nil, nil, DefaultConfig())

	fast := accountByID(result, "FAST")
	if fast == nil {
		t.Fatal("velocity alone reaches the report floor at 1.0 x 10")
	}
	if fast.SuspicionScore != 10 {
		t.Errorf("score = %d, want 10", fast.SuspicionScore)
	}
	found := false
	for _, p := range fast.DetectedPatterns {
		if p == patternHighVelocity {
			found = true
		}
	}
	if !found {
		t.Errorf("expected high_velocity tag, got %v", fast.DetectedPatterns)
	}
}

func TestScore_RingAssemblyAndMerge(t *testing.T) {
	g := graph.Build([]models.Transaction{
		record("A", "B", 30_000, testBase),
		record("B", "C", 30_000, testBase.Add(time.Hour)),
		record("C", "D", 30_000, testBase.Add(2*time.Hour)),
		record("D", "E", 30_000, testBase.Add(3*time.Hour)),
		record("E", "A", 30_000, testBase.Add(4*time.Hour)),
	})
	findings := []detect.Finding{
		finding(detect.PatternShellChain, 0.9, "A", "B", "C", "D", "E"),
		finding(detect.PatternShellChain, 0.7, "A", "B", "C", "D"), // Jaccard 0.8 with the first
		finding(detect.PatternCycle, 0.6, "A", "B", "C", "D", "E"), // Jaccard 1.0
	}

	result := Score(g, findings, nil, DefaultConfig())

	if len(result.FraudRings) != 1 {
		t.Fatalf("expected overlapping findings to merge into 1 ring, got %d", len(result.FraudRings))
	}
	ring := result.FraudRings[0]
	if ring.RingID != "RING-0001" {
		t.Errorf("ring id = %s, want RING-0001", ring.RingID)
	}
	if ring.PatternType != detect.PatternShellChain || ring.RiskScore != 90 {
		t.Errorf("merged ring keeps the higher-risk attributes, got %s/%d", ring.PatternType, ring.RiskScore)
	}
	if len(ring.MemberAccounts) != 5 {
		t.Errorf("merged ring members = %v, want all 5", ring.MemberAccounts)
	}

	for _, member := range ring.MemberAccounts {
		acct := accountByID(result, member)
		if acct == nil {
			t.Fatalf("ring member %s missing from suspicious accounts", member)
		}
		if acct.RingID != ring.RingID {
			t.Errorf("member %s ring_id = %s, want %s", member, acct.RingID, ring.RingID)
		}
	}
}

func TestScore_DisjointRingsKeepSeparateIDs(t *testing.T) {
	g := graph.Build([]models.Transaction{
		record("A", "B", 30_000, testBase),
		record("B", "C", 30_000, testBase.Add(time.Hour)),
		record("C", "A", 30_000, testBase.Add(2*time.Hour)),
		record("X", "Y", 30_000, testBase),
		record("Y", "Z", 30_000, testBase.Add(time.Hour)),
		record("Z", "X", 30_000, testBase.Add(2*time.Hour)),
	})
	findings := []detect.Finding{
		finding(detect.PatternCycle, 0.9, "A", "B", "C"),
		finding(detect.PatternCycle, 0.8, "X", "Y", "Z"),
	}

	result := Score(g, findings, nil, DefaultConfig())

	if len(result.FraudRings) != 2 {
		t.Fatalf("expected 2 disjoint rings, got %d", len(result.FraudRings))
	}
	if result.FraudRings[0].RingID == result.FraudRings[1].RingID {
		t.Error("disjoint rings must get distinct ids")
	}
}

func TestScore_RingMembershipReconciledWithVeto(t *testing.T) {
	g := cycleGraph()
	findings := []detect.Finding{finding(detect.PatternCycle, 0.9, "A", "B", "C")}
	fpTags := map[string][]string{"C": {detect.TagMerchant}}

	result := Score(g, findings, fpTags, DefaultConfig())

	if len(result.FraudRings) != 1 {
		t.Fatalf("expected the ring to survive with 2 members, got %d rings", len(result.FraudRings))
	}
	for _, member := range result.FraudRings[0].MemberAccounts {
		if member == "C" {
			t.Error("vetoed account must be pruned from ring membership")
		}
	}
}

func TestScore_VizGraphBudgetAndFlags(t *testing.T) {
	var txs []models.Transaction
	txs = append(txs,
		record("A", "B", 10_000, testBase),
		record("B", "C", 10_000, testBase.Add(time.Hour)),
		record("C", "A", 10_000, testBase.Add(2*time.Hour)),
	)
	for i := 0; i < 400; i++ {
		txs = append(txs, record(fmt.Sprintf("N%03d", i), fmt.Sprintf("N%03d", (i+1)%400), 100, testBase.Add(time.Duration(i)*time.Hour)))
	}
	g := graph.Build(txs)
	findings := []detect.Finding{finding(detect.PatternCycle, 0.9, "A", "B", "C")}

	result := Score(g, findings, nil, DefaultConfig())

	if len(result.GraphData.Nodes) > 300 {
		t.Fatalf("visualisation graph has %d nodes, budget is 300", len(result.GraphData.Nodes))
	}

	present := make(map[string]models.VizNode)
	for _, node := range result.GraphData.Nodes {
		present[node.ID] = node
	}
	for _, acct := range result.SuspiciousAccounts {
		node, ok := present[acct.AccountID]
		if !ok {
			t.Fatalf("suspicious account %s missing from visualisation", acct.AccountID)
		}
		if !node.IsSuspicious || node.SuspicionScore != acct.SuspicionScore {
			t.Errorf("node %s flags = (%v, %d), want (true, %d)", node.ID, node.IsSuspicious, node.SuspicionScore, acct.SuspicionScore)
		}
	}

	for _, edge := range result.GraphData.Edges {
		if _, ok := present[edge.Source]; !ok {
			t.Errorf("edge %s->%s references trimmed source", edge.Source, edge.Target)
		}
		if _, ok := present[edge.Target]; !ok {
			t.Errorf("edge %s->%s references trimmed target", edge.Source, edge.Target)
		}
	}
}
