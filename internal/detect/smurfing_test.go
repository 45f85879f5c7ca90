package detect

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rawblock/muling-engine/internal/graph"
	"github.com/rawblock/muling-engine/pkg/models"
)

func fanInBatch(receiver string, senders, hoursApart int) []models.Transaction {
	var txs []models.Transaction
	for i := 0; i < senders; i++ {
		txs = append(txs, record(
			fmt.Sprintf("S%02d", i+1),
			receiver,
			950+float64(i*9),
			testBase.Add(time.Duration(i*hoursApart)*time.Hour),
		))
	}
	return txs
}

func TestDetectSmurfing_FanIn(t *testing.T) {
	// Twelve distinct senders inside 48 hours.
	g := graph.Build(fanInBatch("R", 12, 4))

	findings := DetectSmurfing(context.Background(), g, DefaultSmurfingConfig())
	if len(findings) != 1 {
		t.Fatalf("expected exactly 1 finding, got %d", len(findings))
	}

	f := findings[0]
	if f.PatternType != PatternFanIn {
		t.Errorf("pattern = %s, want %s", f.PatternType, PatternFanIn)
	}
	if len(f.Accounts) != 1 || f.Accounts[0] != "R" {
		t.Errorf("finding must name the receiver, got %v", f.Accounts)
	}
	// 12 distinct: count_factor = (12-10)/20 + 0.5 = 0.6, near-uniform
	// amounts keep CV tiny, so the score sits just above 0.75.
	if f.RawScore < 0.70 || f.RawScore > 0.85 {
		t.Errorf("raw score = %v, want within [0.70, 0.85]", f.RawScore)
	}
}

func TestDetectSmurfing_FanOut(t *testing.T) {
	var txs []models.Transaction
	for i := 0; i < 11; i++ {
		txs = append(txs, record("HUB", fmt.Sprintf("R%02d", i+1), 1_000, testBase.Add(time.Duration(i)*time.Hour)))
	}
	g := graph.Build(txs)

	findings := DetectSmurfing(context.Background(), g, DefaultSmurfingConfig())
	if len(findings) != 1 {
		t.Fatalf("expected exactly 1 finding, got %d", len(findings))
	}
	if findings[0].PatternType != PatternFanOut {
		t.Errorf("pattern = %s, want %s", findings[0].PatternType, PatternFanOut)
	}
}

func TestDetectSmurfing_WindowExcludesSlowDrip(t *testing.T) {
	// Twelve senders, but 10 hours apart: any 72-hour window holds at
	// most 8 of them.
	g := graph.Build(fanInBatch("R", 12, 10))

	findings := DetectSmurfing(context.Background(), g, DefaultSmurfingConfig())
	if len(findings) != 0 {
		t.Fatalf("expected no findings outside the window, got %d", len(findings))
	}
}

func TestDetectSmurfing_DistinctCounterpartiesNotTransfers(t *testing.T) {
	// Nine senders, one of them paying four times: 12 transfers but only
	// 9 distinct counterparties.
	txs := fanInBatch("R", 9, 1)
	for i := 0; i < 3; i++ {
		txs = append(txs, record("S01", "R", 975, testBase.Add(time.Duration(10+i)*time.Hour)))
	}
	g := graph.Build(txs)

	findings := DetectSmurfing(context.Background(), g, DefaultSmurfingConfig())
	if len(findings) != 0 {
		t.Fatalf("repeat transfers must not count as distinct senders, got %d findings", len(findings))
	}
}

func TestDetectSmurfing_OneFindingPerVariant(t *testing.T) {
	// Two qualifying bursts; only the stronger (later, 14 senders) wins.
	txs := fanInBatch("R", 11, 2)
	for i := 0; i < 14; i++ {
		txs = append(txs, record(
			fmt.Sprintf("T%02d", i+1),
			"R",
			1_000,
			testBase.Add(30*24*time.Hour).Add(time.Duration(i)*time.Hour),
		))
	}
	g := graph.Build(txs)

	findings := DetectSmurfing(context.Background(), g, DefaultSmurfingConfig())
	if len(findings) != 1 {
		t.Fatalf("expected a single fan-in finding per account, got %d", len(findings))
	}
	// 14 distinct: count_factor = (14-10)/20 + 0.5 = 0.7; CV = 0.
	want := 0.5*0.7 + 0.5
	if diff := findings[0].RawScore - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("raw score = %v, want %v (strongest window wins)", findings[0].RawScore, want)
	}
}
