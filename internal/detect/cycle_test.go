package detect

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

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

func TestDetectCycles_ThreeCycle(t *testing.T) {
	g := graph.Build([]models.Transaction{
		record("A", "B", 10_000, testBase),
		record("B", "C", 10_000, testBase.Add(time.Hour)),
		record("C", "A", 10_000, testBase.Add(2*time.Hour)),
	})

	findings, capped := DetectCycles(context.Background(), g, DefaultCycleConfig())
	if capped {
		t.Fatal("cap must not trigger on a single cycle")
	}
	if len(findings) != 1 {
		t.Fatalf("expected exactly 1 cycle, got %d", len(findings))
	}

	f := findings[0]
	if f.PatternType != PatternCycle {
		t.Errorf("pattern = %s, want %s", f.PatternType, PatternCycle)
	}
	want := []string{"A", "B", "C"}
	if len(f.Accounts) != 3 {
		t.Fatalf("cycle members = %v, want %v", f.Accounts, want)
	}
	for i, id := range want {
		if f.Accounts[i] != id {
			t.Errorf("cycle rooted at smallest id: got %v, want %v", f.Accounts, want)
			break
		}
	}
	if !f.Amount.Equal(decimal.NewFromInt(30_000)) {
		t.Errorf("circulated amount = %s, want 30000 (sum of edge totals)", f.Amount)
	}
	if f.Span != 2*time.Hour {
		t.Errorf("span = %v, want 2h", f.Span)
	}

	// 0.4*(6-3)/3 + 0.3*(30000/50000) + 0.3/(1+2/24)
	wantScore := 0.4 + 0.18 + 0.3/(1.0+2.0/24.0)
	if diff := f.RawScore - wantScore; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("raw score = %v, want %v", f.RawScore, wantScore)
	}
}

func TestDetectCycles_ExcludesReciprocals(t *testing.T) {
	g := graph.Build([]models.Transaction{
		record("A", "B", 5_000, testBase),
		record("B", "A", 5_000, testBase.Add(time.Hour)),
	})

	findings, _ := DetectCycles(context.Background(), g, DefaultCycleConfig())
	if len(findings) != 0 {
		t.Fatalf("2-cycles are not suspicious, got %d findings", len(findings))
	}
}

func TestDetectCycles_LengthBoundInsideSearch(t *testing.T) {
	// A 6-cycle must not be reported even partially.
	nodes := []string{"A", "B", "C", "D", "E", "F"}
	var txs []models.Transaction
	for i, n := range nodes {
		txs = append(txs, record(n, nodes[(i+1)%len(nodes)], 1_000, testBase.Add(time.Duration(i)*time.Minute)))
	}

	findings, _ := DetectCycles(context.Background(), graph.Build(txs), DefaultCycleConfig())
	if len(findings) != 0 {
		t.Fatalf("expected no cycles beyond the length bound, got %d", len(findings))
	}
}

func TestDetectCycles_CapSaturation(t *testing.T) {
	// A complete directed graph on 12 nodes produces many 3-cycles.
	var txs []models.Transaction
	for i := 0; i < 12; i++ {
		for j := 0; j < 12; j++ {
			if i == j {
				continue
			}
			u := fmt.Sprintf("N%02d", i)
			v := fmt.Sprintf("N%02d", j)
			txs = append(txs, record(u, v, 100, testBase.Add(time.Duration(i*12+j)*time.Minute)))
		}
	}

	cfg := DefaultCycleConfig()
	cfg.MaxCycles = 50
	findings, capped := DetectCycles(context.Background(), graph.Build(txs), cfg)
	if !capped {
		t.Fatal("expected the enumeration cap to trigger")
	}
	if len(findings) != 50 {
		t.Fatalf("expected exactly %d findings at the cap, got %d", 50, len(findings))
	}
}

func TestDetectCycles_DeterministicOrder(t *testing.T) {
	var txs []models.Transaction
	for i := 0; i < 8; i++ {
		for j := 0; j < 8; j++ {
			if i == j {
				continue
			}
			txs = append(txs, record(fmt.Sprintf("N%d", i), fmt.Sprintf("N%d", j), 100, testBase))
		}
	}
	g := graph.Build(txs)

	first, _ := DetectCycles(context.Background(), g, DefaultCycleConfig())
	second, _ := DetectCycles(context.Background(), g, DefaultCycleConfig())
	if len(first) != len(second) {
		t.Fatalf("runs disagree on count: %d vs %d", len(first), len(second))
	}
	for i := range first {
		for j := range first[i].Accounts {
			if first[i].Accounts[j] != second[i].Accounts[j] {
				t.Fatalf("enumeration order differs at finding %d: %v vs %v", i, first[i].Accounts, second[i].Accounts)
			}
		}
	}
}
