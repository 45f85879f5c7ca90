package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/rawblock/muling-engine/internal/detect"
	"github.com/rawblock/muling-engine/internal/graph"
	"github.com/rawblock/muling-engine/internal/scoring"
	"github.com/rawblock/muling-engine/pkg/models"
)

// Analysis Pipeline
//
// One batch in, one report out, nothing persisted:
//
//   build graph → classifier ∥ cycle ∥ smurfing ∥ shell → score → report
//
// The four analysis stages read the same immutable graph and run
// concurrently. Their outputs are collected and handed to the scorer in a
// total order, so the report is byte-identical across runs regardless of
// goroutine scheduling. Detector caps becoming active is not an error —
// it degrades to a warning in the summary.

// Engine runs analyses with a fixed configuration.
type Engine struct {
	cfg Config
}

// New creates an engine from cfg.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Analyze runs the full pipeline over one transaction batch.
func (e *Engine) Analyze(ctx context.Context, txs []models.Transaction) (*models.AnalysisReport, error) {
	started := time.Now()

	if len(txs) == 0 {
		return nil, fmt.Errorf("%w: no transactions provided", ErrEmptyInput)
	}

	g := graph.Build(txs)
	if g.AcceptedTxCount() == 0 {
		return nil, fmt.Errorf("%w: all %d records failed validation", ErrInvalidInput, g.DroppedTxCount())
	}
	if err := checkConservation(g); err != nil {
		return nil, err
	}

	var (
		fpTags       map[string][]string
		cycles       []detect.Finding
		smurfs       []detect.Finding
		chains       []detect.Finding
		cyclesCapped bool
		chainsCapped bool
	)

	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		fpTags = detect.ClassifyFalsePositives(g, e.cfg.FalsePositive)
		return gctx.Err()
	})
	grp.Go(func() error {
		cycles, cyclesCapped = detect.DetectCycles(gctx, g, e.cfg.Cycle)
		return gctx.Err()
	})
	grp.Go(func() error {
		smurfs = detect.DetectSmurfing(gctx, g, e.cfg.Smurfing)
		return gctx.Err()
	})
	grp.Go(func() error {
		chains, chainsCapped = detect.DetectShellChains(gctx, g, e.cfg.ShellChain)
		return gctx.Err()
	})
	if err := grp.Wait(); err != nil {
		return nil, err
	}

	findings := make([]detect.Finding, 0, len(cycles)+len(smurfs)+len(chains))
	findings = append(findings, cycles...)
	findings = append(findings, smurfs...)
	findings = append(findings, chains...)

	result := scoring.Score(g, findings, fpTags, e.cfg.Scoring)

	var warnings []string
	if cyclesCapped {
		warnings = append(warnings, fmt.Sprintf("cycle enumeration capped at %d", e.cfg.Cycle.MaxCycles))
	}
	if chainsCapped {
		warnings = append(warnings, fmt.Sprintf("shell-chain enumeration capped at %d", e.cfg.ShellChain.MaxChains))
	}
	if dropped := g.DroppedTxCount(); dropped > 0 {
		warnings = append(warnings, fmt.Sprintf("%d invalid records discarded", dropped))
	}

	return &models.AnalysisReport{
		AnalysisID:         uuid.NewString(),
		SuspiciousAccounts: result.SuspiciousAccounts,
		FraudRings:         result.FraudRings,
		Summary: models.Summary{
			TotalAccountsAnalyzed:     g.NodeCount(),
			SuspiciousAccountsFlagged: len(result.SuspiciousAccounts),
			FraudRingsDetected:        len(result.FraudRings),
			ProcessingTimeSeconds:     roundSeconds(time.Since(started)),
			Warnings:                  warnings,
		},
		GraphData: result.GraphData,
	}, nil
}

// checkConservation verifies that total sent and total received, summed
// over all accounts, are exactly equal. A mismatch means a builder bug, not
// bad input.
func checkConservation(g *graph.Graph) error {
	sent, received := decimal.Zero, decimal.Zero
	for _, id := range g.AccountIDs() {
		acct := g.Account(id)
		sent = sent.Add(acct.TotalSent)
		received = received.Add(acct.TotalReceived)
	}
	if !sent.Equal(received) {
		return fmt.Errorf("%w: aggregate mismatch, sent %s vs received %s", ErrInternal, sent, received)
	}
	return nil
}

func roundSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*1000) / 1000
}
