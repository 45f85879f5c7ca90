package detect

import (
	"context"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rawblock/muling-engine/internal/graph"
)

// Smurfing Detector
//
// Structuring leaves a temporal fingerprint: a burst of transfers between
// one account and many distinct counterparties inside a short window.
//
//   fan-in  — >= 10 distinct senders pay one receiver within 72 hours
//   fan-out — one sender pays >= 10 distinct receivers within 72 hours
//
// Both variants run a two-pointer sliding window over the account's
// timestamp-sorted ledger, tracking distinct counterparties in the active
// window. At most one finding per account per variant: the window with the
// highest distinct count wins, earliest window on ties.

// SmurfingConfig bounds the burst search.
type SmurfingConfig struct {
	Window            time.Duration // sliding window width
	MinCounterparties int           // distinct counterparty threshold
}

// DefaultSmurfingConfig returns the reference thresholds.
func DefaultSmurfingConfig() SmurfingConfig {
	return SmurfingConfig{Window: 72 * time.Hour, MinCounterparties: 10}
}

// DetectSmurfing evaluates both variants for every account.
func DetectSmurfing(ctx context.Context, g *graph.Graph, cfg SmurfingConfig) []Finding {
	var findings []Finding

	for _, id := range g.AccountIDs() {
		if ctx.Err() != nil {
			return findings
		}
		acct := g.Account(id)

		if f, ok := bestBurst(id, acct.RecvTx, PatternFanIn, cfg); ok {
			findings = append(findings, f)
		}
		if f, ok := bestBurst(id, acct.SentTx, PatternFanOut, cfg); ok {
			findings = append(findings, f)
		}
	}

	return findings
}

// bestBurst slides a window over one direction of an account's ledger and
// returns the strongest qualifying burst, if any.
func bestBurst(account string, txs []graph.Tx, pattern string, cfg SmurfingConfig) (Finding, bool) {
	if len(txs) < cfg.MinCounterparties {
		return Finding{}, false
	}

	inWindow := make(map[string]int)
	distinct := 0
	bestDistinct := 0
	bestL, bestR := 0, 0

	r := 0
	for l := 0; l < len(txs); l++ {
		for r < len(txs) && txs[r].Timestamp.Sub(txs[l].Timestamp) <= cfg.Window {
			inWindow[txs[r].Counterparty]++
			if inWindow[txs[r].Counterparty] == 1 {
				distinct++
			}
			r++
		}

		// Strictly-greater keeps the earliest window on ties.
		if distinct >= cfg.MinCounterparties && distinct > bestDistinct {
			bestDistinct = distinct
			bestL, bestR = l, r
		}

		inWindow[txs[l].Counterparty]--
		if inWindow[txs[l].Counterparty] == 0 {
			distinct--
			delete(inWindow, txs[l].Counterparty)
		}
	}

	if bestDistinct == 0 {
		return Finding{}, false
	}

	window := txs[bestL:bestR]
	amounts := make([]float64, len(window))
	total := decimal.Zero
	for i, tx := range window {
		amounts[i] = tx.Amount.InexactFloat64()
		total = total.Add(tx.Amount)
	}

	cv := coefficientOfVariation(amounts)
	countFactor := math.Min(1.0, float64(bestDistinct-cfg.MinCounterparties)/20.0+0.5)

	return Finding{
		PatternType: pattern,
		Accounts:    []string{account},
		Amount:      total,
		Span:        window[len(window)-1].Timestamp.Sub(window[0].Timestamp),
		RawScore:    clip(0.5*countFactor + 0.5*(1.0-math.Min(cv, 1.0))),
	}, true
}
