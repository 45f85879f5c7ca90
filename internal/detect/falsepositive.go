package detect

import (
	"math"

	"github.com/rawblock/muling-engine/internal/graph"
)

// False-Positive Classifier
//
// Flags accounts whose transaction shape matches known-benign behaviour so
// the scorer can veto them no matter what the detectors found:
//
//   salary_recipient — near-constant amounts arriving on a monthly cadence
//   merchant         — many distinct payers drawn from a small price list
//   payroll_hub      — one account distributing near-identical amounts widely
//
// The classifier only reads the graph; tags are applied as hard vetoes
// downstream, never as score adjustments.

// Benign-pattern tags.
const (
	TagSalaryRecipient = "salary_recipient"
	TagMerchant        = "merchant"
	TagPayrollHub      = "payroll_hub"
)

// FalsePositiveConfig holds the classifier thresholds.
type FalsePositiveConfig struct {
	SalaryMinDeposits  int     // minimum received transfers
	SalaryMaxCV        float64 // CV ceiling on received amounts
	SalaryGapMinDays   float64 // monthly-cadence gap window
	SalaryGapMaxDays   float64
	SalaryGapShare     float64 // fraction of gaps that must fall in the window
	MerchantMinPayers  int     // in-degree floor
	MerchantMaxEntropy float64 // bits, over integer-binned received amounts
	PayrollMinPayees   int     // out-degree floor
	PayrollMaxCV       float64 // CV ceiling on sent amounts
}

// DefaultFalsePositiveConfig returns the reference thresholds.
func DefaultFalsePositiveConfig() FalsePositiveConfig {
	return FalsePositiveConfig{
		SalaryMinDeposits:  3,
		SalaryMaxCV:        0.05,
		SalaryGapMinDays:   25,
		SalaryGapMaxDays:   35,
		SalaryGapShare:     0.70,
		MerchantMinPayers:  50,
		MerchantMaxEntropy: 2.5,
		PayrollMinPayees:   20,
		PayrollMaxCV:       0.15,
	}
}

// ClassifyFalsePositives computes the benign tag set for every account.
// Tags are independent; an account can carry more than one.
func ClassifyFalsePositives(g *graph.Graph, cfg FalsePositiveConfig) map[string][]string {
	tags := make(map[string][]string)

	for _, id := range g.AccountIDs() {
		acct := g.Account(id)

		if isSalaryRecipient(acct, cfg) {
			tags[id] = append(tags[id], TagSalaryRecipient)
		}
		if isMerchant(acct, cfg) {
			tags[id] = append(tags[id], TagMerchant)
		}
		if isPayrollHub(acct, cfg) {
			tags[id] = append(tags[id], TagPayrollHub)
		}
	}

	return tags
}

// isSalaryRecipient matches fixed-amount deposits on a roughly monthly
// cadence: at least 70% of the consecutive gaps land in the 25-35 day band.
// The cadence test runs over the whole incoming stream and, failing that,
// over each sender's stream alone — a genuine salary comes from a single
// employer and must stay recognisable when unrelated deposits land in
// between paydays.
func isSalaryRecipient(acct *graph.Account, cfg FalsePositiveConfig) bool {
	if len(acct.RecvTx) < cfg.SalaryMinDeposits {
		return false
	}

	if salaryStream(acct.RecvTx, cfg) {
		return true
	}

	bySender := make(map[string][]graph.Tx)
	for _, tx := range acct.RecvTx {
		bySender[tx.Counterparty] = append(bySender[tx.Counterparty], tx)
	}
	for _, stream := range bySender {
		if len(stream) >= cfg.SalaryMinDeposits && salaryStream(stream, cfg) {
			return true
		}
	}
	return false
}

// salaryStream applies the amount-stability and cadence thresholds to one
// timestamp-sorted deposit stream.
func salaryStream(txs []graph.Tx, cfg FalsePositiveConfig) bool {
	amounts := make([]float64, len(txs))
	for i, tx := range txs {
		amounts[i] = tx.Amount.InexactFloat64()
	}
	mean, std := meanStd(amounts)
	if mean <= 0 || std/mean > cfg.SalaryMaxCV {
		return false
	}

	gaps := len(txs) - 1
	inBand := 0
	for i := 0; i < gaps; i++ {
		days := txs[i+1].Timestamp.Sub(txs[i].Timestamp).Hours() / 24
		if days >= cfg.SalaryGapMinDays && days <= cfg.SalaryGapMaxDays {
			inBand++
		}
	}
	return gaps > 0 && float64(inBand) >= cfg.SalaryGapShare*float64(gaps)
}

// isMerchant matches accounts paid by many distinct customers from a
// standardized price list: high in-degree, low amount entropy.
func isMerchant(acct *graph.Account, cfg FalsePositiveConfig) bool {
	if acct.InDegree < cfg.MerchantMinPayers || len(acct.RecvTx) == 0 {
		return false
	}
	return amountEntropyBits(acct.RecvTx) < cfg.MerchantMaxEntropy
}

// isPayrollHub matches a distributor paying near-identical amounts to many
// accounts.
func isPayrollHub(acct *graph.Account, cfg FalsePositiveConfig) bool {
	if acct.OutDegree < cfg.PayrollMinPayees || len(acct.SentTx) == 0 {
		return false
	}

	amounts := make([]float64, len(acct.SentTx))
	for i, tx := range acct.SentTx {
		amounts[i] = tx.Amount.InexactFloat64()
	}
	mean, std := meanStd(amounts)
	return mean > 0 && std/mean < cfg.PayrollMaxCV
}

// amountEntropyBits computes Shannon entropy of the amount distribution
// with amounts binned to the nearest whole currency unit.
func amountEntropyBits(txs []graph.Tx) float64 {
	bins := make(map[int64]int)
	for _, tx := range txs {
		bins[tx.Amount.Round(0).IntPart()]++
	}

	total := float64(len(txs))
	entropy := 0.0
	for _, count := range bins {
		p := float64(count) / total
		entropy -= p * math.Log2(p)
	}
	return entropy
}
