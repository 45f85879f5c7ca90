package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is a single normalised transfer record. Parsing the external
// format (CSV upload, message queue, ...) is the caller's concern; the engine
// consumes these records directly.
type Transaction struct {
	TransactionID string          `json:"transaction_id"`
	SenderID      string          `json:"sender_id"`
	ReceiverID    string          `json:"receiver_id"`
	Amount        decimal.Decimal `json:"amount"`
	Timestamp     time.Time       `json:"timestamp"`
}

// SuspiciousAccount is one flagged account in the final report.
type SuspiciousAccount struct {
	AccountID        string   `json:"account_id"`
	SuspicionScore   int      `json:"suspicion_score"` // 10-100
	DetectedPatterns []string `json:"detected_patterns"`
	RingID           string   `json:"ring_id,omitempty"`
}

// FraudRing is a group of accounts participating in one illicit pattern.
type FraudRing struct {
	RingID         string   `json:"ring_id"`
	MemberAccounts []string `json:"member_accounts"`
	PatternType    string   `json:"pattern_type"` // "cycle" or "shell_chain"
	RiskScore      int      `json:"risk_score"`   // 0-100
}

// Summary holds batch-level counters for the report header.
type Summary struct {
	TotalAccountsAnalyzed     int      `json:"total_accounts_analyzed"`
	SuspiciousAccountsFlagged int      `json:"suspicious_accounts_flagged"`
	FraudRingsDetected        int      `json:"fraud_rings_detected"`
	ProcessingTimeSeconds     float64  `json:"processing_time_seconds"`
	Warnings                  []string `json:"warnings,omitempty"` // detector saturation notices
}

// VizNode is one node of the trimmed visualisation graph.
type VizNode struct {
	ID             string          `json:"id"`
	TotalSent      decimal.Decimal `json:"total_sent"`
	TotalReceived  decimal.Decimal `json:"total_received"`
	SuspicionScore int             `json:"suspicion_score"` // 0 for non-flagged nodes
	IsSuspicious   bool            `json:"is_suspicious"`
}

// VizEdge is one aggregated edge of the visualisation graph. Both endpoints
// are guaranteed to be present in the node list.
type VizEdge struct {
	Source string          `json:"source"`
	Target string          `json:"target"`
	Amount decimal.Decimal `json:"amount"`
	Count  int             `json:"count"`
}

// GraphData is the reduced graph returned for front-end rendering.
type GraphData struct {
	Nodes []VizNode `json:"nodes"`
	Edges []VizEdge `json:"edges"`
}

// AnalysisReport is the complete engine output for one batch.
type AnalysisReport struct {
	AnalysisID         string              `json:"analysis_id"`
	SuspiciousAccounts []SuspiciousAccount `json:"suspicious_accounts"`
	FraudRings         []FraudRing         `json:"fraud_rings"`
	Summary            Summary             `json:"summary"`
	GraphData          GraphData           `json:"graph_data"`
}
