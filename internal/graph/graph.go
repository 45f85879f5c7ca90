package graph

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Directed Transaction Multigraph
//
// The graph is the shared read-only input of every detector. Nodes are
// accounts with per-direction aggregates; edges collapse all transfers
// between one ordered (sender, receiver) pair while retaining the
// individual timestamps the temporal detectors need.
//
// Representation: flat maps keyed by account id with pre-sorted adjacency
// slices. No pointer chasing between nodes — detectors walk id slices and
// look nodes up, which keeps the structure trivially shareable across
// goroutines once built.

// Tx is one transaction as seen from one side (a node's sent or received
// ledger). Counterparty is the other account.
type Tx struct {
	Counterparty string
	Amount       decimal.Decimal
	Timestamp    time.Time
}

// Account is a node with aggregated metrics.
type Account struct {
	ID            string
	TotalSent     decimal.Decimal
	TotalReceived decimal.Decimal
	OutDegree     int // distinct receivers
	InDegree      int // distinct senders
	SentTx        []Tx
	RecvTx        []Tx
}

// Degree is the total number of distinct counterparties in either direction.
func (a *Account) Degree() int {
	return a.InDegree + a.OutDegree
}

// Edge aggregates every transfer for one ordered (source, target) pair.
type Edge struct {
	Source      string
	Target      string
	TotalAmount decimal.Decimal
	Count       int
	Timestamps  []time.Time // ascending
}

// Graph is the immutable directed multigraph over one batch.
type Graph struct {
	accounts map[string]*Account
	out      map[string][]*Edge // adjacency sorted by target id
	in       map[string][]*Edge // reverse adjacency sorted by source id
	ids      []string           // all account ids, sorted
	edges    int
	accepted int // transactions that survived validation
	dropped  int // records discarded by validation
}

// Account returns the node for id, or nil if the id is unknown.
func (g *Graph) Account(id string) *Account {
	return g.accounts[id]
}

// AccountIDs returns every account id in lexicographic order. The slice is
// shared; callers must not mutate it.
func (g *Graph) AccountIDs() []string {
	return g.ids
}

// OutEdges returns the outgoing edges of id sorted by target id.
func (g *Graph) OutEdges(id string) []*Edge {
	return g.out[id]
}

// InEdges returns the incoming edges of id sorted by source id.
func (g *Graph) InEdges(id string) []*Edge {
	return g.in[id]
}

// EdgeBetween returns the aggregated edge u→v, or nil if no transfer exists.
func (g *Graph) EdgeBetween(u, v string) *Edge {
	edges := g.out[u]
	i := sort.Search(len(edges), func(i int) bool { return edges[i].Target >= v })
	if i < len(edges) && edges[i].Target == v {
		return edges[i]
	}
	return nil
}

// NodeCount returns the number of accounts.
func (g *Graph) NodeCount() int { return len(g.ids) }

// EdgeCount returns the number of aggregated directed edges.
func (g *Graph) EdgeCount() int { return g.edges }

// AcceptedTxCount returns how many transactions survived validation.
func (g *Graph) AcceptedTxCount() int { return g.accepted }

// DroppedTxCount returns how many records were discarded during validation.
func (g *Graph) DroppedTxCount() int { return g.dropped }
