package graph

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/rawblock/muling-engine/pkg/models"
)

// Build constructs the immutable transaction graph from a batch of records.
//
// Validation policy: malformed records (empty ids, zero timestamp,
// non-positive amount) and self-loops are discarded individually rather
// than failing the batch; the dropped count is kept so the caller can
// surface it. A pure function of its input — two calls on the same batch
// produce identical graphs.
func Build(txs []models.Transaction) *Graph {
	g := &Graph{
		accounts: make(map[string]*Account),
		out:      make(map[string][]*Edge),
		in:       make(map[string][]*Edge),
	}

	type pairKey struct{ src, dst string }
	edgesByPair := make(map[pairKey]*Edge)

	for _, tx := range txs {
		if !valid(tx) {
			g.dropped++
			continue
		}
		g.accepted++

		sender := g.node(tx.SenderID)
		receiver := g.node(tx.ReceiverID)

		sender.TotalSent = sender.TotalSent.Add(tx.Amount)
		sender.SentTx = append(sender.SentTx, Tx{
			Counterparty: tx.ReceiverID,
			Amount:       tx.Amount,
			Timestamp:    tx.Timestamp,
		})

		receiver.TotalReceived = receiver.TotalReceived.Add(tx.Amount)
		receiver.RecvTx = append(receiver.RecvTx, Tx{
			Counterparty: tx.SenderID,
			Amount:       tx.Amount,
			Timestamp:    tx.Timestamp,
		})

		key := pairKey{tx.SenderID, tx.ReceiverID}
		edge, ok := edgesByPair[key]
		if !ok {
			edge = &Edge{Source: tx.SenderID, Target: tx.ReceiverID}
			edgesByPair[key] = edge
		}
		edge.TotalAmount = edge.TotalAmount.Add(tx.Amount)
		edge.Count++
		edge.Timestamps = append(edge.Timestamps, tx.Timestamp)
	}

	for _, edge := range edgesByPair {
		sort.Slice(edge.Timestamps, func(i, j int) bool {
			return edge.Timestamps[i].Before(edge.Timestamps[j])
		})
		g.out[edge.Source] = append(g.out[edge.Source], edge)
		g.in[edge.Target] = append(g.in[edge.Target], edge)
		g.edges++
	}

	g.ids = make([]string, 0, len(g.accounts))
	for id, acct := range g.accounts {
		g.ids = append(g.ids, id)

		// Degrees count distinct counterparties, not edge multiplicity;
		// adjacency holds one aggregated edge per counterparty.
		sortTxs(acct.SentTx)
		sortTxs(acct.RecvTx)
	}
	sort.Strings(g.ids)

	for id := range g.out {
		edges := g.out[id]
		sort.Slice(edges, func(i, j int) bool { return edges[i].Target < edges[j].Target })
		g.accounts[id].OutDegree = len(edges)
	}
	for id := range g.in {
		edges := g.in[id]
		sort.Slice(edges, func(i, j int) bool { return edges[i].Source < edges[j].Source })
		g.accounts[id].InDegree = len(edges)
	}

	return g
}

func (g *Graph) node(id string) *Account {
	acct, ok := g.accounts[id]
	if !ok {
		acct = &Account{
			ID:            id,
			TotalSent:     decimal.Zero,
			TotalReceived: decimal.Zero,
		}
		g.accounts[id] = acct
	}
	return acct
}

// sortTxs orders by timestamp ascending, ties broken by counterparty id so
// detector output is reproducible regardless of input order.
func sortTxs(txs []Tx) {
	sort.Slice(txs, func(i, j int) bool {
		if !txs[i].Timestamp.Equal(txs[j].Timestamp) {
			return txs[i].Timestamp.Before(txs[j].Timestamp)
		}
		return txs[i].Counterparty < txs[j].Counterparty
	})
}

func valid(tx models.Transaction) bool {
	if tx.SenderID == "" || tx.ReceiverID == "" || tx.TransactionID == "" {
		return false
	}
	if tx.SenderID == tx.ReceiverID {
		return false
	}
	if tx.Timestamp.IsZero() {
		return false
	}
	return tx.Amount.IsPositive()
}
