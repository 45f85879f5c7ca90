package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rawblock/muling-engine/pkg/models"
)

// datagen emits a JSON batch that contains a 3-cycle, a fan-in burst and a
// shell chain, plus benign accounts the classifier should veto and random
// background traffic. No fan-out burst is generated. Useful for demos, load tests and eyeballing
// the visualisation.

var base = time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)

func main() {
	out := flag.String("out", "testdata.json", "output file")
	noise := flag.Int("noise", 200, "number of random background transfers")
	seed := flag.Int64("seed", 42, "rng seed, fixed for reproducible batches")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))

	var txs []models.Transaction
	txs = append(txs, cycleRing()...)
	txs = append(txs, fanInBurst()...)
	txs = append(txs, shellChain()...)
	txs = append(txs, salariedAccount()...)
	txs = append(txs, merchantTraffic(rng)...)
	txs = append(txs, backgroundNoise(rng, *noise)...)

	payload, err := json.MarshalIndent(map[string]any{"transactions": txs}, "", "  ")
	if err != nil {
		log.Fatalf("marshal failed: %v", err)
	}
	if err := os.WriteFile(*out, payload, 0o644); err != nil {
		log.Fatalf("write failed: %v", err)
	}
	log.Printf("Wrote %d transactions to %s", len(txs), *out)
}

func tx(sender, receiver string, amount float64, at time.Time) models.Transaction {
	return models.Transaction{
		TransactionID: uuid.NewString(),
		SenderID:      sender,
		ReceiverID:    receiver,
		Amount:        decimal.NewFromFloat(amount),
		Timestamp:     at,
	}
}

// cycleRing: three mules round-tripping 10k within two hours.
func cycleRing() []models.Transaction {
	return []models.Transaction{
		tx("MULE_A", "MULE_B", 10_000, base),
		tx("MULE_B", "MULE_C", 10_000, base.Add(1*time.Hour)),
		tx("MULE_C", "MULE_A", 10_000, base.Add(2*time.Hour)),
	}
}

// fanInBurst: twelve senders structuring roughly 1k each (950-1038) into
// one collector.
func fanInBurst() []models.Transaction {
	var txs []models.Transaction
	for i := 0; i < 12; i++ {
		txs = append(txs, tx(
			fmt.Sprintf("SMURF_%02d", i+1),
			"COLLECTOR",
			950+float64(i*8),
			base.Add(time.Duration(i*4)*time.Hour),
		))
	}
	return txs
}

// shellChain: 48k layered through three single-purpose intermediaries.
func shellChain() []models.Transaction {
	return []models.Transaction{
		tx("CHAIN_SRC", "SHELL_1", 48_000, base),
		tx("SHELL_1", "SHELL_2", 47_500, base.Add(90*time.Minute)),
		tx("SHELL_2", "SHELL_3", 47_000, base.Add(3*time.Hour)),
		tx("SHELL_3", "CHAIN_DST", 46_500, base.Add(5*time.Hour)),
	}
}

// salariedAccount: six months of identical paydays; the classifier must
// veto the recipient even though it also receives a smurfing burst.
func salariedAccount() []models.Transaction {
	var txs []models.Transaction
	for month := 0; month < 6; month++ {
		txs = append(txs, tx("EMPLOYER", "SALARIED", 5_000, base.AddDate(0, month, 0)))
	}
	for i := 0; i < 12; i++ {
		txs = append(txs, tx(
			fmt.Sprintf("PAYER_%02d", i+1),
			"SALARIED",
			5_000,
			base.AddDate(0, 3, 0).Add(time.Duration(i*5)*time.Hour),
		))
	}
	return txs
}

// merchantTraffic: sixty customers paying from a three-item price list.
func merchantTraffic(rng *rand.Rand) []models.Transaction {
	prices := []float64{9.99, 14.99, 19.99}
	var txs []models.Transaction
	for i := 0; i < 60; i++ {
		txs = append(txs, tx(
			fmt.Sprintf("CUSTOMER_%03d", i+1),
			"MERCHANT",
			prices[rng.Intn(len(prices))],
			base.Add(time.Duration(i*7)*time.Hour),
		))
	}
	return txs
}

// backgroundNoise: sparse random transfers between ordinary accounts.
func backgroundNoise(rng *rand.Rand, n int) []models.Transaction {
	var txs []models.Transaction
	for i := 0; i < n; i++ {
		sender := fmt.Sprintf("ACCT_%03d", rng.Intn(150))
		receiver := fmt.Sprintf("ACCT_%03d", rng.Intn(150))
		if sender == receiver {
			continue
		}
		txs = append(txs, tx(
			sender,
			receiver,
			10+rng.Float64()*2_000,
			base.Add(time.Duration(rng.Intn(60*24*30))*time.Minute),
		))
	}
	return txs
}
