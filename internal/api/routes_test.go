package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/rawblock/muling-engine/internal/engine"
	"github.com/rawblock/muling-engine/pkg/models"
)

func testRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	hub := NewHub()
	go hub.Run()
	return SetupRouter(engine.New(engine.DefaultConfig()), nil, hub, nil, 2)
}

func postAnalyze(t *testing.T, r *gin.Engine, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandleAnalyze_CycleBatch(t *testing.T) {
	base := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)
	var txs []models.Transaction
	for i, hop := range [][2]string{{"A", "B"}, {"B", "C"}, {"C", "A"}} {
		txs = append(txs, models.Transaction{
			TransactionID: fmt.Sprintf("tx-%d", i+1),
			SenderID:      hop[0],
			ReceiverID:    hop[1],
			Amount:        decimal.NewFromInt(10_000),
			Timestamp:     base.Add(time.Duration(i) * time.Hour),
		})
	}
	body, _ := json.Marshal(AnalyzeRequest{Transactions: txs})

	w := postAnalyze(t, testRouter(), body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var report models.AnalysisReport
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatalf("response is not a report: %v", err)
	}
	if report.AnalysisID == "" {
		t.Error("report must carry an analysis id")
	}
	if len(report.FraudRings) != 1 || len(report.SuspiciousAccounts) != 3 {
		t.Errorf("got %d rings / %d accounts, want 1 / 3", len(report.FraudRings), len(report.SuspiciousAccounts))
	}
}

func TestHandleAnalyze_ErrorCategories(t *testing.T) {
	r := testRouter()

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"malformed json", `{"transactions": [{`, http.StatusBadRequest, "invalid_input"},
		{"empty batch", `{"transactions": []}`, http.StatusBadRequest, "empty_input"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postAnalyze(t, r, []byte(tt.body))
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if !strings.Contains(w.Body.String(), tt.wantErr) {
				t.Errorf("body = %s, want error %q", w.Body.String(), tt.wantErr)
			}
		})
	}
}

func TestHandleReports_UnavailableWithoutDatabase(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil)
	w := httptest.NewRecorder()
	testRouter().ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 when no archive is connected", w.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	testRouter().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "operational") {
		t.Errorf("unexpected health payload: %s", w.Body.String())
	}
}
