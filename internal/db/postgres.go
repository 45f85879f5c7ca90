package db

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawblock/muling-engine/pkg/models"
)

// schemaSQL is compiled into the binary at build time so schema init works
// inside the Docker runtime image, which does not ship the .sql file.
//
//go:embed schema.sql
var schemaSQL string

// PostgresStore archives completed analysis reports. The engine runs fine
// without it — persistence is strictly an add-on for the dashboard, the
// pipeline never reads it back during detection.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect initializes the connection pool to PostgreSQL using pgx.
func Connect(connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping failed: %v", err)
	}

	log.Println("Successfully connected to PostgreSQL report archive")
	return &PostgresStore{pool: pool}, nil
}

// Close gracefully closes the connection pool.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema executes the embedded schema.sql DDL statements.
func (s *PostgresStore) InitSchema() error {
	_, err := s.pool.Exec(context.Background(), schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema migrations: %v", err)
	}
	return nil
}

// SaveReport archives one completed report document.
func (s *PostgresStore) SaveReport(ctx context.Context, report *models.AnalysisReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %v", err)
	}

	sql := `
		INSERT INTO analyses
			(analysis_id, total_accounts, flagged_accounts, fraud_rings, processing_seconds, report)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (analysis_id) DO NOTHING;
	`
	_, err = s.pool.Exec(ctx, sql,
		report.AnalysisID,
		report.Summary.TotalAccountsAnalyzed,
		report.Summary.SuspiciousAccountsFlagged,
		report.Summary.FraudRingsDetected,
		report.Summary.ProcessingTimeSeconds,
		payload,
	)
	return err
}

// ArchivedAnalysis is one row of the archive listing.
type ArchivedAnalysis struct {
	AnalysisID        string    `json:"analysis_id"`
	CreatedAt         time.Time `json:"created_at"`
	TotalAccounts     int       `json:"total_accounts"`
	FlaggedAccounts   int       `json:"flagged_accounts"`
	FraudRings        int       `json:"fraud_rings"`
	ProcessingSeconds float64   `json:"processing_seconds"`
}

// ListReports returns archived analysis summaries, newest first.
func (s *PostgresStore) ListReports(ctx context.Context, page, limit int) ([]ArchivedAnalysis, int, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	var totalCount int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM analyses`).Scan(&totalCount); err != nil {
		return nil, 0, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT analysis_id, created_at, total_accounts, flagged_accounts, fraud_rings, processing_seconds
		FROM analyses
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	analyses := make([]ArchivedAnalysis, 0)
	for rows.Next() {
		var a ArchivedAnalysis
		if err := rows.Scan(&a.AnalysisID, &a.CreatedAt, &a.TotalAccounts,
			&a.FlaggedAccounts, &a.FraudRings, &a.ProcessingSeconds); err != nil {
			return nil, 0, err
		}
		analyses = append(analyses, a)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}
	return analyses, totalCount, nil
}

// GetReport fetches one archived report document by id.
func (s *PostgresStore) GetReport(ctx context.Context, analysisID string) (*models.AnalysisReport, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT report FROM analyses WHERE analysis_id = $1`, analysisID).Scan(&payload)
	if err != nil {
		return nil, err
	}

	var report models.AnalysisReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, fmt.Errorf("corrupt archived report %s: %v", analysisID, err)
	}
	return &report, nil
}
