// Package journal persists coaching decisions to SQLite for later review.
// It also derives the behavioral counters (daily trade count, consecutive
// losses, daily loss) the rule engine wants as context.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"tradecoach/internal/markethours"
	"tradecoach/internal/metrics"
	"tradecoach/internal/model"
)

// Journal is a single-writer SQLite store of intents and their verdicts.
type Journal struct {
	mu      sync.Mutex
	db      *sql.DB
	metrics *metrics.Metrics
}

// New opens (or creates) the decision journal database.
func New(dbPath string, m *metrics.Metrics) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS decisions (
		id          TEXT PRIMARY KEY,
		symbol      TEXT NOT NULL,
		direction   TEXT NOT NULL,
		price       REAL NOT NULL,
		size        REAL NOT NULL,
		stop_loss   REAL,
		target      REAL,
		approved    INTEGER NOT NULL,
		severity    TEXT NOT NULL,
		itype       TEXT NOT NULL,
		message     TEXT,
		reason      TEXT,
		created_at  DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_decisions_symbol ON decisions(symbol);
	CREATE INDEX IF NOT EXISTS idx_decisions_created ON decisions(created_at);

	CREATE TABLE IF NOT EXISTS outcomes (
		decision_id TEXT NOT NULL REFERENCES decisions(id),
		pnl         REAL NOT NULL,
		pnl_pct     REAL NOT NULL,
		closed_at   DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_outcomes_closed ON outcomes(closed_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[journal] opened decision journal at %s", dbPath)
	return &Journal{db: db, metrics: m}, nil
}

// Record appends one intent/verdict pair and returns the decision id, the
// handle a later RecordOutcome call refers back to.
func (j *Journal) Record(ctx context.Context, intent model.TradeIntent, result model.InterventionResult) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	approved := 0
	if result.Approved {
		approved = 1
	}
	id := uuid.NewString()
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO decisions (id, symbol, direction, price, size, stop_loss, target,
		                        approved, severity, itype, message, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		intent.Symbol,
		intent.Direction,
		intent.Price,
		intent.Size,
		intent.StopLoss,
		intent.Target,
		approved,
		string(result.Severity),
		result.Type,
		result.Message,
		result.Reason,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return "", fmt.Errorf("journal insert: %w", err)
	}
	j.metrics.IncJournalWrite()
	return id, nil
}

// RecordOutcome attaches a realized P&L to a prior decision.
func (j *Journal) RecordOutcome(ctx context.Context, decisionID string, pnl, pnlPct float64, closedAt time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO outcomes (decision_id, pnl, pnl_pct, closed_at) VALUES (?, ?, ?, ?)`,
		decisionID, pnl, pnlPct, closedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("journal outcome insert: %w", err)
	}
	return nil
}

// DecisionRecord is one row from the decisions table.
type DecisionRecord struct {
	ID        string  `json:"id"`
	Symbol    string  `json:"symbol"`
	Direction string  `json:"direction"`
	Price     float64 `json:"price"`
	Size      float64 `json:"size"`
	Approved  bool    `json:"approved"`
	Severity  string  `json:"severity"`
	Type      string  `json:"type"`
	Message   string  `json:"message"`
	Reason    string  `json:"reason"`
	CreatedAt string  `json:"createdAt"`
}

// Recent returns the last N decisions, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]DecisionRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, symbol, direction, price, size, approved, severity, itype, message, reason, created_at
		 FROM decisions ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DecisionRecord
	for rows.Next() {
		var d DecisionRecord
		var approved int
		if err := rows.Scan(&d.ID, &d.Symbol, &d.Direction, &d.Price, &d.Size,
			&approved, &d.Severity, &d.Type, &d.Message, &d.Reason, &d.CreatedAt); err != nil {
			continue
		}
		d.Approved = approved == 1
		out = append(out, d)
	}
	return out, rows.Err()
}

// DailyStats are the journal-derived behavioral counters for one trading day.
type DailyStats struct {
	TradeCount        int
	ConsecutiveLosses int
	LossPct           float64 // cumulative negative pnl_pct, as a positive number
}

// StatsFor derives the counters for the trading day containing t. Trade
// count is approved decisions today; consecutive losses walk outcomes
// newest-first until the first winner.
func (j *Journal) StatsFor(ctx context.Context, t time.Time) (DailyStats, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var s DailyStats
	et := t.In(markethours.Eastern)
	dayStart := time.Date(et.Year(), et.Month(), et.Day(), 0, 0, 0, 0, markethours.Eastern).UTC()

	err := j.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM decisions WHERE approved = 1 AND created_at >= ?`,
		dayStart.Format(time.RFC3339)).Scan(&s.TradeCount)
	if err != nil {
		return s, err
	}

	var lossSum sql.NullFloat64
	err = j.db.QueryRowContext(ctx,
		`SELECT SUM(pnl_pct) FROM outcomes WHERE pnl_pct < 0 AND closed_at >= ?`,
		dayStart.Format(time.RFC3339)).Scan(&lossSum)
	if err != nil {
		return s, err
	}
	if lossSum.Valid {
		s.LossPct = -lossSum.Float64
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT pnl FROM outcomes ORDER BY closed_at DESC LIMIT 20`)
	if err != nil {
		return s, err
	}
	defer rows.Close()
	for rows.Next() {
		var pnl float64
		if err := rows.Scan(&pnl); err != nil {
			break
		}
		if pnl >= 0 {
			break
		}
		s.ConsecutiveLosses++
	}
	return s, rows.Err()
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}
