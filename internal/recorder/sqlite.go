package recorder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"SignalSentinel/internal/model"
)

// SQLiteRecorder persists correlations and decisions to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log zerolog.Logger) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets readers keep the committed snapshot while a replace is in flight.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS correlations (
			symbol_a    TEXT NOT NULL,
			symbol_b    TEXT NOT NULL,
			coefficient REAL NOT NULL,
			sample_size INTEGER,
			run_id      TEXT,
			computed_at INTEGER NOT NULL,
			PRIMARY KEY (symbol_a, symbol_b)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_correlations_b ON correlations(symbol_b)`,

		`CREATE TABLE IF NOT EXISTS decisions (
			symbol        TEXT PRIMARY KEY,
			asset_class   TEXT,
			price         REAL,
			signal        TEXT,
			reason        TEXT,
			stop_loss     REAL,
			take_profit   REAL,
			atr           REAL,
			sentiment     REAL,
			error_type    TEXT,
			error_message TEXT,
			updated_at    INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS decision_history (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			symbol      TEXT NOT NULL,
			price       REAL,
			signal      TEXT,
			stop_loss   REAL,
			take_profit REAL,
			error_type  TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_symbol_ts ON decision_history(symbol, timestamp)`,
	}
	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// Close closes the database.
func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}

// ReplaceAll clears and refills the correlation table in one transaction.
func (r *SQLiteRecorder) ReplaceAll(ctx context.Context, entries []model.CorrelationEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM correlations`); err != nil {
		return fmt.Errorf("clear correlations: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO correlations
		(symbol_a, symbol_b, coefficient, sample_size, run_id, computed_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		a, b := model.CanonicalPair(e.SymbolA, e.SymbolB)
		if _, err := stmt.ExecContext(ctx, a, b, e.Coefficient, e.SampleSize, e.RunID, e.ComputedAt.Unix()); err != nil {
			return fmt.Errorf("insert %s/%s: %w", a, b, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// FindBySymbol returns every stored pair involving symbol.
func (r *SQLiteRecorder) FindBySymbol(ctx context.Context, symbol string) ([]model.CorrelationEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT symbol_a, symbol_b, coefficient, sample_size, run_id, computed_at
		FROM correlations WHERE symbol_a = ? OR symbol_b = ?
		ORDER BY symbol_a, symbol_b`, symbol, symbol)
	if err != nil {
		return nil, fmt.Errorf("query correlations: %w", err)
	}
	defer rows.Close()

	var out []model.CorrelationEntry
	for rows.Next() {
		var e model.CorrelationEntry
		var sampleSize sql.NullInt64
		var runID sql.NullString
		var computedAt int64
		if err := rows.Scan(&e.SymbolA, &e.SymbolB, &e.Coefficient, &sampleSize, &runID, &computedAt); err != nil {
			return nil, fmt.Errorf("scan correlation: %w", err)
		}
		e.SampleSize = int(sampleSize.Int64)
		e.RunID = runID.String
		e.ComputedAt = time.Unix(computedAt, 0)
		out = append(out, e)
	}
	return out, rows.Err()
}

// RecordDecision upserts the latest decision and appends it to history.
func (r *SQLiteRecorder) RecordDecision(ctx context.Context, rec *DecisionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var sentiment sql.NullFloat64
	if rec.Sentiment != nil {
		sentiment = sql.NullFloat64{Float64: *rec.Sentiment, Valid: true}
	}
	ts := rec.UpdatedAt.Unix()
	label := rec.Signal.String()

	_, err = tx.ExecContext(ctx, `INSERT INTO decisions
		(symbol, asset_class, price, signal, reason, stop_loss, take_profit, atr, sentiment, error_type, error_message, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			asset_class = excluded.asset_class,
			price = excluded.price,
			signal = excluded.signal,
			reason = excluded.reason,
			stop_loss = excluded.stop_loss,
			take_profit = excluded.take_profit,
			atr = excluded.atr,
			sentiment = excluded.sentiment,
			error_type = excluded.error_type,
			error_message = excluded.error_message,
			updated_at = excluded.updated_at`,
		rec.Symbol, string(rec.AssetClass), rec.Price, label, rec.Reason,
		rec.StopLoss, rec.TakeProfit, rec.ATR, sentiment,
		string(rec.ErrorType), rec.ErrorMessage, ts,
	)
	if err != nil {
		return fmt.Errorf("upsert decision: %w", err)
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO decision_history
		(timestamp, symbol, price, signal, stop_loss, take_profit, error_type)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ts, rec.Symbol, rec.Price, rec.Label(), rec.StopLoss, rec.TakeProfit, string(rec.ErrorType),
	)
	if err != nil {
		return fmt.Errorf("insert decision history: %w", err)
	}
	return tx.Commit()
}

// LatestDecision returns the stored decision for symbol or ErrNotFound.
func (r *SQLiteRecorder) LatestDecision(ctx context.Context, symbol string) (*DecisionRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT symbol, asset_class, price, signal, reason, stop_loss, take_profit,
		atr, sentiment, error_type, error_message, updated_at
		FROM decisions WHERE symbol = ?`, symbol)

	var rec DecisionRecord
	var assetClass, label, reason, errType, errMsg sql.NullString
	var sentiment sql.NullFloat64
	var updatedAt int64
	err := row.Scan(&rec.Symbol, &assetClass, &rec.Price, &label, &reason, &rec.StopLoss, &rec.TakeProfit,
		&rec.ATR, &sentiment, &errType, &errMsg, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query decision: %w", err)
	}

	rec.Signal, err = model.ParseSignal(label.String)
	if err != nil {
		return nil, fmt.Errorf("decode decision %s: %w", symbol, err)
	}
	rec.AssetClass = model.AssetClass(assetClass.String)
	rec.Reason = reason.String
	rec.ErrorType = model.ErrorType(errType.String)
	rec.ErrorMessage = errMsg.String
	if sentiment.Valid {
		s := sentiment.Float64
		rec.Sentiment = &s
	}
	rec.UpdatedAt = time.Unix(updatedAt, 0)
	return &rec, nil
}

// DecisionHistory returns up to limit past decisions for symbol, newest first.
func (r *SQLiteRecorder) DecisionHistory(ctx context.Context, symbol string, limit int) ([]DecisionRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT timestamp, price, signal, stop_loss, take_profit, error_type
		FROM decision_history WHERE symbol = ? ORDER BY timestamp DESC, id DESC LIMIT ?`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []DecisionRecord
	for rows.Next() {
		var ts int64
		var label, errType sql.NullString
		rec := DecisionRecord{Symbol: symbol}
		if err := rows.Scan(&ts, &rec.Price, &label, &rec.StopLoss, &rec.TakeProfit, &errType); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		rec.UpdatedAt = time.Unix(ts, 0)
		rec.ErrorType = model.ErrorType(errType.String)
		// "ERROR" rows decode as unavailable.
		rec.Signal, _ = model.ParseSignal(label.String)
		out = append(out, rec)
	}
	return out, rows.Err()
}
