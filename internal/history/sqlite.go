package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/valpere/tandem/internal/backend"
	"github.com/valpere/tandem/internal/pipeline"
)

// SQLite keeps the history in a private in-memory SQLite database. Nothing
// is written to disk and the data disappears with the process.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a fresh in-memory database. Every store gets its own
// database; a single connection keeps it alive and serializes writes.
func NewSQLite() (*SQLite, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func (s *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		task TEXT NOT NULL,
		final_result TEXT NOT NULL,
		quality_score REAL NOT NULL,
		score_fallback BOOLEAN DEFAULT FALSE,
		iterations INTEGER NOT NULL,
		participants TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		started_at TIMESTAMP,
		finished_at TIMESTAMP
	);

	-- stage_records holds one row per executed stage of a run
	CREATE TABLE IF NOT EXISTS stage_records (
		run_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		stage TEXT NOT NULL,
		inputs TEXT NOT NULL,
		output TEXT NOT NULL,
		PRIMARY KEY (run_id, position),
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_score ON runs(quality_score);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLite) Append(ctx context.Context, run *pipeline.Run) error {
	if run == nil {
		return errors.New("nil run")
	}

	participants, err := json.Marshal(run.Participants)
	if err != nil {
		return fmt.Errorf("failed to encode participants: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, task, final_result, quality_score, score_fallback, iterations, participants, status, error, started_at, finished_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, normalizeText(run.Task), run.FinalResult, run.QualityScore, run.ScoreFallback, run.Iterations,
		string(participants), string(run.Status), run.Error, run.StartedAt, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for i, rec := range run.Trace {
		inputs, err := json.Marshal(rec.Inputs)
		if err != nil {
			return fmt.Errorf("failed to encode stage inputs: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO stage_records (run_id, position, stage, inputs, output) VALUES (?, ?, ?, ?, ?)`,
			run.ID, i, rec.Stage.String(), string(inputs), rec.Output)
		if err != nil {
			return fmt.Errorf("failed to insert stage record: %w", err)
		}
	}

	return tx.Commit()
}

// Runs returns every stored run with its trace, in append order.
func (s *SQLite) Runs(ctx context.Context) ([]*pipeline.Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, task, final_result, quality_score, score_fallback, iterations, participants, status, error, started_at, finished_at FROM runs ORDER BY seq`)
	if err != nil {
		return nil, err
	}

	var runs []*pipeline.Run
	byID := make(map[string]*pipeline.Run)
	for rows.Next() {
		var (
			r            pipeline.Run
			participants string
			status       string
			errText      sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Task, &r.FinalResult, &r.QualityScore, &r.ScoreFallback, &r.Iterations,
			&participants, &status, &errText, &r.StartedAt, &r.FinishedAt); err != nil {
			rows.Close()
			return nil, err
		}
		r.Status = pipeline.Status(status)
		r.Error = errText.String
		if err := json.Unmarshal([]byte(participants), &r.Participants); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to decode participants: %w", err)
		}
		runs = append(runs, &r)
		byID[r.ID] = &r
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	recs, err := s.db.QueryContext(ctx,
		`SELECT run_id, stage, inputs, output FROM stage_records ORDER BY run_id, position`)
	if err != nil {
		return nil, err
	}
	defer recs.Close()

	for recs.Next() {
		var runID, stage, inputs string
		var rec pipeline.StageRecord
		if err := recs.Scan(&runID, &stage, &inputs, &rec.Output); err != nil {
			return nil, err
		}
		if err := rec.Stage.UnmarshalText([]byte(stage)); err != nil {
			return nil, err
		}
		var results []backend.Result
		if err := json.Unmarshal([]byte(inputs), &results); err != nil {
			return nil, fmt.Errorf("failed to decode stage inputs: %w", err)
		}
		rec.Inputs = results
		if r, ok := byID[runID]; ok {
			r.Trace = append(r.Trace, rec)
		}
	}

	return runs, recs.Err()
}

// Stats aggregates in SQL. Ties for the best score go to the earliest run.
func (s *SQLite) Stats(ctx context.Context) (Statistics, error) {
	var (
		count    int
		avgScore sql.NullFloat64
		avgIter  sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			AVG(quality_score),
			AVG(iterations)
		FROM runs`).Scan(&count, &avgScore, &avgIter)
	if err != nil {
		return Statistics{}, err
	}
	if count == 0 {
		return emptyStats(), nil
	}

	stats := Statistics{
		Count:             count,
		AverageScore:      round(avgScore.Float64, 2),
		AverageIterations: round(avgIter.Float64, 1),
	}
	err = s.db.QueryRowContext(ctx,
		`SELECT task, quality_score FROM runs ORDER BY quality_score DESC, seq ASC LIMIT 1`).
		Scan(&stats.BestTask, &stats.BestScore)
	if err != nil {
		return Statistics{}, err
	}
	return stats, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

