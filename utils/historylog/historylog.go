// Package historylog implements an optional run-history audit sink: one
// row per step appended to Postgres after the fact. It is pure
// observability — nothing at execution time consults it, and it is
// never used to resume or replay a run.
package historylog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/recipeforge/reciperunner/utils/rconfig"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS recipe_step_history (
	run_id uuid NOT NULL,
	step_index integer NOT NULL,
	step_type text NOT NULL,
	started_at timestamptz NOT NULL,
	finished_at timestamptz,
	status text NOT NULL DEFAULT 'running',
	config jsonb,
	error text,
	PRIMARY KEY (run_id, step_index)
);`

// Recorder is a run-scoped history sink implementing executor.Observer.
// One Recorder is constructed per top-level recipe run; RunID correlates
// its rows and is also threaded through debug logs so a StepFailure
// breadcrumb chain can be matched back to one `process`
// invocation.
type Recorder struct {
	db *sql.DB
	RunID uuid.UUID
	started map[int]time.Time
}

// Open connects to dsn, ensures the history table exists, and returns a
// Recorder for one new run. Callers that have not configured
// history_dsn should simply not call Open; there is no no-op mode
// here, keeping the optionality at the call site (cmd/root.go) rather
// than inside this package.
func Open(ctx context.Context, dsn string) (*Recorder, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to history database: %w", err)
	}
	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating history table: %w", err)
	}
	return &Recorder{db: db, RunID: uuid.New(), started: make(map[int]time.Time)}, nil
}

// Close closes the underlying database connection.
func (r *Recorder) Close() error {
	return r.db.Close()
}

// StepStarted implements executor.Observer.
func (r *Recorder) StepStarted(index int, stepType string, config map[string]interface{}) {
	now := time.Now()
	r.started[index] = now

	masked := rconfig.MaskSecrets(config)
	payload, err := marshalJSONB(masked)
	if err != nil {
		rconfig.DebugLog("[historylog] encoding config for step %d: %v", index, err)
		payload = "{}"
	}

	_, err = r.db.Exec(
		`INSERT INTO recipe_step_history (run_id, step_index, step_type, started_at, status, config)
		 VALUES ($1, $2, $3, $4, 'running', $5)
		 ON CONFLICT (run_id, step_index) DO NOTHING`,
		r.RunID, index, stepType, now, payload,
	)
	if err != nil {
		rconfig.DebugLog("[historylog] recording step %d start: %v", index, err)
	}
}

// StepFinished implements executor.Observer.
func (r *Recorder) StepFinished(index int, stepType string, stepErr error) {
	status := "ok"
	var errMsg sql.NullString
	if stepErr != nil {
		status = "failed"
		errMsg = sql.NullString{String: stepErr.Error(), Valid: true}
	}

	_, err := r.db.Exec(
		`UPDATE recipe_step_history SET finished_at = $1, status = $2, error = $3
		 WHERE run_id = $4 AND step_index = $5`,
		time.Now(), status, errMsg, r.RunID, index,
	)
	if err != nil {
		rconfig.DebugLog("[historylog] recording step %d finish: %v", index, err)
	}
}
