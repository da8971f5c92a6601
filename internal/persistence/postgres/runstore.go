package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"docingest/internal/persistence"
)

// RunStore is the Postgres-backed ingestion-run ledger driving the worker's
// claim/heartbeat/terminate state machine.
type RunStore struct {
	pool *pgxpool.Pool
}

func NewRunStore(pool *pgxpool.Pool) *RunStore {
	return &RunStore{pool: pool}
}

func (s *RunStore) Claim(ctx context.Context, runID string, staleThreshold time.Duration) (persistence.Run, bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE ingestion_runs
		SET status='running', started_at=coalesce(started_at, now()), updated_at=now()
		WHERE run_id=$1 AND status IN ('queued','failed')`, runID)
	if err != nil {
		return persistence.Run{}, false, err
	}
	if tag.RowsAffected() > 0 {
		run, err := s.get(ctx, runID)
		return run, true, err
	}

	run, err := s.get(ctx, runID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return persistence.Run{}, false, nil
		}
		return persistence.Run{}, false, err
	}
	switch run.Status {
	case persistence.RunSucceeded:
		return run, false, nil
	case persistence.RunRunning:
		if time.Since(run.UpdatedAt) > staleThreshold {
			if _, err := s.pool.Exec(ctx, `UPDATE ingestion_runs SET updated_at=now() WHERE run_id=$1`, runID); err != nil {
				return persistence.Run{}, false, err
			}
			run.UpdatedAt = time.Now()
			return run, true, nil
		}
		return run, false, nil
	default:
		return run, false, nil
	}
}

func (s *RunStore) Heartbeat(ctx context.Context, runID string) error {
	_, err := s.pool.Exec(ctx, `UPDATE ingestion_runs SET updated_at=now() WHERE run_id=$1`, runID)
	return err
}

func (s *RunStore) FinishSuccess(ctx context.Context, runID string, stats persistence.RunStats) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE ingestion_runs SET status='succeeded', finished_at=now(), stats=$1, error=NULL
		WHERE run_id=$2`, statsJSON, runID)
	return err
}

func (s *RunStore) FinishFailure(ctx context.Context, runID string, stage, message string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE ingestion_runs SET status='failed', finished_at=now(), error=$1
		WHERE run_id=$2`, fmt.Sprintf("[%s] %s", stage, message), runID)
	return err
}

// SweepStale rewrites every running row older than threshold to failed with
// the interrupted-restart sentinel, matching the documented crash-recovery
// behavior.
func (s *RunStore) SweepStale(ctx context.Context, threshold time.Duration) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE ingestion_runs
		SET status='failed', finished_at=now(), error='interrupted — service restarted'
		WHERE status='running' AND updated_at < now() - $1::interval`,
		fmt.Sprintf("%d seconds", int(threshold.Seconds())))
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// CreateRun inserts a queued run row; the external dispatcher normally owns
// this insert, but the CLI driver (no dispatcher in front of it) needs it
// too.
func (s *RunStore) CreateRun(ctx context.Context, runID, tenant string, config map[string]any) error {
	configJSON, err := json.Marshal(config)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO ingestion_runs(run_id, tenant, status, config) VALUES ($1, $2, 'queued', $3)`,
		runID, tenant, configJSON)
	return err
}

func (s *RunStore) get(ctx context.Context, runID string) (persistence.Run, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT run_id, tenant, status, started_at, updated_at, finished_at, error
		FROM ingestion_runs WHERE run_id=$1`, runID)
	var run persistence.Run
	var status string
	var errText *string
	if err := row.Scan(&run.RunID, &run.Tenant, &status, &run.StartedAt, &run.UpdatedAt, &run.FinishedAt, &errText); err != nil {
		return persistence.Run{}, err
	}
	run.Status = persistence.RunStatus(status)
	if errText != nil {
		run.Error = *errText
	}
	return run, nil
}
