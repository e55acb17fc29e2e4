package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/larspage/orderdesk/internal/core"
)

type JobStore struct {
	conn *sql.DB
}

func NewJobStore(conn *sql.DB) *JobStore {
	return &JobStore{conn: conn}
}

func (s *JobStore) CreateJob(ctx context.Context, j *core.PrintJob) error {
	_, err := s.conn.ExecContext(ctx, insertJob,
		j.ID, j.OrderID, j.PrinterID, j.RestaurantID, string(j.PrintType),
		string(j.Status), j.Attempts, j.MaxAttempts, j.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert print job: %w", err)
	}
	return nil
}

func (s *JobStore) GetJob(ctx context.Context, id string) (*core.PrintJob, error) {
	row := s.conn.QueryRowContext(ctx, getJobByID, id)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get print job: %w", err)
	}
	return j, nil
}

func (s *JobStore) NextQueuedJob(ctx context.Context, printerID string, now time.Time) (*core.PrintJob, error) {
	row := s.conn.QueryRowContext(ctx, nextQueuedJob, printerID, now)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query next job: %w", err)
	}
	return j, nil
}

func (s *JobStore) ListJobsByRestaurant(ctx context.Context, restaurantID string) ([]*core.PrintJob, error) {
	rows, err := s.conn.QueryContext(ctx, listJobsByRestaurant, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list print jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

func (s *JobStore) StalePrintingJobs(ctx context.Context, before time.Time) ([]*core.PrintJob, error) {
	rows, err := s.conn.QueryContext(ctx, stalePrintingJobs, before)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

func (s *JobStore) SetJobPrinting(ctx context.Context, id string, at time.Time) (bool, error) {
	return s.conditional(ctx, setJobPrinting, at, id)
}

func (s *JobStore) SetJobCompleted(ctx context.Context, id string, at time.Time) (bool, error) {
	return s.conditional(ctx, setJobCompleted, at, id)
}

func (s *JobStore) SetJobRequeued(ctx context.Context, id string, attempts int, notBefore time.Time) (bool, error) {
	return s.conditional(ctx, setJobRequeued, attempts, notBefore, id)
}

func (s *JobStore) SetJobFailed(ctx context.Context, id string, attempts int, errMsg string, at time.Time) (bool, error) {
	return s.conditional(ctx, setJobFailed, attempts, errMsg, at, id)
}

func (s *JobStore) SetJobRetried(ctx context.Context, id string) (bool, error) {
	return s.conditional(ctx, setJobRetried, id)
}

func (s *JobStore) SetJobCancelled(ctx context.Context, id string) (bool, error) {
	return s.conditional(ctx, setJobCancelled, id)
}

func (s *JobStore) FailQueuedJobsForPrinter(ctx context.Context, printerID, errMsg string, at time.Time) (int, error) {
	result, err := s.conn.ExecContext(ctx, failQueuedJobsForPrinter, errMsg, at, printerID)
	if err != nil {
		return 0, fmt.Errorf("failed to fail queued jobs: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return int(affected), nil
}

func (s *JobStore) conditional(ctx context.Context, query string, args ...any) (bool, error) {
	result, err := s.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update print job: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected == 1, nil
}

func collectJobs(rows *sql.Rows) ([]*core.PrintJob, error) {
	var jobs []*core.PrintJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan print job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func scanJob(row rowScanner) (*core.PrintJob, error) {
	var j core.PrintJob
	var printType, status string
	var notBefore, startedAt, completedAt, failedAt sql.NullTime

	err := row.Scan(
		&j.ID, &j.OrderID, &j.PrinterID, &j.RestaurantID, &printType, &status,
		&j.Attempts, &j.MaxAttempts, &j.ErrorMessage, &notBefore,
		&j.CreatedAt, &startedAt, &completedAt, &failedAt)
	if err != nil {
		return nil, err
	}

	j.PrintType = core.PrintType(printType)
	j.Status = core.JobStatus(status)
	if notBefore.Valid {
		j.NotBefore = &notBefore.Time
	}
	if startedAt.Valid {
		j.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		j.CompletedAt = &completedAt.Time
	}
	if failedAt.Valid {
		j.FailedAt = &failedAt.Time
	}

	return &j, nil
}
