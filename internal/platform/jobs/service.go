package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"hrpayroll/internal/platform/querier"
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type Run struct {
	ID          string          `json:"id"`
	JobType     string          `json:"jobType"`
	Status      string          `json:"status"`
	Details     json.RawMessage `json:"details,omitempty"`
	Error       string          `json:"error,omitempty"`
	StartedAt   time.Time       `json:"startedAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

// Service records units of work in job_runs. Bookkeeping failures are logged
// and never fail the job itself.
type Service struct {
	DB querier.Querier
}

func New(db querier.Querier) *Service {
	return &Service{DB: db}
}

// RunNow executes run synchronously and records its outcome.
func (s *Service) RunNow(ctx context.Context, jobType string, run func(context.Context) (any, error)) (any, error) {
	runID := ""
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO job_runs (job_type, status)
    VALUES ($1,$2)
    RETURNING id
  `, jobType, StatusRunning).Scan(&runID); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("jobType", jobType).Msg("job run insert failed")
	}

	details, err := run(ctx)
	status := StatusCompleted
	errText := ""
	if err != nil {
		status = StatusFailed
		errText = err.Error()
	}
	detailsJSON, marshalErr := json.Marshal(summarize(details))
	if marshalErr != nil {
		zerolog.Ctx(ctx).Warn().Err(marshalErr).Msg("job details marshal failed")
		detailsJSON = []byte("{}")
	}
	if runID != "" {
		if _, updErr := s.DB.Exec(ctx, `
      UPDATE job_runs
      SET status = $1, details_json = $2, error = NULLIF($3, ''), completed_at = now()
      WHERE id = $4
    `, status, detailsJSON, errText, runID); updErr != nil {
			zerolog.Ctx(ctx).Warn().Err(updErr).Str("runId", runID).Msg("job run update failed")
		}
	}
	return details, err
}

func (s *Service) ListRuns(ctx context.Context, jobType string, limit int) ([]Run, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, job_type, status, COALESCE(details_json, '{}'::jsonb), COALESCE(error, ''), started_at, completed_at
    FROM job_runs
    WHERE job_type = $1
    ORDER BY started_at DESC
    LIMIT $2
  `, jobType, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var run Run
		var details []byte
		if err := rows.Scan(&run.ID, &run.JobType, &run.Status, &details, &run.Error, &run.StartedAt, &run.CompletedAt); err != nil {
			return nil, err
		}
		run.Details = details
		out = append(out, run)
	}
	return out, rows.Err()
}

// Summarizer lets a job result choose what is stored in details_json.
type Summarizer interface {
	Summary() any
}

func summarize(details any) any {
	if s, ok := details.(Summarizer); ok {
		return s.Summary()
	}
	return details
}
