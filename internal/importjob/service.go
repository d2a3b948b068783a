// Package importjob runs previews and import executions for a tenant and
// tracks each execution as an import job.
package importjob

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadimport/internal/dedup"
	"github.com/sells-group/leadimport/internal/model"
	"github.com/sells-group/leadimport/internal/monitoring"
	"github.com/sells-group/leadimport/internal/resilience"
	"github.com/sells-group/leadimport/internal/store"
)

// ErrJobNotFound is returned when a job does not exist for the tenant.
var ErrJobNotFound = errors.New("importjob: job not found")

// Config tunes a Service.
type Config struct {
	Options         dedup.Options
	DefaultStrategy model.Strategy
	MaxRows         int
	Retry           resilience.RetryConfig
}

// PreviewRequest asks for dedup decisions without writing anything.
type PreviewRequest struct {
	TenantID string            `json:"tenant_id" validate:"required"`
	Rows     []model.ImportRow `json:"rows"`
}

// ExecuteRequest asks for rows to be imported.
type ExecuteRequest struct {
	TenantID string            `json:"tenant_id" validate:"required"`
	OwnerID  string            `json:"owner_id"`
	BatchID  string            `json:"batch_id"`
	Source   string            `json:"source" validate:"omitempty,oneof=csv xlsx extension mailbox api"`
	Strategy model.Strategy    `json:"strategy" validate:"required,oneof=skip update create_new"`
	Rows     []model.ImportRow `json:"rows"`
}

// Service orchestrates previews and executions against a Store.
type Service struct {
	store    store.Store
	opts     dedup.Options
	strategy model.Strategy
	maxRows  int
	retry    resilience.RetryConfig
	locks    *tenantLocks
}

// New creates a Service. It rejects whitelists naming protected or unknown
// fields.
func New(st store.Store, cfg Config) (*Service, error) {
	opts := cfg.Options.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, eris.Wrap(err, "importjob: options")
	}
	strategy := cfg.DefaultStrategy
	if strategy == "" {
		strategy = model.StrategySkip
	}
	if !strategy.Valid() {
		return nil, fmt.Errorf("%w: default %q", dedup.ErrInvalidStrategy, strategy)
	}
	retry := cfg.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("importjob", "execute")
	}
	return &Service{
		store:    st,
		opts:     opts,
		strategy: strategy,
		maxRows:  cfg.MaxRows,
		retry:    retry,
		locks:    newTenantLocks(),
	}, nil
}

// Preview classifies rows against the tenant's records and each other.
func (s *Service) Preview(ctx context.Context, req PreviewRequest) ([]model.DedupDecision, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if err := s.checkRows(len(req.Rows)); err != nil {
		return nil, err
	}

	start := time.Now()
	decisions, err := dedup.Preview(ctx, s.store, req.TenantID, req.Rows)
	if err != nil {
		return nil, err
	}
	monitoring.ObservePreview(decisions, time.Since(start))
	return decisions, nil
}

// Execute imports rows as a new job. The whole batch commits or rolls back
// together. The returned job carries the result, including the per-row audit
// trail. A failed execution still returns the job, marked failed.
func (s *Service) Execute(ctx context.Context, req ExecuteRequest) (*model.ImportJob, error) {
	if req.Strategy == "" {
		req.Strategy = s.strategy
	}
	if req.Source == "" {
		req.Source = model.SourceAPI
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if err := s.checkRows(len(req.Rows)); err != nil {
		return nil, err
	}
	if req.BatchID == "" {
		req.BatchID = uuid.NewString()
	}

	job := &model.ImportJob{
		ID:        uuid.NewString(),
		TenantID:  req.TenantID,
		OwnerID:   req.OwnerID,
		BatchID:   req.BatchID,
		Source:    req.Source,
		Strategy:  req.Strategy,
		Status:    model.JobPending,
		TotalRows: len(req.Rows),
	}
	if err := s.store.CreateImportJob(ctx, job); err != nil {
		return nil, eris.Wrap(err, "importjob: create job")
	}

	log := zap.L().With(
		zap.String("tenant_id", job.TenantID),
		zap.String("job_id", job.ID),
		zap.String("batch_id", job.BatchID),
	)

	unlock, err := s.locks.acquire(ctx, req.TenantID)
	if err != nil {
		return s.fail(ctx, job, err, time.Now(), log)
	}
	defer unlock()

	job.Status = model.JobRunning
	if err := s.store.UpdateImportJob(ctx, job); err != nil {
		return s.fail(ctx, job, eris.Wrap(err, "importjob: mark running"), time.Now(), log)
	}

	start := time.Now()
	params := dedup.ExecuteParams{
		TenantID:    job.TenantID,
		BatchID:     job.BatchID,
		OwnerID:     job.OwnerID,
		ImportJobID: job.ID,
		Source:      job.Source,
		Strategy:    job.Strategy,
	}

	var result *model.ImportResult
	err = resilience.Do(ctx, s.retry, func(ctx context.Context) error {
		return s.store.WithTenantTx(ctx, job.TenantID, func(tx store.Records) error {
			res, err := dedup.NewExecutor(tx, s.opts).Execute(ctx, params, req.Rows)
			if err != nil {
				return err
			}
			if err := tx.SaveImportRows(ctx, job.ID, res.DedupRows); err != nil {
				return err
			}
			result = res
			return nil
		})
	})
	if err != nil {
		return s.fail(ctx, job, err, start, log)
	}

	now := time.Now().UTC()
	job.Status = model.JobCompleted
	job.Result = result
	job.CompletedAt = &now
	if err := s.store.UpdateImportJob(ctx, job); err != nil {
		return nil, eris.Wrap(err, "importjob: mark completed")
	}
	monitoring.ObserveImport(job.Source, job.Strategy, job.Status, result, time.Since(start))

	log.Info("importjob: completed",
		zap.Int("rows", job.TotalRows),
		zap.Duration("elapsed", time.Since(start)),
	)
	return job, nil
}

// fail records err on the job. The job update ignores ctx cancellation so a
// cancelled execution is still marked failed.
func (s *Service) fail(ctx context.Context, job *model.ImportJob, err error, start time.Time, log *zap.Logger) (*model.ImportJob, error) {
	now := time.Now().UTC()
	job.Status = model.JobFailed
	job.Error = err.Error()
	job.CompletedAt = &now
	if uerr := s.store.UpdateImportJob(context.WithoutCancel(ctx), job); uerr != nil {
		log.Error("importjob: mark failed", zap.Error(uerr))
	}
	monitoring.ObserveImport(job.Source, job.Strategy, job.Status, nil, time.Since(start))
	log.Warn("importjob: failed", zap.Error(err))
	return job, err
}

// Job returns a job summary without its per-row audit trail.
func (s *Service) Job(ctx context.Context, tenantID, jobID string) (*model.ImportJob, error) {
	if tenantID == "" {
		return nil, dedup.ErrMissingTenant
	}
	job, err := s.store.GetImportJob(ctx, tenantID, jobID)
	if err != nil {
		return nil, eris.Wrapf(err, "importjob: get job %s", jobID)
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// JobRows returns the per-row audit trail of a job.
func (s *Service) JobRows(ctx context.Context, tenantID, jobID string) ([]model.DedupRow, error) {
	if _, err := s.Job(ctx, tenantID, jobID); err != nil {
		return nil, err
	}
	rows, err := s.store.ListImportRows(ctx, tenantID, jobID)
	if err != nil {
		return nil, eris.Wrapf(err, "importjob: list rows for job %s", jobID)
	}
	return rows, nil
}

func (s *Service) checkRows(n int) error {
	if s.maxRows > 0 && n > s.maxRows {
		return fmt.Errorf("%w: %d rows exceeds the limit of %d", ErrInvalidRequest, n, s.maxRows)
	}
	return nil
}
