package filing

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gstfiling/backend/internal/domain/filing"
	"github.com/gstfiling/backend/internal/infrastructure/jobstore"
)

const (
	defaultJobTimeout = 10 * time.Minute

	// terminalWriteTimeout bounds the store write that records a job's
	// final state. It is independent of the job's own deadline.
	terminalWriteTimeout = 10 * time.Second
)

// Coordinator runs report generation as background jobs and tracks their
// lifecycle in a job store. A job moves queued -> processing -> completed
// or failed; there is no cancellation. The completed record always
// carries the serialized payload: result and status are written in a
// single store update, so a poller can never observe a completed job
// without its payload.
type Coordinator struct {
	svc     *Service
	store   jobstore.Store
	logger  *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewCoordinator creates a new Coordinator.
func NewCoordinator(svc *Service, store jobstore.Store, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		svc:     svc,
		store:   store,
		logger:  logger,
		timeout: defaultJobTimeout,
	}
}

// Start validates the request, records a queued job and launches its run
// in the background. It returns the job ID immediately; progress is
// observed through Status. Validation failures surface here, before a
// job record exists.
func (c *Coordinator) Start(ctx context.Context, req GenerateRequest) (string, error) {
	if !req.Kind.IsValid() {
		return "", filing.ErrInvalidReportKind
	}
	if req.Month < 1 || req.Month > 12 || req.Year < 1 {
		return "", filing.ErrInvalidPeriod
	}
	if req.Token == "" {
		return "", filing.ErrMissingCredential
	}

	now := time.Now()
	job := &jobstore.Job{
		ID:        uuid.New().String(),
		Kind:      string(req.Kind),
		Month:     req.Month,
		Year:      req.Year,
		Status:    jobstore.StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.store.Put(ctx, job); err != nil {
		return "", err
	}

	c.wg.Add(1)
	go c.run(job, req)

	c.logger.Info("report job queued",
		zap.String("job_id", job.ID),
		zap.String("kind", string(req.Kind)),
		zap.Int("month", req.Month),
		zap.Int("year", req.Year),
	)

	return job.ID, nil
}

// Status returns the current job record.
func (c *Coordinator) Status(ctx context.Context, id string) (*jobstore.Job, error) {
	job, err := c.store.Get(ctx, id)
	if errors.Is(err, jobstore.ErrNotFound) {
		return nil, filing.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Wait blocks until every launched job has finished. Used on shutdown
// and in tests.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// run executes one job to completion. It detaches from the request
// context; the HTTP response has long since been written by the time
// the job finishes.
func (c *Coordinator) run(job *jobstore.Job, req GenerateRequest) {
	defer c.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	c.transition(ctx, job, jobstore.StatusProcessing)

	payload, err := c.svc.Generate(ctx, req)
	if err != nil {
		job.Error = err.Error()
		c.finish(job, jobstore.StatusFailed)
		c.logger.Error("report job failed",
			zap.String("job_id", job.ID),
			zap.Error(err),
		)
		return
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		job.Error = err.Error()
		c.finish(job, jobstore.StatusFailed)
		return
	}

	job.Result = raw
	c.finish(job, jobstore.StatusCompleted)
	c.logger.Info("report job completed", zap.String("job_id", job.ID))
}

// finish records a terminal state on a fresh context. The job's own
// context may already be expired (it is when the job timed out), and
// the failed/completed record must still reach the store, or the job
// would sit in processing until TTL eviction.
func (c *Coordinator) finish(job *jobstore.Job, status jobstore.Status) {
	ctx, cancel := context.WithTimeout(context.Background(), terminalWriteTimeout)
	defer cancel()
	c.transition(ctx, job, status)
}

func (c *Coordinator) transition(ctx context.Context, job *jobstore.Job, status jobstore.Status) {
	job.Status = status
	job.UpdatedAt = time.Now()
	if err := c.store.Put(ctx, job); err != nil {
		c.logger.Error("job store update failed",
			zap.String("job_id", job.ID),
			zap.String("status", string(status)),
			zap.Error(err),
		)
	}
}
