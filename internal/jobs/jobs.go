// Package jobs runs ETL jobs against source systems: submission, a
// per-source FIFO execution model with bounded cross-source concurrency,
// cooperative cancellation, and recurring schedules.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/harborgrid/c360/internal/config"
	"github.com/harborgrid/c360/internal/model"
	"github.com/harborgrid/c360/internal/scan"
	"github.com/harborgrid/c360/internal/store"
)

// Orchestrator accepts job submissions and drives them to a terminal
// status. Jobs for one source system run strictly in submission order;
// jobs across systems run concurrently up to the configured limit.
type Orchestrator struct {
	store       store.Store
	adapters    map[model.JobType]TypeAdapter
	scanReg     *scan.Registry
	scanAdapter string
	cfg         config.JobsConfig

	mu      sync.Mutex
	queues  map[string]chan string // per source system id
	running map[string]context.CancelFunc
	group   *errgroup.Group
	ctx     context.Context
	cancel  context.CancelFunc
	slots   chan struct{}
	started bool
}

// New builds an Orchestrator with the standard job-type adapters
// registered. scanAdapter names the scan adapter jobs extract through.
func New(st store.Store, scanReg *scan.Registry, scanAdapter string, cfg config.JobsConfig) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 256
	}
	o := &Orchestrator{
		store:       st,
		adapters:    map[model.JobType]TypeAdapter{},
		scanReg:     scanReg,
		scanAdapter: scanAdapter,
		cfg:         cfg,
		queues:      map[string]chan string{},
		running:     map[string]context.CancelFunc{},
		slots:       make(chan struct{}, cfg.Concurrency),
	}
	o.RegisterAdapter(fullLoadAdapter{})
	o.RegisterAdapter(incrementalAdapter{})
	o.RegisterAdapter(refreshMetadataAdapter{})
	return o
}

// RegisterAdapter installs the adapter for its job type, replacing any
// previous one.
func (o *Orchestrator) RegisterAdapter(a TypeAdapter) {
	o.adapters[a.Type()] = a
}

// Start launches the execution workers. It must be called before Submit.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.started {
		return
	}
	o.ctx, o.cancel = context.WithCancel(ctx)
	o.group, _ = errgroup.WithContext(o.ctx)
	o.started = true
}

// Stop cancels the workers and waits for in-flight jobs to finish their
// current step.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.started {
		o.mu.Unlock()
		return
	}
	o.cancel()
	g := o.group
	o.mu.Unlock()
	g.Wait() //nolint:errcheck
}

// Submit validates and persists a new job, queues it behind earlier jobs
// of the same source system, and returns it in status queued.
func (o *Orchestrator) Submit(ctx context.Context, job *model.Job) error {
	o.mu.Lock()
	started := o.started
	o.mu.Unlock()
	if !started {
		return eris.New("jobs: orchestrator not started")
	}
	if job.Name == "" {
		return model.NewValidationError("name", "required")
	}
	if !job.Type.Valid() {
		return model.NewValidationError("type", "unknown job type "+string(job.Type))
	}
	src, err := o.store.GetSourceSystem(ctx, job.SourceSystemID)
	if err != nil {
		return err
	}
	if !src.Active {
		return model.NewValidationError("source_system_id", "source system "+src.Name+" is deactivated")
	}
	adapter, ok := o.adapters[job.Type]
	if !ok {
		return model.NewValidationError("type", "no adapter for job type "+string(job.Type))
	}

	job.Status = model.JobQueued
	if err := o.store.CreateJob(ctx, job); err != nil {
		return err
	}
	steps := make([]model.JobStep, len(adapter.Steps()))
	for i, spec := range adapter.Steps() {
		steps[i] = model.JobStep{Name: spec.Name, Order: i, Status: model.StepPending}
	}
	if err := o.store.CreateJobSteps(ctx, job.ID, steps); err != nil {
		o.abandon(ctx, job, "step creation failed: "+err.Error())
		return err
	}

	select {
	case o.queueFor(job.SourceSystemID) <- job.ID:
	default:
		o.abandon(ctx, job, "queue for source system is full")
		return eris.Errorf("jobs: queue for source %s is full", src.Name)
	}
	zap.L().Info("job submitted",
		zap.String("job_id", job.ID),
		zap.String("type", string(job.Type)),
		zap.String("source_system", src.Name))
	return nil
}

// abandon fails a persisted job that will never be picked up, so a row in
// status queued always means a worker will run it.
func (o *Orchestrator) abandon(ctx context.Context, job *model.Job, reason string) {
	ctx = context.WithoutCancel(ctx)
	ok, err := o.store.CompareAndSetJobStatus(ctx, job.ID, model.JobQueued, model.JobFailed)
	if err != nil || !ok {
		zap.L().Error("could not abandon unrunnable job",
			zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	if err := o.store.FinishJob(ctx, job.ID, model.JobFailed, "", reason); err != nil {
		zap.L().Error("could not finish abandoned job",
			zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	job.Status = model.JobFailed
	job.ErrorMessage = reason
}

// Cancel requests cancellation of a job. A queued job is cancelled before
// it starts; a running job stops after its current step. Cancelling a job
// already in a terminal state is AlreadyTerminal.
func (o *Orchestrator) Cancel(ctx context.Context, jobID string) error {
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return eris.Wrapf(model.ErrAlreadyTerminal, "job %s is %s", job.ID, job.Status)
	}

	if ok, err := o.store.CompareAndSetJobStatus(ctx, job.ID, model.JobQueued, model.JobCancelled); err != nil {
		return err
	} else if ok {
		if err := o.store.FinishJob(ctx, job.ID, model.JobCancelled, "", "cancelled before start"); err != nil {
			return err
		}
		zap.L().Info("queued job cancelled", zap.String("job_id", job.ID))
		return nil
	}

	o.mu.Lock()
	cancel, ok := o.running[job.ID]
	o.mu.Unlock()
	if ok {
		cancel()
		return nil
	}

	// Lost the race with completion.
	job, err = o.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return eris.Wrapf(model.ErrAlreadyTerminal, "job %s is %s", job.ID, job.Status)
	}
	return nil
}

// Stats reports job counts by status and type.
func (o *Orchestrator) Stats(ctx context.Context) (*model.JobStats, error) {
	return o.store.JobStats(ctx)
}

// queueFor returns the FIFO queue for a source system, spawning its worker
// on first use.
func (o *Orchestrator) queueFor(sourceSystemID string) chan string {
	o.mu.Lock()
	defer o.mu.Unlock()
	q, ok := o.queues[sourceSystemID]
	if ok {
		return q
	}
	q = make(chan string, o.cfg.QueueCapacity)
	o.queues[sourceSystemID] = q
	o.group.Go(func() error {
		o.sourceWorker(q)
		return nil
	})
	return q
}

// sourceWorker drains one source system's queue, one job at a time.
func (o *Orchestrator) sourceWorker(q chan string) {
	for {
		select {
		case <-o.ctx.Done():
			return
		case jobID := <-q:
			select {
			case <-o.ctx.Done():
				return
			case o.slots <- struct{}{}:
			}
			o.runJob(jobID)
			<-o.slots
		}
	}
}

func (o *Orchestrator) runJob(jobID string) {
	ctx := o.ctx
	ok, err := o.store.CompareAndSetJobStatus(ctx, jobID, model.JobQueued, model.JobRunning)
	if err != nil {
		zap.L().Error("job pickup failed", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	if !ok {
		// Cancelled while queued.
		return
	}

	jobCtx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.running[jobID] = cancel
	o.mu.Unlock()
	defer func() {
		cancel()
		o.mu.Lock()
		delete(o.running, jobID)
		o.mu.Unlock()
	}()

	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		zap.L().Error("job load failed", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	o.execute(jobCtx, job)
}

// execute runs the job's steps in order. Cancellation is honored between
// steps; a failing step either fails the job or, when the step is marked
// continue-on-error, lets the rest proceed.
func (o *Orchestrator) execute(jobCtx context.Context, job *model.Job) {
	// Terminal writes must land even when jobCtx is cancelled.
	ctx := context.WithoutCancel(jobCtx)
	log := zap.L().With(zap.String("job_id", job.ID), zap.String("type", string(job.Type)))

	rt, err := newRuntime(ctx, o, job)
	if err != nil {
		o.finish(ctx, job, model.JobFailed, "", err.Error())
		return
	}

	specs := o.adapters[job.Type].Steps()
	var (
		processed, failed int
		completedSteps    int
		failure           string
	)
	for i, spec := range specs {
		step := &job.Steps[i]
		if jobCtx.Err() != nil {
			o.skipRest(ctx, job, i)
			o.finish(ctx, job, model.JobCancelled, summary(processed, failed, completedSteps, len(specs)), "cancelled")
			return
		}
		step.Status = model.StepRunning
		o.updateStep(ctx, job, step)
		rt.logf("info", "step %s started", spec.Name)

		p, f, err := spec.Run(jobCtx, rt)
		step.RecordsProcessed = p
		step.RecordsFailed = f
		processed += p
		failed += f
		if err != nil {
			if jobCtx.Err() != nil {
				step.Status = model.StepFailed
				step.Error = "cancelled"
				o.updateStep(ctx, job, step)
				o.skipRest(ctx, job, i+1)
				o.finish(ctx, job, model.JobCancelled, summary(processed, failed, completedSteps, len(specs)), "cancelled")
				return
			}
			step.Status = model.StepFailed
			step.Error = err.Error()
			o.updateStep(ctx, job, step)
			rt.logf("error", "step %s failed: %v", spec.Name, err)
			failure = (&model.JobExecutionError{JobID: job.ID, Step: spec.Name, Err: err}).Error()
			if !spec.ContinueOnError {
				o.skipRest(ctx, job, i+1)
				break
			}
			continue
		}
		step.Status = model.StepCompleted
		o.updateStep(ctx, job, step)
		rt.logf("info", "step %s completed (%d records)", spec.Name, p)
		completedSteps++
	}

	status := model.JobCompleted
	if failure != "" {
		status = model.JobFailed
	}
	o.finish(ctx, job, status, summary(processed, failed, completedSteps, len(specs)), failure)
	log.Info("job finished",
		zap.String("status", string(status)),
		zap.Int("processed", processed),
		zap.Int("failed", failed))
}

func (o *Orchestrator) finish(ctx context.Context, job *model.Job, status model.JobStatus, sum, errMsg string) {
	if err := o.store.FinishJob(ctx, job.ID, status, sum, errMsg); err != nil {
		zap.L().Error("job finish write failed", zap.String("job_id", job.ID), zap.Error(err))
	}
}

func (o *Orchestrator) updateStep(ctx context.Context, job *model.Job, step *model.JobStep) {
	if err := o.store.UpdateJobStep(ctx, step); err != nil {
		zap.L().Error("step update failed",
			zap.String("job_id", job.ID),
			zap.String("step", step.Name),
			zap.Error(err))
	}
}

func (o *Orchestrator) skipRest(ctx context.Context, job *model.Job, from int) {
	for i := from; i < len(job.Steps); i++ {
		if job.Steps[i].Status == model.StepPending {
			job.Steps[i].Status = model.StepSkipped
			o.updateStep(ctx, job, &job.Steps[i])
		}
	}
}

func summary(processed, failed, completedSteps, totalSteps int) string {
	return fmt.Sprintf("%d/%d steps completed, %d records processed, %d failed",
		completedSteps, totalSteps, processed, failed)
}

// WaitForTerminal polls until the job reaches a terminal status or the
// context expires. Intended for tests and synchronous CLI flows.
func (o *Orchestrator) WaitForTerminal(ctx context.Context, jobID string, poll time.Duration) (*model.Job, error) {
	if poll <= 0 {
		poll = 25 * time.Millisecond
	}
	for {
		job, err := o.store.GetJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job.Status.Terminal() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, eris.Wrap(ctx.Err(), "jobs: wait")
		case <-time.After(poll):
		}
	}
}
