package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/content-engine/internal/db"
	"github.com/jonathan/content-engine/internal/generation"
	"github.com/jonathan/content-engine/internal/logging"
	"github.com/jonathan/content-engine/internal/types"
	"github.com/jonathan/content-engine/internal/webhook"
)

// Progress event types.
const (
	EventStarted      = "started"
	EventNicheSkipped = "niche_skipped"
	EventPlanned      = "planned"
	EventTaskDone     = "task_completed"
	EventTaskFailed   = "task_failed"
	EventWebhook      = "webhook"
	EventCompleted    = "completed"
)

const defaultConcurrency = 4

// RunStore persists runs and their side effects.
type RunStore interface {
	CreateJobRun(ctx context.Context, jobID, userID uuid.UUID, trigger string) (*db.JobRun, error)
	FinishJobRun(ctx context.Context, id uuid.UUID, result db.JobRunResult) (*db.JobRun, error)
	RecordJobOutcome(ctx context.Context, id uuid.UUID, outcome db.JobOutcome) (*db.ScheduledJob, error)
	CreateWebhookDelivery(ctx context.Context, d *db.WebhookDelivery) (*db.WebhookDelivery, error)
}

// ProductSource supplies the products to write about in a niche.
type ProductSource interface {
	TopProducts(ctx context.Context, niche string, n int) ([]string, error)
}

// ContentGenerator generates and stores one piece of content for a run.
type ContentGenerator interface {
	GenerateForRun(ctx context.Context, userID, runID uuid.UUID, req *types.GenerateRequest) (*db.ContentGeneration, error)
}

// WebhookSender delivers run notifications.
type WebhookSender interface {
	Deliver(ctx context.Context, target webhook.Target, event webhook.Event) (webhook.Result, error)
}

// RunObserver records run outcomes.
type RunObserver interface {
	ObserveJobRun(trigger, status string)
	ObserveWebhook(success bool)
}

// ProgressEvent reports run progress to a live listener.
type ProgressEvent struct {
	Type         string `json:"type"`
	RunID        string `json:"run_id"`
	Niche        string `json:"niche,omitempty"`
	Product      string `json:"product,omitempty"`
	GenerationID string `json:"generation_id,omitempty"`
	Error        string `json:"error,omitempty"`
	Status       string `json:"status,omitempty"`
	Completed    int    `json:"completed"`
	Total        int    `json:"total"`
}

// ProgressFunc receives progress events. Calls are serialised.
type ProgressFunc func(ProgressEvent)

// Task is one product to generate content for.
type Task struct {
	Niche        types.Niche
	Product      string
	TemplateType types.TemplateType
	Tone         types.Tone
}

// TaskError records a failed task.
type TaskError struct {
	Task  Task   `json:"task"`
	Error string `json:"error"`
}

// RunReport is the outcome of one job run.
type RunReport struct {
	Run         *db.JobRun             `json:"run"`
	Job         *db.ScheduledJob       `json:"job,omitempty"`
	Generations []db.ContentGeneration `json:"generations"`
	Failures    []TaskError            `json:"failures,omitempty"`
	Delivery    *db.WebhookDelivery    `json:"delivery,omitempty"`
}

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	Concurrency            int
	MaxConsecutiveFailures int
	Webhooks               WebhookSender
	Observer               RunObserver
	Logger                 logging.Logger
}

// Runner executes a job run: it plans tasks per niche, generates content
// with bounded concurrency, notifies the webhook and records the outcome.
type Runner struct {
	store       RunStore
	products    ProductSource
	gen         ContentGenerator
	webhooks    WebhookSender
	observer    RunObserver
	concurrency int
	maxFailures int
	logger      logging.Logger
	now         func() time.Time
}

// NewRunner creates a Runner.
func NewRunner(store RunStore, products ProductSource, gen ContentGenerator, opts RunnerOptions) *Runner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &Runner{
		store:       store,
		products:    products,
		gen:         gen,
		webhooks:    opts.Webhooks,
		observer:    opts.Observer,
		concurrency: opts.Concurrency,
		maxFailures: opts.MaxConsecutiveFailures,
		logger:      opts.Logger,
		now:         time.Now,
	}
}

// PlanTasks builds the task list for a niche's products. Template types and
// tones rotate round-robin, continuing from offset so rotation spans niches.
func PlanTasks(niche types.Niche, products []string, templates []types.TemplateType, tones []types.Tone, offset int) []Task {
	if len(templates) == 0 || len(tones) == 0 {
		return nil
	}
	tasks := make([]Task, 0, len(products))
	for i, product := range products {
		n := offset + i
		tasks = append(tasks, Task{
			Niche:        niche,
			Product:      generation.TruncateWords(product, types.MaxProductNameLen),
			TemplateType: templates[n%len(templates)],
			Tone:         tones[n%len(tones)],
		})
	}
	return tasks
}

// RunStatus derives the final status from task counts.
func RunStatus(total, failed int) string {
	switch {
	case total == 0 || failed >= total:
		return db.RunStatusFailed
	case failed == 0:
		return db.RunStatusCompleted
	default:
		return db.RunStatusPartial
	}
}

type progress struct {
	mu        sync.Mutex
	fn        ProgressFunc
	runID     string
	completed int
	total     int
}

func (p *progress) emit(ev ProgressEvent, taskDone bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if taskDone {
		p.completed++
	}
	if p.fn == nil {
		return
	}
	ev.RunID = p.runID
	ev.Completed = p.completed
	ev.Total = p.total
	p.fn(ev)
}

// Run executes job once. onProgress may be nil. The returned error is set
// only when the run could not be recorded at all; task failures are reported
// in the run.
func (r *Runner) Run(ctx context.Context, job *db.ScheduledJob, trigger string, onProgress ProgressFunc) (*RunReport, error) {
	run, err := r.store.CreateJobRun(ctx, job.ID, job.UserID, trigger)
	if err != nil {
		return nil, fmt.Errorf("create job run: %w", err)
	}

	log := r.logger.With(
		logging.String("job_id", job.ID.String()),
		logging.String("run_id", run.ID.String()),
		logging.String("trigger", trigger),
	)
	log.Info("job run started", logging.Strings("niches", job.Niches))

	prog := &progress{fn: onProgress, runID: run.ID.String()}
	prog.emit(ProgressEvent{Type: EventStarted}, false)

	templates := make([]types.TemplateType, len(job.TemplateTypes))
	for i, t := range job.TemplateTypes {
		templates[i] = types.TemplateType(t)
	}
	tones := make([]types.Tone, len(job.Tones))
	for i, t := range job.Tones {
		tones[i] = types.Tone(t)
	}
	platforms := make([]types.Platform, len(job.Platforms))
	for i, p := range job.Platforms {
		platforms[i] = types.Platform(p)
	}

	var tasks []Task
	var skipped []string
	for _, niche := range job.Niches {
		products, err := r.products.TopProducts(ctx, niche, job.ProductsPerNiche)
		if err != nil || len(products) == 0 {
			reason := "no trend data"
			if err != nil {
				reason = err.Error()
			}
			log.Warn("skipping niche", logging.String("niche", niche), logging.String("reason", reason))
			skipped = append(skipped, niche)
			prog.emit(ProgressEvent{Type: EventNicheSkipped, Niche: niche, Error: reason}, false)
			continue
		}
		tasks = append(tasks, PlanTasks(types.Niche(niche), products, templates, tones, len(tasks))...)
	}

	prog.total = len(tasks)
	prog.emit(ProgressEvent{Type: EventPlanned}, false)

	report := &RunReport{Generations: make([]db.ContentGeneration, 0, len(tasks))}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for _, task := range tasks {
		g.Go(func() error {
			req := &types.GenerateRequest{
				Niche:           task.Niche,
				ProductName:     task.Product,
				TemplateType:    task.TemplateType,
				Tone:            task.Tone,
				Platforms:       platforms,
				Provider:        job.PreferredProvider,
				Spartan:         job.Spartan,
				UseTrendContext: true,
			}
			record, err := r.gen.GenerateForRun(ctx, job.UserID, run.ID, req)

			mu.Lock()
			if err != nil {
				report.Failures = append(report.Failures, TaskError{Task: task, Error: err.Error()})
			} else {
				report.Generations = append(report.Generations, *record)
			}
			mu.Unlock()

			if err != nil {
				log.Warn("generation task failed",
					logging.String("niche", string(task.Niche)),
					logging.String("product", task.Product),
					logging.Error(err),
				)
				prog.emit(ProgressEvent{Type: EventTaskFailed, Niche: string(task.Niche), Product: task.Product, Error: err.Error()}, true)
				return nil
			}
			prog.emit(ProgressEvent{
				Type:         EventTaskDone,
				Niche:        string(task.Niche),
				Product:      task.Product,
				GenerationID: record.ID.String(),
			}, true)
			return nil
		})
	}
	_ = g.Wait()

	// Finalise even if the caller went away mid-run.
	finalCtx := context.WithoutCancel(ctx)

	status := RunStatus(len(tasks), len(report.Failures))
	result := db.JobRunResult{
		Status:        status,
		TotalTasks:    len(tasks),
		Succeeded:     len(report.Generations),
		Failed:        len(report.Failures),
		SkippedNiches: skipped,
	}
	switch {
	case len(tasks) == 0:
		result.ErrorMessage = "no trend data for any niche"
	case status == db.RunStatusFailed && len(report.Failures) > 0:
		result.ErrorMessage = report.Failures[0].Error
	}

	if job.WebhookURL != "" {
		report.Delivery = r.notify(finalCtx, job, run, result, report.Generations, log)
		if report.Delivery != nil {
			prog.emit(ProgressEvent{Type: EventWebhook, Status: strconv.Itoa(report.Delivery.StatusCode), Error: report.Delivery.Error}, false)
		}
	}

	finished, err := r.store.FinishJobRun(finalCtx, run.ID, result)
	if err != nil {
		log.Error("failed to finalise job run", logging.Error(err))
		finished = run
		finished.Status = status
	}
	report.Run = finished

	ranAt := r.now()
	outcome := db.JobOutcome{
		RanAt:                  ranAt,
		Failed:                 status == db.RunStatusFailed,
		MaxConsecutiveFailures: r.maxFailures,
	}
	if next, err := NextRun(job.CronExpression, job.Timezone, ranAt); err == nil {
		outcome.NextRunAt = &next
	}
	updated, err := r.store.RecordJobOutcome(finalCtx, job.ID, outcome)
	if err != nil {
		log.Error("failed to record job outcome", logging.Error(err))
	} else {
		report.Job = updated
		if updated != nil && !updated.Active && job.Active {
			log.Warn("job deactivated after repeated failures",
				logging.Int("consecutive_failures", updated.ConsecutiveFailures))
		}
	}

	if r.observer != nil {
		r.observer.ObserveJobRun(trigger, status)
	}
	prog.emit(ProgressEvent{Type: EventCompleted, Status: status}, false)

	log.Info("job run finished",
		logging.String("status", status),
		logging.Int("total", result.TotalTasks),
		logging.Int("succeeded", result.Succeeded),
		logging.Int("failed", result.Failed),
		logging.Strings("skipped_niches", skipped),
	)
	return report, nil
}

// completedPayload is the data of a bulk_job.completed event.
type completedPayload struct {
	JobID         string                 `json:"job_id"`
	JobName       string                 `json:"job_name"`
	RunID         string                 `json:"run_id"`
	Status        string                 `json:"status"`
	TotalTasks    int                    `json:"total_tasks"`
	Succeeded     int                    `json:"succeeded"`
	Failed        int                    `json:"failed"`
	SkippedNiches []string               `json:"skipped_niches"`
	Items         []db.ContentGeneration `json:"items"`
}

func (r *Runner) notify(ctx context.Context, job *db.ScheduledJob, run *db.JobRun, result db.JobRunResult, items []db.ContentGeneration, log logging.Logger) *db.WebhookDelivery {
	if r.webhooks == nil {
		return nil
	}
	skipped := result.SkippedNiches
	if skipped == nil {
		skipped = []string{}
	}
	event := webhook.NewEvent(webhook.EventBulkJobCompleted, completedPayload{
		JobID:         job.ID.String(),
		JobName:       job.Name,
		RunID:         run.ID.String(),
		Status:        result.Status,
		TotalTasks:    result.TotalTasks,
		Succeeded:     result.Succeeded,
		Failed:        result.Failed,
		SkippedNiches: skipped,
		Items:         items,
	})

	res, err := r.webhooks.Deliver(ctx, webhook.Target{URL: job.WebhookURL, Secret: job.WebhookSecret}, event)
	if r.observer != nil {
		r.observer.ObserveWebhook(err == nil)
	}

	deliveryID, parseErr := uuid.Parse(res.DeliveryID)
	if parseErr != nil {
		deliveryID = uuid.New()
	}
	delivery := &db.WebhookDelivery{
		RunID:      run.ID,
		JobID:      job.ID,
		DeliveryID: deliveryID,
		URL:        job.WebhookURL,
		Event:      webhook.EventBulkJobCompleted,
		StatusCode: res.StatusCode,
		Attempts:   res.Attempts,
		Success:    err == nil,
		DurationMs: res.Duration.Milliseconds(),
	}
	if err != nil {
		delivery.Error = err.Error()
	}

	stored, storeErr := r.store.CreateWebhookDelivery(ctx, delivery)
	if storeErr != nil {
		log.Error("failed to record webhook delivery", logging.Error(storeErr))
		return delivery
	}
	return stored
}
