package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/content-engine/internal/db"
	"github.com/jonathan/content-engine/internal/types"
	"github.com/jonathan/content-engine/internal/webhook"
)

type fakeStore struct {
	mu         sync.Mutex
	jobs       map[uuid.UUID]*db.ScheduledJob
	runs       map[uuid.UUID]*db.JobRun
	finished   []db.JobRunResult
	outcomes   []db.JobOutcome
	deliveries []*db.WebhookDelivery
}

func newFakeStore(jobs ...*db.ScheduledJob) *fakeStore {
	s := &fakeStore{jobs: make(map[uuid.UUID]*db.ScheduledJob), runs: make(map[uuid.UUID]*db.JobRun)}
	for _, j := range jobs {
		cp := *j
		s.jobs[j.ID] = &cp
	}
	return s
}

func (s *fakeStore) ListActiveJobs(context.Context) ([]db.ScheduledJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.ScheduledJob
	for _, j := range s.jobs {
		if j.Active {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (s *fakeStore) GetJobByID(_ context.Context, id uuid.UUID) (*db.ScheduledJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	cp := *j
	return &cp, nil
}

func (s *fakeStore) CreateJobRun(_ context.Context, jobID, userID uuid.UUID, trigger string) (*db.JobRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run := &db.JobRun{ID: uuid.New(), JobID: jobID, UserID: userID, Trigger: trigger, Status: db.RunStatusRunning, StartedAt: time.Now()}
	s.runs[run.ID] = run
	return run, nil
}

func (s *fakeStore) FinishJobRun(_ context.Context, id uuid.UUID, result db.JobRunResult) (*db.JobRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run := s.runs[id]
	s.finished = append(s.finished, result)
	run.Status = result.Status
	run.TotalTasks = result.TotalTasks
	run.Succeeded = result.Succeeded
	run.Failed = result.Failed
	run.SkippedNiches = result.SkippedNiches
	if result.ErrorMessage != "" {
		msg := result.ErrorMessage
		run.ErrorMessage = &msg
	}
	now := time.Now()
	run.CompletedAt = &now
	return run, nil
}

func (s *fakeStore) RecordJobOutcome(_ context.Context, id uuid.UUID, outcome db.JobOutcome) (*db.ScheduledJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, outcome)
	j, ok := s.jobs[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	ranAt := outcome.RanAt
	j.LastRunAt = &ranAt
	j.NextRunAt = outcome.NextRunAt
	if outcome.Failed {
		j.ConsecutiveFailures++
	} else {
		j.ConsecutiveFailures = 0
	}
	if outcome.MaxConsecutiveFailures > 0 && j.ConsecutiveFailures >= outcome.MaxConsecutiveFailures {
		j.Active = false
	}
	cp := *j
	return &cp, nil
}

func (s *fakeStore) CreateWebhookDelivery(_ context.Context, d *db.WebhookDelivery) (*db.WebhookDelivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *d
	cp.ID = uuid.New()
	s.deliveries = append(s.deliveries, &cp)
	return &cp, nil
}

type fakeProducts map[string][]string

func (f fakeProducts) TopProducts(_ context.Context, niche string, n int) ([]string, error) {
	if niche == "broken" {
		return nil, errors.New("trend store down")
	}
	products := f[niche]
	if len(products) > n {
		products = products[:n]
	}
	return products, nil
}

type fakeGenerator struct {
	mu       sync.Mutex
	requests []types.GenerateRequest
	failFor  map[string]bool
}

func (f *fakeGenerator) GenerateForRun(_ context.Context, userID, runID uuid.UUID, req *types.GenerateRequest) (*db.ContentGeneration, error) {
	f.mu.Lock()
	f.requests = append(f.requests, *req)
	f.mu.Unlock()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if f.failFor[req.ProductName] {
		return nil, fmt.Errorf("model failed for %s", req.ProductName)
	}
	return &db.ContentGeneration{
		ID:           uuid.New(),
		UserID:       userID,
		JobRunID:     &runID,
		Niche:        string(req.Niche),
		ProductName:  req.ProductName,
		TemplateType: string(req.TemplateType),
		Tone:         string(req.Tone),
	}, nil
}

type fakeWebhooks struct {
	mu     sync.Mutex
	events []webhook.Event
	target webhook.Target
	err    error
}

func (f *fakeWebhooks) Deliver(_ context.Context, target webhook.Target, event webhook.Event) (webhook.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	f.target = target
	res := webhook.Result{DeliveryID: event.ID, Attempts: 1, StatusCode: 200, Duration: 5 * time.Millisecond}
	if f.err != nil {
		res.StatusCode = 500
		res.Attempts = 3
	}
	return res, f.err
}

type fakeObserver struct {
	mu        sync.Mutex
	runs      []string
	webhooks  []bool
	scheduled int
	running   int
}

func (f *fakeObserver) ObserveJobRun(trigger, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, trigger+":"+status)
}

func (f *fakeObserver) ObserveWebhook(success bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.webhooks = append(f.webhooks, success)
}

func (f *fakeObserver) SetScheduledJobs(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled = n
}

func (f *fakeObserver) JobStarted() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running++
}

func (f *fakeObserver) JobFinished() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running--
}

func testJob() *db.ScheduledJob {
	return &db.ScheduledJob{
		ID:               uuid.New(),
		UserID:           uuid.New(),
		Name:             "daily beauty + tech",
		CronExpression:   "0 9 * * *",
		Timezone:         "UTC",
		Niches:           db.StringArray{"beauty", "tech"},
		ProductsPerNiche: 2,
		TemplateTypes:    db.StringArray{"product_review", "listicle"},
		Tones:            db.StringArray{"friendly", "humorous", "educational"},
		Platforms:        db.StringArray{"tiktok", "instagram"},
		Spartan:          true,
		Active:           true,
	}
}
