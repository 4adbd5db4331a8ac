package server

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/content-engine/internal/config"
	"github.com/jonathan/content-engine/internal/db"
	"github.com/jonathan/content-engine/internal/scheduler"
	"github.com/jonathan/content-engine/internal/server/ratelimit"
	"github.com/jonathan/content-engine/internal/trends"
	"github.com/jonathan/content-engine/internal/types"
)

var testPasswords = &config.PasswordConfig{BcryptCost: 4}

type fakeUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*db.User
	err   error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: make(map[uuid.UUID]*db.User)}
}

func (f *fakeUsers) add(name, email, password string) *db.User {
	hash, err := testPasswords.HashPassword(password)
	if err != nil {
		panic(err)
	}
	u := &db.User{ID: uuid.New(), Name: name, Email: email, PasswordHash: hash, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	f.mu.Lock()
	f.users[u.ID] = u
	f.mu.Unlock()
	return u
}

func (f *fakeUsers) CheckEmailExists(_ context.Context, email string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	u, _ := f.GetUserByEmail(context.Background(), email)
	return u != nil, nil
}

func (f *fakeUsers) CreateUser(_ context.Context, name, email, workspace, passwordHash string) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := &db.User{ID: uuid.New(), Name: name, Email: strings.ToLower(email), Workspace: workspace, PasswordHash: passwordHash, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	f.users[u.ID] = u
	return u.ID, nil
}

func (f *fakeUsers) GetUser(_ context.Context, id uuid.UUID) (*db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeUsers) GetUserByEmail(_ context.Context, email string) (*db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return db.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

type fakeGenerations struct {
	mu      sync.Mutex
	records map[uuid.UUID]*db.ContentGeneration
	filters []db.GenerationFilters
	err     error
}

func newFakeGenerations() *fakeGenerations {
	return &fakeGenerations{records: make(map[uuid.UUID]*db.ContentGeneration)}
}

func (f *fakeGenerations) Generate(_ context.Context, userID uuid.UUID, req *types.GenerateRequest) (*db.ContentGeneration, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := &db.ContentGeneration{
		ID:           uuid.New(),
		UserID:       userID,
		Niche:        string(req.Niche),
		ProductName:  req.ProductName,
		TemplateType: string(req.TemplateType),
		Tone:         string(req.Tone),
		Spartan:      req.Spartan,
		Provider:     "gemini",
		Content:      types.GeneratedContent{Hook: "Stop scrolling", Body: "It works.", CallToAction: "Shop now"},
	}
	f.records[rec.ID] = rec
	return rec, nil
}

func (f *fakeGenerations) Get(_ context.Context, userID, id uuid.UUID) (*db.ContentGeneration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.records[id]; ok && rec.UserID == userID {
		return rec, nil
	}
	return nil, nil
}

func (f *fakeGenerations) List(_ context.Context, userID uuid.UUID, filters db.GenerationFilters) ([]db.ContentGeneration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filters)
	var out []db.ContentGeneration
	for _, rec := range f.records {
		if rec.UserID == userID && (filters.Niche == "" || rec.Niche == filters.Niche) {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (f *fakeGenerations) Delete(_ context.Context, userID, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.records[id]; ok && rec.UserID == userID {
		delete(f.records, id)
		return nil
	}
	return db.ErrNotFound
}

func (f *fakeGenerations) Rate(_ context.Context, userID, id uuid.UUID, rating int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.records[id]; ok && rec.UserID == userID {
		rec.Rating = &rating
		return nil
	}
	return db.ErrNotFound
}

func (f *fakeGenerations) Stats(_ context.Context, userID uuid.UUID) (*db.GenerationStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &db.GenerationStats{ByProvider: map[string]int{}, ByNiche: []db.NicheStats{}}
	for _, rec := range f.records {
		if rec.UserID == userID {
			stats.Total++
			stats.ByProvider[rec.Provider]++
		}
	}
	return stats, nil
}

type fakeJobs struct {
	mu         sync.Mutex
	jobs       map[uuid.UUID]*db.ScheduledJob
	runs       map[uuid.UUID]*db.JobRun
	deliveries map[uuid.UUID][]db.WebhookDelivery
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{
		jobs:       make(map[uuid.UUID]*db.ScheduledJob),
		runs:       make(map[uuid.UUID]*db.JobRun),
		deliveries: make(map[uuid.UUID][]db.WebhookDelivery),
	}
}

func jobFromInput(job *db.ScheduledJob, in *db.JobInput) {
	job.Name = in.Name
	job.CronExpression = in.CronExpression
	job.Timezone = in.Timezone
	job.Niches = in.Niches
	job.ProductsPerNiche = in.ProductsPerNiche
	job.TemplateTypes = in.TemplateTypes
	job.Tones = in.Tones
	job.Platforms = in.Platforms
	job.PreferredProvider = in.PreferredProvider
	job.Spartan = in.Spartan
	job.WebhookURL = in.WebhookURL
	if in.WebhookSecret != "" {
		job.WebhookSecret = in.WebhookSecret
	}
	job.Active = in.Active
	job.NextRunAt = in.NextRunAt
}

func (f *fakeJobs) CreateJob(_ context.Context, userID uuid.UUID, in *db.JobInput) (*db.ScheduledJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job := &db.ScheduledJob{ID: uuid.New(), UserID: userID, CreatedAt: time.Now()}
	jobFromInput(job, in)
	f.jobs[job.ID] = job
	cp := *job
	return &cp, nil
}

func (f *fakeJobs) GetJob(_ context.Context, userID, id uuid.UUID) (*db.ScheduledJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if job, ok := f.jobs[id]; ok && job.UserID == userID {
		cp := *job
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeJobs) ListJobs(_ context.Context, userID uuid.UUID) ([]db.ScheduledJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []db.ScheduledJob
	for _, job := range f.jobs {
		if job.UserID == userID {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (f *fakeJobs) UpdateJob(_ context.Context, userID, id uuid.UUID, in *db.JobInput) (*db.ScheduledJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok || job.UserID != userID {
		return nil, db.ErrNotFound
	}
	jobFromInput(job, in)
	cp := *job
	return &cp, nil
}

func (f *fakeJobs) SetJobActive(_ context.Context, userID, id uuid.UUID, active bool, next *time.Time) (*db.ScheduledJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok || job.UserID != userID {
		return nil, db.ErrNotFound
	}
	job.Active = active
	job.NextRunAt = next
	if active {
		job.ConsecutiveFailures = 0
	}
	cp := *job
	return &cp, nil
}

func (f *fakeJobs) DeleteJob(_ context.Context, userID, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok || job.UserID != userID {
		return db.ErrNotFound
	}
	delete(f.jobs, id)
	return nil
}

func (f *fakeJobs) ListJobRuns(_ context.Context, userID, jobID uuid.UUID, _ int) ([]db.JobRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []db.JobRun
	for _, run := range f.runs {
		if run.UserID == userID && run.JobID == jobID {
			out = append(out, *run)
		}
	}
	return out, nil
}

func (f *fakeJobs) GetJobRun(_ context.Context, userID, id uuid.UUID) (*db.JobRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if run, ok := f.runs[id]; ok && run.UserID == userID {
		cp := *run
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeJobs) ListWebhookDeliveries(_ context.Context, _ uuid.UUID, runID uuid.UUID) ([]db.WebhookDelivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deliveries[runID], nil
}

type fakeScheduler struct {
	mu       sync.Mutex
	reloaded []uuid.UUID
	removed  []uuid.UUID
	runErr   error
	runs     []uuid.UUID
}

func (f *fakeScheduler) Reload(_ context.Context, jobID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloaded = append(f.reloaded, jobID)
	return nil
}

func (f *fakeScheduler) Remove(jobID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, jobID)
}

func (f *fakeScheduler) RunNow(_ context.Context, jobID uuid.UUID, onProgress scheduler.ProgressFunc) (*scheduler.RunReport, error) {
	f.mu.Lock()
	f.runs = append(f.runs, jobID)
	f.mu.Unlock()
	if f.runErr != nil {
		return nil, f.runErr
	}
	runID := uuid.New()
	if onProgress != nil {
		onProgress(scheduler.ProgressEvent{Type: scheduler.EventStarted, RunID: runID.String()})
		onProgress(scheduler.ProgressEvent{Type: scheduler.EventTaskDone, RunID: runID.String(), Niche: "tech", Product: "Smart Ring", Completed: 1, Total: 1})
		onProgress(scheduler.ProgressEvent{Type: scheduler.EventCompleted, RunID: runID.String(), Status: db.RunStatusCompleted, Completed: 1, Total: 1})
	}
	return &scheduler.RunReport{
		Run:         &db.JobRun{ID: runID, JobID: jobID, Status: db.RunStatusCompleted, TotalTasks: 1, Succeeded: 1},
		Generations: []db.ContentGeneration{},
	}, nil
}

type fakeTrends struct {
	products map[string][]db.TrendingProduct
	err      error
}

func (f *fakeTrends) List(_ context.Context, niche string, limit int) ([]db.TrendingProduct, error) {
	if f.err != nil {
		return nil, f.err
	}
	products := f.products[niche]
	if limit > 0 && len(products) > limit {
		products = products[:limit]
	}
	return products, nil
}

func (f *fakeTrends) Refresh(_ context.Context, niche string) (*trends.RefreshResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &trends.RefreshResult{Niche: niche, Products: len(f.products[niche]), Sources: []string{"llm"}}, nil
}

type fakeIntelligence struct {
	snapshots map[string]*db.IntelligenceSnapshot
	buildErr  error
}

func (f *fakeIntelligence) Latest(_ context.Context, niche string) (*db.IntelligenceSnapshot, error) {
	return f.snapshots[niche], nil
}

func (f *fakeIntelligence) Build(_ context.Context, niche string) (*db.IntelligenceSnapshot, error) {
	if f.buildErr != nil {
		return nil, f.buildErr
	}
	snap := &db.IntelligenceSnapshot{ID: uuid.New(), Niche: niche, Summary: "Rings are up.", Keywords: db.StringArray{"ring"}}
	f.snapshots[niche] = snap
	return snap, nil
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

var errBoom = errors.New("boom")

// testEnv bundles a server with its fakes.
type testEnv struct {
	server       *Server
	users        *fakeUsers
	generations  *fakeGenerations
	jobs         *fakeJobs
	scheduler    *fakeScheduler
	trends       *fakeTrends
	intelligence *fakeIntelligence
}

func newTestEnv(cfgs ...func(*Config, *Deps)) *testEnv {
	env := &testEnv{
		users:        newFakeUsers(),
		generations:  newFakeGenerations(),
		jobs:         newFakeJobs(),
		scheduler:    &fakeScheduler{},
		trends:       &fakeTrends{products: map[string][]db.TrendingProduct{}},
		intelligence: &fakeIntelligence{snapshots: map[string]*db.IntelligenceSnapshot{}},
	}
	cfg := Config{Port: 8080, CORSOrigins: []string{"*"}, RateLimit: &ratelimit.Config{Enabled: false}}
	deps := Deps{
		Users:        env.users,
		Passwords:    testPasswords,
		JWT:          &config.JWTConfig{Secret: testJWTSecret, ExpirationHours: 1, Issuer: config.DefaultJWTIssuer},
		Generations:  env.generations,
		Jobs:         env.jobs,
		Scheduler:    env.scheduler,
		Trends:       env.trends,
		Intelligence: env.intelligence,
		Database:     fakePinger{},
		Providers:    []string{"gemini", "anthropic"},
	}
	for _, fn := range cfgs {
		fn(&cfg, &deps)
	}
	s, err := New(cfg, deps)
	if err != nil {
		panic(err)
	}
	env.server = s
	return env
}

// token issues a bearer token for userID.
func (e *testEnv) token(userID uuid.UUID) string {
	tok, _, err := e.server.jwtService.GenerateToken(userID)
	if err != nil {
		panic(err)
	}
	return tok
}
