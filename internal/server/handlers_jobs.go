package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/content-engine/internal/db"
	"github.com/jonathan/content-engine/internal/logging"
	"github.com/jonathan/content-engine/internal/scheduler"
	"github.com/jonathan/content-engine/internal/types"
)

// jobInput validates the schedule of req and converts it for storage.
// Inactive jobs get no next run.
func jobInput(req *types.JobRequest, now time.Time) (*db.JobInput, error) {
	tz := req.EffectiveTimezone()
	next, err := scheduler.NextRun(req.CronExpression, tz, now)
	if err != nil {
		return nil, err
	}

	in := &db.JobInput{
		Name:              req.Name,
		CronExpression:    req.CronExpression,
		Timezone:          tz,
		ProductsPerNiche:  req.ProductsPerNiche,
		PreferredProvider: req.PreferredProvider,
		Spartan:           req.Spartan,
		WebhookURL:        req.WebhookURL,
		WebhookSecret:     req.WebhookSecret,
		Active:            req.IsActive(),
	}
	for _, n := range req.Niches {
		in.Niches = append(in.Niches, string(n))
	}
	for _, t := range req.TemplateTypes {
		in.TemplateTypes = append(in.TemplateTypes, string(t))
	}
	for _, t := range req.Tones {
		in.Tones = append(in.Tones, string(t))
	}
	for _, p := range req.Platforms {
		in.Platforms = append(in.Platforms, string(p))
	}
	if in.Active {
		in.NextRunAt = &next
	}
	return in, nil
}

// syncSchedule refreshes the scheduler's view of a job. Failures are logged
// since the periodic reload repairs them.
func (s *Server) syncSchedule(ctx context.Context, job *db.ScheduledJob) {
	if s.scheduler == nil {
		return
	}
	if !job.Active {
		s.scheduler.Remove(job.ID)
		return
	}
	if err := s.scheduler.Reload(ctx, job.ID); err != nil {
		s.logger.Warn("failed to reload job schedule", logging.String("job_id", job.ID.String()), logging.Error(err))
	}
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var req types.JobRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	in, err := jobInput(&req, time.Now())
	if err != nil {
		s.errorFromErr(w, r, err)
		return
	}

	job, err := s.jobs.CreateJob(r.Context(), userID, in)
	if err != nil {
		s.errorFromErr(w, r, err)
		return
	}
	s.syncSchedule(r.Context(), job)
	s.jsonResponse(w, http.StatusCreated, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	jobs, err := s.jobs.ListJobs(r.Context(), userID)
	if err != nil {
		s.errorFromErr(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []db.ScheduledJob{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// ownedJob loads a job of the caller or writes the error response.
func (s *Server) ownedJob(w http.ResponseWriter, r *http.Request) (uuid.UUID, *db.ScheduledJob, bool) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return uuid.Nil, nil, false
	}
	id, ok := s.pathID(w, r, "job")
	if !ok {
		return uuid.Nil, nil, false
	}
	job, err := s.jobs.GetJob(r.Context(), userID, id)
	if err != nil {
		s.errorFromErr(w, r, err)
		return uuid.Nil, nil, false
	}
	if job == nil {
		s.errorFromErr(w, r, &ErrNotFound{Resource: "job", ID: id.String()})
		return uuid.Nil, nil, false
	}
	return userID, job, true
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	_, job, ok := s.ownedJob(w, r)
	if !ok {
		return
	}
	s.jsonResponse(w, http.StatusOK, job)
}

func (s *Server) handleUpdateJob(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	id, ok := s.pathID(w, r, "job")
	if !ok {
		return
	}
	var req types.JobRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	in, err := jobInput(&req, time.Now())
	if err != nil {
		s.errorFromErr(w, r, err)
		return
	}

	job, err := s.jobs.UpdateJob(r.Context(), userID, id, in)
	if err != nil {
		s.errorFromErr(w, r, err)
		return
	}
	s.syncSchedule(r.Context(), job)
	s.jsonResponse(w, http.StatusOK, job)
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	id, ok := s.pathID(w, r, "job")
	if !ok {
		return
	}

	if err := s.jobs.DeleteJob(r.Context(), userID, id); err != nil {
		s.errorFromErr(w, r, err)
		return
	}
	if s.scheduler != nil {
		s.scheduler.Remove(id)
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handlePauseJob(w http.ResponseWriter, r *http.Request) {
	s.setJobActive(w, r, false)
}

func (s *Server) handleResumeJob(w http.ResponseWriter, r *http.Request) {
	s.setJobActive(w, r, true)
}

func (s *Server) setJobActive(w http.ResponseWriter, r *http.Request, active bool) {
	userID, job, ok := s.ownedJob(w, r)
	if !ok {
		return
	}

	var next *time.Time
	if active {
		t, err := scheduler.NextRun(job.CronExpression, job.Timezone, time.Now())
		if err != nil {
			s.errorFromErr(w, r, err)
			return
		}
		next = &t
	}
	updated, err := s.jobs.SetJobActive(r.Context(), userID, job.ID, active, next)
	if err != nil {
		s.errorFromErr(w, r, err)
		return
	}
	s.syncSchedule(r.Context(), updated)
	s.jsonResponse(w, http.StatusOK, updated)
}

func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	_, job, ok := s.ownedJob(w, r)
	if !ok {
		return
	}
	if s.scheduler == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "job runner unavailable")
		return
	}

	report, err := s.scheduler.RunNow(r.Context(), job.ID, nil)
	if err != nil {
		s.errorFromErr(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, report)
}

// handleRunJobStream runs a job and streams its progress as Server-Sent Events.
func (s *Server) handleRunJobStream(w http.ResponseWriter, r *http.Request) {
	_, job, ok := s.ownedJob(w, r)
	if !ok {
		return
	}
	if s.scheduler == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "job runner unavailable")
		return
	}

	stream, err := newEventStream(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	report, err := s.scheduler.RunNow(r.Context(), job.ID, func(ev scheduler.ProgressEvent) {
		if werr := stream.send("progress", ev); werr != nil {
			s.logger.Debug("progress stream write failed", logging.Error(werr))
		}
	})
	if err != nil {
		status := HTTPStatus(err)
		err = stream.fail(status, publicMessage(err, status))
	} else {
		err = stream.done(report)
	}
	if err != nil {
		s.logger.Debug("progress stream closed early", logging.Error(err))
	}
}

func (s *Server) handleListJobRuns(w http.ResponseWriter, r *http.Request) {
	userID, job, ok := s.ownedJob(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		s.errorFromErr(w, r, err)
		return
	}

	runs, err := s.jobs.ListJobRuns(r.Context(), userID, job.ID, limit)
	if err != nil {
		s.errorFromErr(w, r, err)
		return
	}
	if runs == nil {
		runs = []db.JobRun{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}

func (s *Server) handleListDeliveries(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	runID, ok := s.pathID(w, r, "run")
	if !ok {
		return
	}

	run, err := s.jobs.GetJobRun(r.Context(), userID, runID)
	if err != nil {
		s.errorFromErr(w, r, err)
		return
	}
	if run == nil {
		s.errorFromErr(w, r, &ErrNotFound{Resource: "run", ID: runID.String()})
		return
	}

	deliveries, err := s.jobs.ListWebhookDeliveries(r.Context(), userID, runID)
	if err != nil {
		s.errorFromErr(w, r, err)
		return
	}
	if deliveries == nil {
		deliveries = []db.WebhookDelivery{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"run":        run,
		"deliveries": deliveries,
		"count":      len(deliveries),
	})
}
