package server

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/jonathan/content-engine/internal/db"
	"github.com/jonathan/content-engine/internal/types"
)

func (s *Server) handleCreateGeneration(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var req types.GenerateRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	record, err := s.generations.Generate(r.Context(), userID, &req)
	if err != nil {
		s.errorFromErr(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, record)
}

func (s *Server) handleListGenerations(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	filters := db.GenerationFilters{Niche: r.URL.Query().Get("niche")}
	if filters.Niche != "" && !types.Niche(filters.Niche).Valid() {
		s.errorResponse(w, http.StatusBadRequest, "Invalid niche")
		return
	}
	if raw := r.URL.Query().Get("job_run_id"); raw != "" {
		runID, err := uuid.Parse(raw)
		if err != nil {
			s.errorResponse(w, http.StatusBadRequest, "Invalid job_run_id")
			return
		}
		filters.JobRunID = &runID
	}
	var err error
	if filters.Limit, err = queryInt(r, "limit", 0); err != nil {
		s.errorFromErr(w, r, err)
		return
	}
	if filters.Offset, err = queryInt(r, "offset", 0); err != nil {
		s.errorFromErr(w, r, err)
		return
	}

	generations, err := s.generations.List(r.Context(), userID, filters)
	if err != nil {
		s.errorFromErr(w, r, err)
		return
	}
	if generations == nil {
		generations = []db.ContentGeneration{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"generations": generations,
		"count":       len(generations),
	})
}

func (s *Server) handleGenerationStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	stats, err := s.generations.Stats(r.Context(), userID)
	if err != nil {
		s.errorFromErr(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, stats)
}

func (s *Server) handleGetGeneration(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	id, ok := s.pathID(w, r, "generation")
	if !ok {
		return
	}

	record, err := s.generations.Get(r.Context(), userID, id)
	if err != nil {
		s.errorFromErr(w, r, err)
		return
	}
	if record == nil {
		s.errorFromErr(w, r, &ErrNotFound{Resource: "generation", ID: id.String()})
		return
	}
	s.jsonResponse(w, http.StatusOK, record)
}

func (s *Server) handleDeleteGeneration(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	id, ok := s.pathID(w, r, "generation")
	if !ok {
		return
	}

	if err := s.generations.Delete(r.Context(), userID, id); err != nil {
		s.errorFromErr(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleRateGeneration(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	id, ok := s.pathID(w, r, "generation")
	if !ok {
		return
	}
	var req types.RatingRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	if err := s.generations.Rate(r.Context(), userID, id, req.Rating); err != nil {
		s.errorFromErr(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"id": id, "rating": req.Rating})
}
