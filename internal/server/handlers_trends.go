package server

import (
	"net/http"

	"github.com/jonathan/content-engine/internal/db"
	"github.com/jonathan/content-engine/internal/types"
)

// pathNiche parses the {niche} path value or writes 404.
func (s *Server) pathNiche(w http.ResponseWriter, r *http.Request) (string, bool) {
	niche, err := types.ParseNiche(r.PathValue("niche"))
	if err != nil {
		s.errorResponse(w, http.StatusNotFound, err.Error())
		return "", false
	}
	return string(niche), true
}

func (s *Server) handleListTrends(w http.ResponseWriter, r *http.Request) {
	niche, ok := s.pathNiche(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		s.errorFromErr(w, r, err)
		return
	}

	products, err := s.trends.List(r.Context(), niche, limit)
	if err != nil {
		s.errorFromErr(w, r, err)
		return
	}
	if products == nil {
		products = []db.TrendingProduct{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"niche":    niche,
		"products": products,
		"count":    len(products),
	})
}

func (s *Server) handleRefreshTrends(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireUser(w, r); !ok {
		return
	}
	niche, ok := s.pathNiche(w, r)
	if !ok {
		return
	}

	result, err := s.trends.Refresh(r.Context(), niche)
	if err != nil {
		s.errorFromErr(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, result)
}

func (s *Server) handleGetIntelligence(w http.ResponseWriter, r *http.Request) {
	niche, ok := s.pathNiche(w, r)
	if !ok {
		return
	}

	snapshot, err := s.intelligence.Latest(r.Context(), niche)
	if err != nil {
		s.errorFromErr(w, r, err)
		return
	}
	if snapshot == nil {
		s.errorFromErr(w, r, &ErrNotFound{Resource: "intelligence snapshot", ID: niche})
		return
	}
	s.jsonResponse(w, http.StatusOK, snapshot)
}

func (s *Server) handleBuildIntelligence(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireUser(w, r); !ok {
		return
	}
	niche, ok := s.pathNiche(w, r)
	if !ok {
		return
	}

	snapshot, err := s.intelligence.Build(r.Context(), niche)
	if err != nil {
		s.errorFromErr(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, snapshot)
}
