package server

import (
	"net/http"
)

// handleGetMe returns the authenticated account.
func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	user, err := s.userService.Get(r.Context(), userID)
	if err != nil {
		s.errorFromErr(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, user)
}

// handleUpdatePassword changes the authenticated account's password.
func (s *Server) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	s.authHandler.UpdatePasswordWithUserID(w, r, userID)
}
