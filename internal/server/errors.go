// Package server provides the HTTP REST API for the content engine.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/jonathan/content-engine/internal/db"
	"github.com/jonathan/content-engine/internal/generation"
	"github.com/jonathan/content-engine/internal/intelligence"
	"github.com/jonathan/content-engine/internal/llm"
	"github.com/jonathan/content-engine/internal/scheduler"
	"github.com/jonathan/content-engine/internal/trends"
)

// ErrEmailAlreadyExists indicates email is already registered
type ErrEmailAlreadyExists struct {
	Email string
}

func (e *ErrEmailAlreadyExists) Error() string {
	return fmt.Sprintf("email already registered: %s", e.Email)
}

// ErrInvalidCredentials indicates invalid login credentials
type ErrInvalidCredentials struct{}

func (e *ErrInvalidCredentials) Error() string {
	return "invalid email or password"
}

// ErrUserNotFound indicates user was not found
type ErrUserNotFound struct {
	UserID uuid.UUID
}

func (e *ErrUserNotFound) Error() string {
	return fmt.Sprintf("user not found: %s", e.UserID)
}

// ErrPasswordMismatch indicates current password is incorrect
type ErrPasswordMismatch struct{}

func (e *ErrPasswordMismatch) Error() string {
	return "current password is incorrect"
}

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrNotFound indicates a tenant resource does not exist or belongs to someone else.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	switch err.(type) {
	case *ErrEmailAlreadyExists:
		return http.StatusConflict
	case *ErrInvalidCredentials, *ErrPasswordMismatch:
		return http.StatusUnauthorized
	case *ErrUserNotFound, *ErrNotFound:
		return http.StatusNotFound
	case *ErrValidation:
		return http.StatusBadRequest
	}

	var (
		validationErr *generation.ValidationError
		parseErr      *generation.ParseError
		scheduleErr   *scheduler.ScheduleError
		refreshErr    *trends.RefreshError
		llmErr        *llm.AllProvidersFailedError
	)
	switch {
	case errors.As(err, &validationErr), errors.As(err, &scheduleErr):
		return http.StatusBadRequest
	case errors.Is(err, db.ErrNotFound), errors.Is(err, scheduler.ErrJobNotFound),
		errors.Is(err, trends.ErrUnknownNiche), errors.Is(err, intelligence.ErrUnknownNiche):
		return http.StatusNotFound
	case errors.Is(err, scheduler.ErrJobRunning), errors.Is(err, scheduler.ErrJobLocked),
		errors.Is(err, intelligence.ErrNoTrendData):
		return http.StatusConflict
	case errors.As(err, &parseErr), errors.As(err, &refreshErr), errors.As(err, &llmErr):
		return http.StatusBadGateway
	case errors.Is(err, llm.ErrNoProviders), errors.Is(err, trends.ErrNoProviders):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage hides internal error details from clients.
func publicMessage(err error, status int) string {
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway && status != http.StatusServiceUnavailable {
		return "internal server error"
	}
	return err.Error()
}
