package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/content-engine/internal/logging"
	"github.com/jonathan/content-engine/internal/retry"
)

// EventBulkJobCompleted is sent once per finished job run.
const EventBulkJobCompleted = "bulk_job.completed"

const (
	defaultTimeout = 10 * time.Second
	userAgent      = "content-engine-webhook/1.0"
	// maxErrorBody bounds how much of a failed response body is kept.
	maxErrorBody = 512
)

// Target is where and how an event is delivered.
type Target struct {
	URL    string
	Secret string
}

// Event is the JSON envelope posted to the target.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	Data      any       `json:"data"`
}

// NewEvent builds an event with a fresh delivery ID.
func NewEvent(eventType string, data any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		CreatedAt: time.Now().UTC(),
		Data:      data,
	}
}

// Result describes a finished delivery, successful or not.
type Result struct {
	DeliveryID string        `json:"delivery_id"`
	Attempts   int           `json:"attempts"`
	StatusCode int           `json:"status_code,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// StatusError is a non-2xx response from the target.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("webhook target returned %d", e.StatusCode)
	}
	return fmt.Sprintf("webhook target returned %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the status is worth retrying (429 and 5xx).
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// Options configures a Deliverer.
type Options struct {
	Timeout time.Duration
	Retry   retry.Config
	Logger  logging.Logger
	// Now overrides the signing clock in tests.
	Now func() time.Time
}

// Deliverer posts signed events with retries.
type Deliverer struct {
	client *http.Client
	retry  retry.Config
	logger logging.Logger
	now    func() time.Time
}

// NewDeliverer creates a deliverer. A zero Options is valid.
func NewDeliverer(opts Options) *Deliverer {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	cfg := opts.Retry
	cfg.IsRetryable = isRetryable
	return &Deliverer{
		client: &http.Client{Timeout: opts.Timeout},
		retry:  cfg,
		logger: opts.Logger,
		now:    opts.Now,
	}
}

// Deliver posts event to target. The returned Result is populated even on
// failure so the caller can record the attempt.
func (d *Deliverer) Deliver(ctx context.Context, target Target, event Event) (Result, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	res := Result{DeliveryID: event.ID}

	body, err := json.Marshal(event)
	if err != nil {
		return res, fmt.Errorf("marshal webhook event: %w", err)
	}

	signer := NewSigner(target.Secret)
	start := time.Now()

	cfg := d.retry
	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		d.logger.Warn("webhook delivery failed, retrying",
			logging.String("delivery_id", event.ID),
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err),
		)
	}

	err = retry.Do(ctx, cfg, func() error {
		res.Attempts++
		status, sendErr := d.send(ctx, target.URL, signer, event, body)
		res.StatusCode = status
		return sendErr
	})
	res.Duration = time.Since(start)

	if err != nil {
		d.logger.Error("webhook delivery failed",
			logging.String("delivery_id", event.ID),
			logging.String("event", event.Type),
			logging.Int("attempts", res.Attempts),
			logging.Int("status", res.StatusCode),
			logging.Error(err),
		)
		return res, err
	}

	d.logger.Info("webhook delivered",
		logging.String("delivery_id", event.ID),
		logging.String("event", event.Type),
		logging.Int("attempts", res.Attempts),
		logging.Int("status", res.StatusCode),
		logging.Duration("duration", res.Duration),
	)
	return res, nil
}

func (d *Deliverer) send(ctx context.Context, url string, signer *Signer, event Event, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, retry.Permanent(fmt.Errorf("build webhook request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	signer.Apply(req, d.now(), event.Type, event.ID, body)

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return resp.StatusCode, &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(snippet))}
}

// isRetryable retries network failures and retryable statuses.
func isRetryable(err error) bool {
	if err == nil || retry.IsPermanent(err) || errors.Is(err, context.Canceled) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	return true
}
