package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lperezmo/sms-helper/internal/models"
)

// maxErrorBody bounds how much of a failed response is kept for logging
const maxErrorBody = 512

// SchedulerDispatcher submits reminders to the downstream scheduling endpoint
type SchedulerDispatcher struct {
	endpoint   string
	httpClient *http.Client
}

// NewSchedulerDispatcher creates a dispatcher for the given endpoint
func NewSchedulerDispatcher(endpoint string, timeout time.Duration) *SchedulerDispatcher {
	return &SchedulerDispatcher{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Dispatch performs a single POST. Only HTTP 200 counts as success; every
// other outcome is an error matching ErrDispatchFailed. There is no retry.
func (d *SchedulerDispatcher) Dispatch(ctx context.Context, reminder *models.Reminder) error {
	if reminder == nil {
		return fmt.Errorf("%w: reminder cannot be nil", ErrDispatchFailed)
	}

	body, err := json.Marshal(reminder)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal reminder: %v", ErrDispatchFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %v", ErrDispatchFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &DispatchError{StatusCode: resp.StatusCode, Body: string(snippet)}
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
