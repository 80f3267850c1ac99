package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lperezmo/sms-helper/pkg/logger"

	"go.uber.org/zap"
)

const (
	// TimeOracleAttempts is the total number of calls made to the time service
	TimeOracleAttempts = 3
	// TimeUnavailableText is handed to the model when no time could be fetched
	TimeUnavailableText = "Failed to get time after several attempts."
)

// timeResponse is the subset of the time service payload we rely on
type timeResponse struct {
	Datetime     string `json:"datetime"`
	Abbreviation string `json:"abbreviation"`
	DayOfWeek    *int   `json:"day_of_week"`
}

// TimeOracle resolves "now" in the configured civil timezone
type TimeOracle struct {
	url        string
	httpClient *http.Client
}

// NewTimeOracle creates a time oracle for a timezone-scoped endpoint
func NewTimeOracle(url string, timeout time.Duration) *TimeOracle {
	return &TimeOracle{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// CurrentTime returns "<datetime> <abbreviation> day of the week <n>".
// It never fails: after TimeOracleAttempts failed calls it returns TimeUnavailableText.
func (o *TimeOracle) CurrentTime(ctx context.Context) string {
	var lastErr error
	for attempt := 1; attempt <= TimeOracleAttempts; attempt++ {
		now, err := o.fetch(ctx)
		if err == nil {
			return now
		}
		lastErr = err
		logger.Debug("Time service attempt failed",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}

	logger.Warn("Using time sentinel",
		zap.String("url", o.url),
		zap.Error(fmt.Errorf("%w: %v", ErrTimeServiceUnavailable, lastErr)),
	)
	return TimeUnavailableText
}

func (o *TimeOracle) fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("time service returned status %d", resp.StatusCode)
	}

	var tr timeResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if tr.Datetime == "" || tr.Abbreviation == "" || tr.DayOfWeek == nil {
		return "", fmt.Errorf("incomplete time data received")
	}

	return fmt.Sprintf("%s %s day of the week %d", tr.Datetime, tr.Abbreviation, *tr.DayOfWeek), nil
}
