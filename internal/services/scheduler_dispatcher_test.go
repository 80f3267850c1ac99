package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lperezmo/sms-helper/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testReminder() *models.Reminder {
	return &models.Reminder{
		Time:        "18:20",
		Day:         "2023-11-27",
		MessageBody: "This is the reminder body!",
		Call:        true,
		Twilio:      false,
		ToNumber:    "+15554443333",
	}
}

func TestSchedulerDispatcher_Success(t *testing.T) {
	var received map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	err := NewSchedulerDispatcher(server.URL, time.Second).Dispatch(context.Background(), testReminder())
	require.NoError(t, err)

	assert.Equal(t, map[string]interface{}{
		"time":         "18:20",
		"day":          "2023-11-27",
		"message_body": "This is the reminder body!",
		"call":         "True",
		"twilio":       "False",
		"to_number":    "+15554443333",
	}, received)
}

func TestSchedulerDispatcher_NonOKStatus(t *testing.T) {
	for _, status := range []int{http.StatusCreated, http.StatusNoContent, http.StatusBadRequest, http.StatusInternalServerError} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
				if status != http.StatusNoContent {
					_, _ = w.Write([]byte("scheduler says no"))
				}
			}))
			defer server.Close()

			err := NewSchedulerDispatcher(server.URL, time.Second).Dispatch(context.Background(), testReminder())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrDispatchFailed)

			var dispatchErr *DispatchError
			require.True(t, errors.As(err, &dispatchErr))
			assert.Equal(t, status, dispatchErr.StatusCode)
		})
	}
}

func TestSchedulerDispatcher_ErrorBodyIsBounded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write(make([]byte, 4096))
	}))
	defer server.Close()

	err := NewSchedulerDispatcher(server.URL, time.Second).Dispatch(context.Background(), testReminder())

	var dispatchErr *DispatchError
	require.True(t, errors.As(err, &dispatchErr))
	assert.Len(t, dispatchErr.Body, maxErrorBody)
}

func TestSchedulerDispatcher_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	err := NewSchedulerDispatcher(url, time.Second).Dispatch(context.Background(), testReminder())
	assert.ErrorIs(t, err, ErrDispatchFailed)
}

func TestSchedulerDispatcher_NilReminder(t *testing.T) {
	err := NewSchedulerDispatcher("http://127.0.0.1:1", time.Second).Dispatch(context.Background(), nil)
	assert.ErrorIs(t, err, ErrDispatchFailed)
}
