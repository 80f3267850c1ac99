package services

import (
	"context"
	"errors"
	"testing"

	"github.com/lperezmo/sms-helper/internal/models"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testNow = "2023-11-27T10:15:30.123456-08:00 PST day of the week 1"

func newTestExtractor(client ChatCompleter) *ReminderExtractor {
	return NewReminderExtractor(client, fixedClock(testNow), ExtractorOptions{
		Model:         "gpt-3.5-turbo-1106",
		DefaultNumber: "+15554443333",
		WorkNumber:    "+12221110000",
	})
}

func TestReminderExtractor_Extract(t *testing.T) {
	client := &fakeCompleter{responses: []openai.ChatCompletionResponse{
		textCompletion(`{"time":"18:20","day":"2023-11-27","message_body":"This is the reminder body!","call":"True","twilio":"True","to_number":"+15554443333"}`),
	}}

	reminder, err := newTestExtractor(client).Extract(context.Background(), ExtractionRequest{
		Request: "Call me today at 6:20pm with this is the reminder body",
	})
	require.NoError(t, err)

	assert.Equal(t, &models.Reminder{
		Time:        "18:20",
		Day:         "2023-11-27",
		MessageBody: "This is the reminder body!",
		Call:        true,
		Twilio:      true,
		ToNumber:    "+15554443333",
	}, reminder)

	require.Equal(t, 1, client.calls())
	req := client.requests[0]
	require.NotNil(t, req.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, req.ResponseFormat.Type)
	require.Len(t, req.Messages, 2)
	assert.Contains(t, req.Messages[0].Content, "+12221110000")
	assert.Contains(t, req.Messages[0].Content, "+15554443333")
	assert.Equal(t, "Call me today at 6:20pm with this is the reminder body. <Current Time>: "+testNow, req.Messages[1].Content)
}

func TestReminderExtractor_SenderBinding(t *testing.T) {
	client := &fakeCompleter{responses: []openai.ChatCompletionResponse{
		textCompletion(`{"time":"08:00","day":"2023-11-29","message_body":"Matrix quote","to_number":"+15550001111"}`),
	}}

	reminder, err := newTestExtractor(client).Extract(context.Background(), ExtractionRequest{
		Request:      "Send me a Matrix quote on wednesday at 8am",
		SenderNumber: "+15550001111",
	})
	require.NoError(t, err)
	assert.Equal(t, "+15550001111", reminder.ToNumber)

	req := client.requests[0]
	assert.Contains(t, req.Messages[0].Content, "user's number")
	assert.NotContains(t, req.Messages[0].Content, "+12221110000")
	assert.Equal(t, "Send me a Matrix quote on wednesday at 8am. <User's number> +15550001111 <Current Time>: "+testNow, req.Messages[1].Content)
}

func TestReminderExtractor_TimeSentinelIsForwarded(t *testing.T) {
	client := &fakeCompleter{responses: []openai.ChatCompletionResponse{
		textCompletion(`{"time":"09:00","day":"2023-11-28","message_body":"x","to_number":"+1"}`),
	}}
	extractor := NewReminderExtractor(client, fixedClock(TimeUnavailableText), ExtractorOptions{Model: "m"})

	_, err := extractor.Extract(context.Background(), ExtractionRequest{Request: "tomorrow at 9"})
	require.NoError(t, err)
	assert.Contains(t, client.requests[0].Messages[1].Content, TimeUnavailableText)
}

func TestReminderExtractor_Failures(t *testing.T) {
	upstream := errors.New("model unavailable")

	tests := []struct {
		name    string
		client  *fakeCompleter
		wantErr error
	}{
		{name: "completion error", client: &fakeCompleter{err: upstream}, wantErr: upstream},
		{name: "no choices", client: &fakeCompleter{responses: []openai.ChatCompletionResponse{{}}}, wantErr: ErrMalformedModelOutput},
		{name: "not json", client: &fakeCompleter{responses: []openai.ChatCompletionResponse{textCompletion("Sure! 6pm it is.")}}, wantErr: ErrMalformedModelOutput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reminder, err := newTestExtractor(tt.client).Extract(context.Background(), ExtractionRequest{Request: "x"})
			assert.Nil(t, reminder)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParseReminder(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    *models.Reminder
		wantErr bool
	}{
		{
			name:    "example message",
			content: `{"time":"23:46","day":"2023-11-27","message_body":"text reminder to check email","to_number":"+15554443333","twilio":"True","call":"False"}`,
			want: &models.Reminder{
				Time: "23:46", Day: "2023-11-27", MessageBody: "text reminder to check email",
				Call: false, Twilio: true, ToNumber: "+15554443333",
			},
		},
		{
			name:    "json booleans and defaults",
			content: `{"time":"07:05","day":"2024-02-29","message_body":"leap day","to_number":"+1","call":true}`,
			want: &models.Reminder{
				Time: "07:05", Day: "2024-02-29", MessageBody: "leap day",
				Call: true, Twilio: true, ToNumber: "+1",
			},
		},
		{
			name:    "past dates are not rejected",
			content: `{"time":"00:00","day":"1999-01-01","message_body":"old","to_number":"+1","twilio":"false"}`,
			want: &models.Reminder{
				Time: "00:00", Day: "1999-01-01", MessageBody: "old",
				Call: false, Twilio: false, ToNumber: "+1",
			},
		},
		{name: "missing time", content: `{"day":"2023-11-27","message_body":"x","to_number":"+1"}`, wantErr: true},
		{name: "missing body", content: `{"time":"10:00","day":"2023-11-27","to_number":"+1"}`, wantErr: true},
		{name: "missing number", content: `{"time":"10:00","day":"2023-11-27","message_body":"x"}`, wantErr: true},
		{name: "twelve hour time", content: `{"time":"6pm","day":"2023-11-27","message_body":"x","to_number":"+1"}`, wantErr: true},
		{name: "single digit hour", content: `{"time":"6:00","day":"2023-11-27","message_body":"x","to_number":"+1"}`, wantErr: true},
		{name: "hour out of range", content: `{"time":"24:00","day":"2023-11-27","message_body":"x","to_number":"+1"}`, wantErr: true},
		{name: "bad day", content: `{"time":"10:00","day":"11/27/2023","message_body":"x","to_number":"+1"}`, wantErr: true},
		{name: "impossible day", content: `{"time":"10:00","day":"2023-02-30","message_body":"x","to_number":"+1"}`, wantErr: true},
		{name: "bad flag", content: `{"time":"10:00","day":"2023-11-27","message_body":"x","to_number":"+1","call":"maybe"}`, wantErr: true},
		{name: "array", content: `[]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReminder(tt.content)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedModelOutput)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
