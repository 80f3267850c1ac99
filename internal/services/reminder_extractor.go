package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lperezmo/sms-helper/internal/models"

	"github.com/sashabaranov/go-openai"
)

// Clock supplies the current time text folded into the extraction prompt
type Clock interface {
	CurrentTime(ctx context.Context) string
}

// ExtractionRequest is the input of a single extraction
type ExtractionRequest struct {
	Request string
	// SenderNumber, when set, becomes the destination of the reminder
	SenderNumber string
}

// ExtractorOptions configures a ReminderExtractor
type ExtractorOptions struct {
	Model         string
	DefaultNumber string
	WorkNumber    string
}

const extractionRules = `Your job is to create the JSON body for an API call to schedule texts and calls. Then, you will schedule the text or call the user requests based on pacific time (the current time is given in pacific time). If the user asks for a reminder today at 6 pm that is 18:00 (24 hour notation).

%s

Example call:
{
"time": "18:20",
"day": "2023-11-27",
"message_body": "This is the reminder body!",
"call": "True",
"twilio": "True",
"to_number": "%s"
}

Example message:
{
"time":"23:46",
"day":"2023-11-27",
"message_body":"text reminder to check email",
"to_number":"%s",
"twilio":"True",
"call":"False"
}
`

// reminderPayload mirrors models.Reminder with optional fields so that
// missing keys can be told apart from zero values
type reminderPayload struct {
	Time        *string      `json:"time"`
	Day         *string      `json:"day"`
	MessageBody *string      `json:"message_body"`
	Call        *models.Flag `json:"call"`
	Twilio      *models.Flag `json:"twilio"`
	ToNumber    *string      `json:"to_number"`
}

// ReminderExtractor turns a natural-language request into a Reminder
type ReminderExtractor struct {
	client ChatCompleter
	clock  Clock
	opts   ExtractorOptions
}

// NewReminderExtractor creates an extractor
func NewReminderExtractor(client ChatCompleter, clock Clock, opts ExtractorOptions) *ReminderExtractor {
	return &ReminderExtractor{client: client, clock: clock, opts: opts}
}

// Extract issues one JSON-mode completion and decodes the reminder.
// Malformed output is not retried.
func (e *ReminderExtractor) Extract(ctx context.Context, req ExtractionRequest) (*models.Reminder, error) {
	now := e.clock.CurrentTime(ctx)

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.opts.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: e.systemPrompt(req.SenderNumber)},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(req, now)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("extraction completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in extraction completion", ErrMalformedModelOutput)
	}

	return ParseReminder(resp.Choices[0].Message.Content)
}

func (e *ReminderExtractor) systemPrompt(sender string) string {
	var routing string
	example := e.opts.DefaultNumber
	if sender != "" {
		routing = "Set the 'to_number' to the user's number. Always set twilio = True."
		example = sender
	} else {
		routing = fmt.Sprintf("If the user requests to be called or messaged on their work phone, set to_number to '%s' "+
			"else send it to default phone '%s'. Use twilio = True by default.", e.opts.WorkNumber, e.opts.DefaultNumber)
	}
	return fmt.Sprintf(extractionRules, routing, example, example)
}

func userPrompt(req ExtractionRequest, now string) string {
	if req.SenderNumber != "" {
		return fmt.Sprintf("%s. <User's number> %s <Current Time>: %s", req.Request, req.SenderNumber, now)
	}
	return fmt.Sprintf("%s. <Current Time>: %s", req.Request, now)
}

// ParseReminder decodes model content into a Reminder.
// time, day, message_body and to_number are required; twilio defaults to
// True and call to False. Field values are returned unmodified.
func ParseReminder(content string) (*models.Reminder, error) {
	var p reminderPayload
	if err := json.Unmarshal([]byte(content), &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedModelOutput, err)
	}

	var missing []string
	if p.Time == nil || *p.Time == "" {
		missing = append(missing, "time")
	}
	if p.Day == nil || *p.Day == "" {
		missing = append(missing, "day")
	}
	if p.MessageBody == nil || *p.MessageBody == "" {
		missing = append(missing, "message_body")
	}
	if p.ToNumber == nil || *p.ToNumber == "" {
		missing = append(missing, "to_number")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedModelOutput, strings.Join(missing, ", "))
	}

	if _, err := time.Parse(models.ReminderTimeLayout, *p.Time); err != nil || len(*p.Time) != len(models.ReminderTimeLayout) {
		return nil, fmt.Errorf("%w: time %q is not HH:MM", ErrMalformedModelOutput, *p.Time)
	}
	if _, err := time.Parse(models.ReminderDayLayout, *p.Day); err != nil || len(*p.Day) != len(models.ReminderDayLayout) {
		return nil, fmt.Errorf("%w: day %q is not YYYY-MM-DD", ErrMalformedModelOutput, *p.Day)
	}

	r := &models.Reminder{
		Time:        *p.Time,
		Day:         *p.Day,
		MessageBody: *p.MessageBody,
		Call:        false,
		Twilio:      true,
		ToNumber:    *p.ToNumber,
	}
	if p.Call != nil {
		r.Call = *p.Call
	}
	if p.Twilio != nil {
		r.Twilio = *p.Twilio
	}
	return r, nil
}
