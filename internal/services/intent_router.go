package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lperezmo/sms-helper/internal/models"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

// ChatCompleter is the part of the OpenAI client the core needs
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// PlaceholderReply is shown while a reminder is being scheduled
const PlaceholderReply = "Just a minute while I schedule your reminder."

const routingPrompt = "You are an AI assistant that can schedule reminders (like calls and texts) if asked to do so. " +
	"Be informative, funny, and helpful, and keep your messages clear and short. " +
	"To schedule reminder just pass a natural language request to the function 'schedule_reminder'"

// OutcomeKind tags a routing outcome
type OutcomeKind int

const (
	// OutcomeDirectReply carries text for the user and nothing else
	OutcomeDirectReply OutcomeKind = iota
	// OutcomeToolInvocation carries a decoded tool call plus interim text
	OutcomeToolInvocation
)

func (k OutcomeKind) String() string {
	if k == OutcomeToolInvocation {
		return "tool_invocation"
	}
	return "direct_reply"
}

// Outcome is the result of routing one authenticated turn.
// For a tool invocation Text is what the user sees until scheduling completes.
type Outcome struct {
	Kind OutcomeKind
	Text string
	Call *models.ToolCall
}

// DirectReply builds a text-only outcome
func DirectReply(text string) Outcome {
	return Outcome{Kind: OutcomeDirectReply, Text: text}
}

// ToolInvocation builds a tool outcome
func ToolInvocation(call *models.ToolCall, interim string) Outcome {
	return Outcome{Kind: OutcomeToolInvocation, Text: interim, Call: call}
}

// RouterOptions configures an IntentRouter
type RouterOptions struct {
	Model        string
	ResetKeyword string
	HelpText     string
	// BindSender declares the number_from argument on the tool
	BindSender bool
}

// IntentRouter decides how an authenticated turn is answered
type IntentRouter struct {
	client ChatCompleter
	opts   RouterOptions
	tools  []openai.Tool
}

// NewIntentRouter creates a router exposing the schedule_reminder tool
func NewIntentRouter(client ChatCompleter, opts RouterOptions) *IntentRouter {
	return &IntentRouter{
		client: client,
		opts:   opts,
		tools:  []openai.Tool{scheduleReminderTool(opts.BindSender)},
	}
}

// IsReset reports whether the body is the reset keyword
func (r *IntentRouter) IsReset(body string) bool {
	return strings.EqualFold(strings.TrimSpace(body), r.opts.ResetKeyword)
}

// Route answers the reset keyword locally and hands anything else to the model
func (r *IntentRouter) Route(ctx context.Context, turn *models.Turn) (Outcome, error) {
	if r.IsReset(turn.Body) {
		return DirectReply(r.opts.HelpText), nil
	}

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.opts.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: routingPrompt},
			{Role: openai.ChatMessageRoleUser, Content: turn.Body},
		},
		Tools:      r.tools,
		ToolChoice: "auto",
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("routing completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return Outcome{}, fmt.Errorf("%w: no choices in routing completion", ErrMalformedModelOutput)
	}

	msg := resp.Choices[0].Message
	if len(msg.ToolCalls) == 0 {
		// an empty body would render as a blank SMS
		if strings.TrimSpace(msg.Content) == "" {
			return DirectReply(PlaceholderReply), nil
		}
		return DirectReply(msg.Content), nil
	}

	call, err := decodeToolCall(msg.ToolCalls[0])
	if err != nil {
		return Outcome{}, err
	}

	interim := strings.TrimSpace(msg.Content)
	if interim == "" {
		interim = PlaceholderReply
	}
	return ToolInvocation(call, interim), nil
}

func decodeToolCall(tc openai.ToolCall) (*models.ToolCall, error) {
	name, ok := models.ParseToolName(tc.Function.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnreachableToolName, tc.Function.Name)
	}

	switch name {
	case models.ToolScheduleReminder:
		var args models.ScheduleReminderArgs
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			return nil, fmt.Errorf("%w: tool arguments: %v", ErrMalformedModelOutput, err)
		}
		if strings.TrimSpace(args.NaturalLanguageRequest) == "" {
			return nil, fmt.Errorf("%w: natural_language_request is empty", ErrMalformedModelOutput)
		}
		return &models.ToolCall{Name: name, Args: args}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnreachableToolName, tc.Function.Name)
}

func scheduleReminderTool(bindSender bool) openai.Tool {
	params := jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"natural_language_request": {
				Type: jsonschema.String,
				Description: "Requested reminder in natural language. Example: 'Remind me to call mom tomorrow at 6pm' " +
					"or 'Send me a message with a Matrix quote on wednesday at 8am'",
			},
		},
		Required: []string{"natural_language_request"},
	}
	if bindSender {
		params.Properties["number_from"] = jsonschema.Definition{
			Type:        jsonschema.String,
			Description: "Phone number to send text from. Example: '+15554443333'",
		}
	}

	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        string(models.ToolScheduleReminder),
			Description: "Schedule a reminder using natural language",
			Parameters:  params,
		},
	}
}
