package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lperezmo/sms-helper/internal/config"
	"github.com/lperezmo/sms-helper/internal/models"
	"github.com/lperezmo/sms-helper/pkg/logger"

	"go.uber.org/zap"
)

// Fixed replies
const (
	PINPromptReply     = "Please provide security PIN to continue"
	ScheduledReply     = "Your reminder has been scheduled."
	ScheduleErrorReply = "Error scheduling reminder."
	FailureReply       = "Sorry, I couldn't process that. Please try again."
)

// Outcome labels stored with each turn record
const (
	labelPINPrompt        = "pin_prompt"
	labelWelcome          = "welcome"
	labelReset            = "reset"
	labelDirectReply      = "direct_reply"
	labelScheduled        = "scheduled"
	labelScheduling       = "scheduling"
	labelScheduleFailed   = "schedule_failed"
	labelExtractionFailed = "extraction_failed"
	labelRouteFailed      = "route_failed"
	labelRelayed          = "relayed"
	labelRelayFailed      = "relay_failed"
)

// Authenticator checks the PIN for a turn
type Authenticator interface {
	Authenticate(ctx context.Context, pin string, turn *models.Turn) (Verdict, error)
}

// Router routes authenticated turns
type Router interface {
	IsReset(body string) bool
	Route(ctx context.Context, turn *models.Turn) (Outcome, error)
}

// Extractor builds reminders from natural language
type Extractor interface {
	Extract(ctx context.Context, req ExtractionRequest) (*models.Reminder, error)
}

// Dispatcher submits reminders downstream
type Dispatcher interface {
	Dispatch(ctx context.Context, reminder *models.Reminder) error
}

// Notifier sends an out-of-band SMS
type Notifier interface {
	SendSMS(ctx context.Context, to, from, body string) error
}

// InboxPublisher forwards relayed turns
type InboxPublisher interface {
	PublishInbox(ctx context.Context, msg *models.InboxMessage) error
}

// TurnRecorder keeps the audit trail
type TurnRecorder interface {
	Record(ctx context.Context, rec *models.TurnRecord) error
}

// AssistantOptions configures an AssistantService
type AssistantOptions struct {
	Mode         string
	PIN          string
	WelcomeText  string
	BindSender   bool
	AsyncTimeout time.Duration
}

// AssistantDeps groups the collaborators of an AssistantService.
// Notifier is needed in async mode, Inbox in relay mode, Recorder is optional.
type AssistantDeps struct {
	Auth       Authenticator
	Router     Router
	Extractor  Extractor
	Dispatcher Dispatcher
	Notifier   Notifier
	Inbox      InboxPublisher
	Recorder   TurnRecorder
}

// AssistantService is the error boundary between the transport and the core.
// HandleTurn always produces a reply; failures become text or log entries.
type AssistantService struct {
	deps AssistantDeps
	opts AssistantOptions
	wg   sync.WaitGroup
}

// NewAssistantService creates the conversation orchestrator
func NewAssistantService(deps AssistantDeps, opts AssistantOptions) (*AssistantService, error) {
	if deps.Auth == nil || deps.Router == nil {
		return nil, errors.New("auth gate and router are required")
	}
	switch opts.Mode {
	case config.ModeSync:
		if deps.Extractor == nil || deps.Dispatcher == nil {
			return nil, errors.New("sync mode requires an extractor and a dispatcher")
		}
	case config.ModeAsync:
		if deps.Extractor == nil || deps.Dispatcher == nil || deps.Notifier == nil {
			return nil, errors.New("async mode requires an extractor, a dispatcher and a notifier")
		}
	case config.ModeRelay:
		if deps.Inbox == nil {
			return nil, errors.New("relay mode requires an inbox publisher")
		}
	default:
		return nil, fmt.Errorf("unknown assistant mode %q", opts.Mode)
	}
	if opts.AsyncTimeout <= 0 {
		opts.AsyncTimeout = 2 * time.Minute
	}
	return &AssistantService{deps: deps, opts: opts}, nil
}

// HandleTurn runs one inbound message through the state machine
func (s *AssistantService) HandleTurn(ctx context.Context, turn *models.Turn) models.Reply {
	verdict, reply, label := s.handle(ctx, turn)
	s.record(ctx, turn, verdict, label, reply)
	return models.Reply{Text: reply}
}

// Wait blocks until background scheduling started by async turns finishes
func (s *AssistantService) Wait() {
	s.wg.Wait()
}

func (s *AssistantService) handle(ctx context.Context, turn *models.Turn) (Verdict, string, string) {
	verdict, err := s.deps.Auth.Authenticate(ctx, s.opts.PIN, turn)
	if err != nil {
		logger.Error("Authentication check failed",
			zap.String("turn_id", turn.ID),
			zap.String("from", turn.From),
			zap.Error(err),
		)
	}

	switch verdict {
	case VerdictPINAccepted:
		logger.Info("PIN accepted", zap.String("turn_id", turn.ID), zap.String("from", turn.From))
		return verdict, s.opts.WelcomeText, labelWelcome
	case VerdictHistory:
	default:
		logger.Info("Unauthenticated turn", zap.String("turn_id", turn.ID), zap.String("from", turn.From))
		return verdict, PINPromptReply, labelPINPrompt
	}

	if s.opts.Mode == config.ModeRelay {
		reply, label := s.relay(ctx, turn)
		return verdict, reply, label
	}

	outcome, err := s.deps.Router.Route(ctx, turn)
	if err != nil {
		logRouteError(turn, err)
		return verdict, FailureReply, labelRouteFailed
	}

	switch outcome.Kind {
	case OutcomeDirectReply:
		label := labelDirectReply
		if s.deps.Router.IsReset(turn.Body) {
			label = labelReset
		}
		return verdict, outcome.Text, label
	case OutcomeToolInvocation:
		req := s.extractionRequest(turn, outcome.Call)
		if s.opts.Mode == config.ModeAsync {
			s.scheduleAsync(ctx, turn, verdict, req)
			return verdict, outcome.Text, labelScheduling
		}
		reply, label := s.schedule(ctx, turn, req)
		return verdict, reply, label
	}

	logger.Error("Unknown routing outcome", zap.String("turn_id", turn.ID), zap.Stringer("kind", outcome.Kind))
	return verdict, FailureReply, labelRouteFailed
}

func (s *AssistantService) relay(ctx context.Context, turn *models.Turn) (string, string) {
	if s.deps.Router.IsReset(turn.Body) {
		return s.opts.WelcomeText, labelReset
	}

	msg := &models.InboxMessage{
		Sender:   turn.From,
		Message:  fmt.Sprintf("%s %s %s", pyList(turn.ImageURLs()), pyList(turn.AudioURLs()), turn.Body),
		DateSent: turn.ReceivedAt.UTC().Format("2006-01-02T15:04:05.000000"),
	}
	if err := s.deps.Inbox.PublishInbox(ctx, msg); err != nil {
		logger.Error("Failed to relay message",
			zap.String("turn_id", turn.ID),
			zap.String("from", turn.From),
			zap.Error(err),
		)
		return "", labelRelayFailed
	}

	logger.Info("Message relayed", zap.String("turn_id", turn.ID), zap.String("from", turn.From))
	return "", labelRelayed
}

func (s *AssistantService) extractionRequest(turn *models.Turn, call *models.ToolCall) ExtractionRequest {
	req := ExtractionRequest{Request: call.Args.NaturalLanguageRequest}
	if s.opts.BindSender {
		req.SenderNumber = turn.From
		if req.SenderNumber == "" {
			req.SenderNumber = call.Args.NumberFrom
		}
	}
	return req
}

// schedule extracts and dispatches inline and returns the reply for the user
func (s *AssistantService) schedule(ctx context.Context, turn *models.Turn, req ExtractionRequest) (string, string) {
	reminder, err := s.deps.Extractor.Extract(ctx, req)
	if err != nil {
		logger.Error("Reminder extraction failed",
			zap.String("turn_id", turn.ID),
			zap.String("request", req.Request),
			zap.Error(err),
		)
		return FailureReply, labelExtractionFailed
	}

	if err := s.deps.Dispatcher.Dispatch(ctx, reminder); err != nil {
		logger.Error("Reminder dispatch failed",
			zap.String("turn_id", turn.ID),
			zap.String("day", reminder.Day),
			zap.String("time", reminder.Time),
			zap.Error(err),
		)
		return ScheduleErrorReply, labelScheduleFailed
	}

	logger.Info("Reminder scheduled",
		zap.String("turn_id", turn.ID),
		zap.String("day", reminder.Day),
		zap.String("time", reminder.Time),
		zap.Bool("call", bool(reminder.Call)),
	)
	return ScheduledReply, labelScheduled
}

// scheduleAsync runs schedule detached from the request and texts the
// confirmation. The final outcome is recorded as a second turn record;
// failures are only logged.
func (s *AssistantService) scheduleAsync(ctx context.Context, turn *models.Turn, verdict Verdict, req ExtractionRequest) {
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.AsyncTimeout)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()

		reply, label := s.schedule(bg, turn, req)
		s.record(bg, turn, verdict, label, reply)
		if label != labelScheduled {
			return
		}
		if err := s.deps.Notifier.SendSMS(bg, turn.From, turn.To, reply); err != nil {
			logger.Error("Failed to send confirmation",
				zap.String("turn_id", turn.ID),
				zap.String("to", turn.From),
				zap.Error(err),
			)
		}
	}()
}

func (s *AssistantService) record(ctx context.Context, turn *models.Turn, verdict Verdict, label, reply string) {
	if s.deps.Recorder == nil {
		return
	}

	body := turn.Body
	if verdict == VerdictPINAccepted {
		body = "[pin]"
	}
	rec := &models.TurnRecord{
		TurnID:     turn.ID,
		MessageSID: turn.MessageSID,
		From:       turn.From,
		To:         turn.To,
		Body:       body,
		MediaCount: len(turn.Media),
		Verdict:    verdict.String(),
		Outcome:    label,
		Reply:      reply,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.deps.Recorder.Record(ctx, rec); err != nil {
		logger.Warn("Failed to record turn", zap.String("turn_id", turn.ID), zap.Error(err))
	}
}

func logRouteError(turn *models.Turn, err error) {
	if errors.Is(err, ErrUnreachableToolName) {
		logger.Error("Model called an unregistered tool",
			zap.String("turn_id", turn.ID),
			zap.Error(err),
		)
		return
	}
	logger.Error("Routing failed", zap.String("turn_id", turn.ID), zap.Error(err))
}

// pyList renders URLs the way the on-site processor expects: ['a', 'b']
func pyList(urls []string) string {
	quoted := make([]string, len(urls))
	for i, u := range urls {
		quoted[i] = "'" + u + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
