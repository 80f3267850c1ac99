package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/lperezmo/sms-helper/internal/models"
	"github.com/lperezmo/sms-helper/pkg/logger"
	"github.com/lperezmo/sms-helper/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/twilio/twilio-go/twiml"
	"go.uber.org/zap"
)

// maxMedia bounds how many MediaUrlN fields are read from one webhook
const maxMedia = 10

// SMSHandler is the Twilio messaging webhook
type SMSHandler struct {
	assistant AssistantInterface
}

// NewSMSHandler creates a new SMS webhook handler
func NewSMSHandler(assistant AssistantInterface) *SMSHandler {
	return &SMSHandler{assistant: assistant}
}

// HandleSMS turns the webhook form into a Turn and answers with TwiML.
// Anything past transport validation is answered with 200.
func (h *SMSHandler) HandleSMS(c *gin.Context) {
	turn, err := turnFromForm(c)
	if err != nil {
		logger.Warn("Rejected webhook request",
			zap.String("request_id", c.GetString(middleware.RequestIDKey)),
			zap.Error(err),
		)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	logger.Info("Inbound message",
		zap.String("turn_id", turn.ID),
		zap.String("message_sid", turn.MessageSID),
		zap.String("from", turn.From),
		zap.Int("media", len(turn.Media)),
	)

	reply := h.assistant.HandleTurn(c.Request.Context(), turn)

	doc, err := replyTwiML(reply)
	if err != nil {
		logger.Error("Failed to render TwiML", zap.String("turn_id", turn.ID), zap.Error(err))
		doc = emptyTwiML
	}
	c.Data(http.StatusOK, "text/xml; charset=utf-8", []byte(doc))
}

const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

func replyTwiML(reply models.Reply) (string, error) {
	if reply.Text == "" {
		return twiml.Messages(nil)
	}
	return twiml.Messages([]twiml.Element{
		&twiml.MessagingMessage{Body: reply.Text},
	})
}

func turnFromForm(c *gin.Context) (*models.Turn, error) {
	from := c.PostForm("From")
	if from == "" {
		return nil, fmt.Errorf("missing From")
	}

	numMedia := 0
	if raw := c.PostForm("NumMedia"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid NumMedia %q", raw)
		}
		numMedia = min(n, maxMedia)
	}

	body, hasBody := c.GetPostForm("Body")
	if !hasBody && numMedia == 0 {
		return nil, fmt.Errorf("missing Body")
	}

	turn := &models.Turn{
		ID:         uuid.NewString(),
		MessageSID: c.PostForm("MessageSid"),
		From:       from,
		To:         c.PostForm("To"),
		Body:       body,
		ReceivedAt: time.Now().UTC(),
	}
	for i := 0; i < numMedia; i++ {
		url := c.PostForm(fmt.Sprintf("MediaUrl%d", i))
		if url == "" {
			continue
		}
		turn.Media = append(turn.Media, models.Media{
			URL:         url,
			ContentType: c.PostForm(fmt.Sprintf("MediaContentType%d", i)),
		})
	}
	return turn, nil
}
