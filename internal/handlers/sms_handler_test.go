package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/lperezmo/sms-helper/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAssistant struct {
	mock.Mock
}

func (m *mockAssistant) HandleTurn(ctx context.Context, turn *models.Turn) models.Reply {
	return m.Called(ctx, turn).Get(0).(models.Reply)
}

func setupSMSRouter(assistant AssistantInterface) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/sms", NewSMSHandler(assistant).HandleSMS)
	return r
}

func postForm(r *gin.Engine, form url.Values) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/sms", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.ServeHTTP(w, req)
	return w
}

func TestHandleSMS_Reply(t *testing.T) {
	assistant := new(mockAssistant)
	var got *models.Turn
	assistant.On("HandleTurn", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(1).(*models.Turn) }).
		Return(models.Reply{Text: "Tom & Jerry <3"})
	r := setupSMSRouter(assistant)

	w := postForm(r, url.Values{
		"From":       {"+15551234567"},
		"To":         {"+15557654321"},
		"Body":       {"hello"},
		"MessageSid": {"SM123"},
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/xml")
	assert.Contains(t, w.Body.String(), "<Response>")
	assert.Contains(t, w.Body.String(), "<Message>Tom &amp; Jerry &lt;3</Message>")

	require.NotNil(t, got)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "SM123", got.MessageSID)
	assert.Equal(t, "+15551234567", got.From)
	assert.Equal(t, "+15557654321", got.To)
	assert.Equal(t, "hello", got.Body)
	assert.Empty(t, got.Media)
	assert.False(t, got.ReceivedAt.IsZero())
}

func TestHandleSMS_EmptyReply(t *testing.T) {
	assistant := new(mockAssistant)
	assistant.On("HandleTurn", mock.Anything, mock.Anything).Return(models.Reply{})
	r := setupSMSRouter(assistant)

	w := postForm(r, url.Values{"From": {"+15551234567"}, "Body": {"relay this"}})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Response")
	assert.NotContains(t, w.Body.String(), "<Message")
}

func TestHandleSMS_Media(t *testing.T) {
	assistant := new(mockAssistant)
	var got *models.Turn
	assistant.On("HandleTurn", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(1).(*models.Turn) }).
		Return(models.Reply{})
	r := setupSMSRouter(assistant)

	w := postForm(r, url.Values{
		"From":              {"+15551234567"},
		"NumMedia":          {"3"},
		"MediaUrl0":         {"https://media/0"},
		"MediaContentType0": {"image/jpeg"},
		"MediaUrl1":         {"https://media/1"},
		"MediaContentType1": {"audio/amr"},
		"MediaUrl2":         {""},
	})

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, got)
	assert.Equal(t, "", got.Body)
	assert.Equal(t, []models.Media{
		{URL: "https://media/0", ContentType: "image/jpeg"},
		{URL: "https://media/1", ContentType: "audio/amr"},
	}, got.Media)
}

func TestHandleSMS_EmptyBodyIsStillATurn(t *testing.T) {
	assistant := new(mockAssistant)
	assistant.On("HandleTurn", mock.Anything, mock.Anything).Return(models.Reply{Text: "Please provide security PIN to continue"})
	r := setupSMSRouter(assistant)

	w := postForm(r, url.Values{"From": {"+15551234567"}, "Body": {""}})

	assert.Equal(t, http.StatusOK, w.Code)
	assistant.AssertNumberOfCalls(t, "HandleTurn", 1)
}

func TestHandleSMS_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		form url.Values
	}{
		{name: "missing From", form: url.Values{"Body": {"hello"}}},
		{name: "missing Body and media", form: url.Values{"From": {"+15551234567"}}},
		{name: "invalid NumMedia", form: url.Values{"From": {"+15551234567"}, "Body": {"x"}, "NumMedia": {"many"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assistant := new(mockAssistant)
			r := setupSMSRouter(assistant)

			w := postForm(r, tt.form)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assistant.AssertNotCalled(t, "HandleTurn", mock.Anything, mock.Anything)
		})
	}
}
