package twilio

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"sort"
	"testing"

	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockMessagesAPI struct {
	mock.Mock
}

func (m *mockMessagesAPI) ListMessage(params *openapi.ListMessageParams) ([]openapi.ApiV2010Message, error) {
	args := m.Called(params)
	msgs, _ := args.Get(0).([]openapi.ApiV2010Message)
	return msgs, args.Error(1)
}

func (m *mockMessagesAPI) CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error) {
	args := m.Called(params)
	msg, _ := args.Get(0).(*openapi.ApiV2010Message)
	return msg, args.Error(1)
}

func strPtr(s string) *string { return &s }

func TestNewClient(t *testing.T) {
	c := NewClient("AC123", "token123", 0)
	require.NotNil(t, c)
	assert.NotNil(t, c.api)
	assert.Equal(t, 100, c.historyLimit)
}

func TestRecentBodies(t *testing.T) {
	api := new(mockMessagesAPI)
	api.On("ListMessage", mock.MatchedBy(func(p *openapi.ListMessageParams) bool {
		return p.From != nil && *p.From == "+15551234567" &&
			p.To != nil && *p.To == "+15557654321" &&
			p.Limit != nil && *p.Limit == 20
	})).Return([]openapi.ApiV2010Message{
		{Body: strPtr("remind me at 6")},
		{Body: nil},
		{Body: strPtr("4321")},
	}, nil)

	bodies, err := NewClientWithAPI(api, 20).RecentBodies(context.Background(), "+15551234567", "+15557654321")
	require.NoError(t, err)

	assert.Equal(t, []string{"remind me at 6", "4321"}, bodies)
	api.AssertExpectations(t)
}

func TestRecentBodies_Error(t *testing.T) {
	api := new(mockMessagesAPI)
	api.On("ListMessage", mock.Anything).Return(nil, errors.New("401 unauthorized"))

	bodies, err := NewClientWithAPI(api, 20).RecentBodies(context.Background(), "+1", "+2")
	assert.Error(t, err)
	assert.Nil(t, bodies)
}

func TestRecentBodies_CancelledContext(t *testing.T) {
	api := new(mockMessagesAPI)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClientWithAPI(api, 20).RecentBodies(ctx, "+1", "+2")
	assert.ErrorIs(t, err, context.Canceled)
	api.AssertNotCalled(t, "ListMessage", mock.Anything)
}

func TestSendSMS(t *testing.T) {
	api := new(mockMessagesAPI)
	api.On("CreateMessage", mock.MatchedBy(func(p *openapi.CreateMessageParams) bool {
		return *p.To == "+15551234567" && *p.From == "+15557654321" && *p.Body == "Your reminder has been scheduled."
	})).Return(&openapi.ApiV2010Message{Sid: strPtr("SM1")}, nil)

	err := NewClientWithAPI(api, 20).SendSMS(context.Background(), "+15551234567", "+15557654321", "Your reminder has been scheduled.")
	require.NoError(t, err)
	api.AssertExpectations(t)
}

func TestSendSMS_Errors(t *testing.T) {
	api := new(mockMessagesAPI)
	api.On("CreateMessage", mock.Anything).Return(nil, errors.New("invalid number"))
	c := NewClientWithAPI(api, 20)

	assert.Error(t, c.SendSMS(context.Background(), "", "+1", "x"))
	assert.Error(t, c.SendSMS(context.Background(), "+1", "+2", "x"))
}

// sign computes the X-Twilio-Signature for url and params
func sign(token, url string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	data := url
	for _, k := range keys {
		data += k + params[k]
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestSignatureValidator(t *testing.T) {
	const token = "token123"
	url := "https://example.com/sms"
	params := map[string]string{"From": "+15551234567", "Body": "hello", "To": "+15557654321"}

	v := NewSignatureValidator(token)

	assert.True(t, v.Validate(url, params, sign(token, url, params)))
	assert.False(t, v.Validate(url, params, sign("other-token", url, params)))
	assert.False(t, v.Validate(url, params, ""))

	tampered := map[string]string{"From": "+15551234567", "Body": "goodbye", "To": "+15557654321"}
	assert.False(t, v.Validate(url, tampered, sign(token, url, params)))
}
