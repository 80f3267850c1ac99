package twilio

import (
	"context"
	"errors"
	"fmt"

	twiliogo "github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// MessagesAPI is the part of the Twilio REST API used by the assistant
type MessagesAPI interface {
	ListMessage(params *openapi.ListMessageParams) ([]openapi.ApiV2010Message, error)
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// Client reads conversation history and sends messages through Twilio
type Client struct {
	api          MessagesAPI
	historyLimit int
}

// NewClient creates a Twilio client for the given account
func NewClient(accountSID, authToken string, historyLimit int) *Client {
	rest := twiliogo.NewRestClientWithParams(twiliogo.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return NewClientWithAPI(rest.Api, historyLimit)
}

// NewClientWithAPI wraps an existing messages API
func NewClientWithAPI(api MessagesAPI, historyLimit int) *Client {
	if historyLimit <= 0 {
		historyLimit = 100
	}
	return &Client{api: api, historyLimit: historyLimit}
}

// RecentBodies lists the bodies of the most recent messages sent from one
// number to another, bounded by the history limit
func (c *Client) RecentBodies(ctx context.Context, from, to string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	params := &openapi.ListMessageParams{}
	params.SetFrom(from)
	params.SetTo(to)
	params.SetLimit(c.historyLimit)

	messages, err := c.api.ListMessage(params)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	bodies := make([]string, 0, len(messages))
	for _, m := range messages {
		if m.Body != nil {
			bodies = append(bodies, *m.Body)
		}
	}
	return bodies, nil
}

// SendSMS sends body to the given number from the assistant's number
func (c *Client) SendSMS(ctx context.Context, to, from, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if to == "" || from == "" {
		return errors.New("both to and from numbers are required")
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(from)
	params.SetBody(body)

	if _, err := c.api.CreateMessage(params); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}
