package handlers

import (
	"context"

	"github.com/lperezmo/sms-helper/internal/models"
)

// AssistantInterface handles one inbound turn and always yields a reply
type AssistantInterface interface {
	HandleTurn(ctx context.Context, turn *models.Turn) models.Reply
}

// TurnListerInterface reads the turn audit log
type TurnListerInterface interface {
	List(ctx context.Context, limit, offset int) ([]*models.TurnRecord, error)
}

// AdminAuthenticatorInterface checks admin API credentials
type AdminAuthenticatorInterface interface {
	Authenticate(username, password, totpCode string) error
}
