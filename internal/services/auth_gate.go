package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/lperezmo/sms-helper/internal/models"
)

// Verdict is the outcome of a PIN check for one turn
type Verdict int

const (
	// VerdictDenied means neither the turn nor its history carried the PIN
	VerdictDenied Verdict = iota
	// VerdictPINAccepted means the turn itself is the PIN
	VerdictPINAccepted
	// VerdictHistory means a previous message in the conversation was the PIN
	VerdictHistory
)

func (v Verdict) String() string {
	switch v {
	case VerdictPINAccepted:
		return "pin_accepted"
	case VerdictHistory:
		return "history"
	default:
		return "denied"
	}
}

// Authenticated reports whether the turn may proceed
func (v Verdict) Authenticated() bool {
	return v == VerdictPINAccepted || v == VerdictHistory
}

// HistorySource lists recent message bodies sent from one party to another.
// Ordering is not significant.
type HistorySource interface {
	RecentBodies(ctx context.Context, from, to string) ([]string, error)
}

// AuthGate verifies the shared PIN without keeping any session state.
//
// Any message in the bounded history that equals the PIN authenticates the
// conversation for as long as it stays in that history. Replaying the PIN is
// therefore enough to get in; this is accepted behaviour.
type AuthGate struct {
	history HistorySource
}

// NewAuthGate creates an auth gate backed by the given history source
func NewAuthGate(history HistorySource) *AuthGate {
	return &AuthGate{history: history}
}

// Authenticate checks the current message first and then the history.
// A genuine message that equals the PIN is treated as a re-authentication.
func (g *AuthGate) Authenticate(ctx context.Context, pin string, turn *models.Turn) (Verdict, error) {
	pin = strings.TrimSpace(pin)
	if pin == "" {
		return VerdictDenied, fmt.Errorf("%w: empty PIN configured", ErrUnauthenticated)
	}

	if strings.TrimSpace(turn.Body) == pin {
		return VerdictPINAccepted, nil
	}

	bodies, err := g.history.RecentBodies(ctx, turn.From, turn.To)
	if err != nil {
		return VerdictDenied, fmt.Errorf("failed to fetch history: %w", err)
	}

	for _, body := range bodies {
		if strings.TrimSpace(body) == pin {
			return VerdictHistory, nil
		}
	}

	return VerdictDenied, nil
}
