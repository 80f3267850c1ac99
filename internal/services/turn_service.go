package services

import (
	"context"
	"fmt"
	"time"

	"github.com/lperezmo/sms-helper/internal/db"
	"github.com/lperezmo/sms-helper/internal/models"
)

// maxTurnPage caps a single listing
const maxTurnPage = 500

// TurnService keeps the audit trail of handled turns
type TurnService struct {
	db db.DatabaseInterface
}

// NewTurnService creates a new turn service
func NewTurnService(db db.DatabaseInterface) *TurnService {
	return &TurnService{db: db}
}

// Record stores one handled turn
func (s *TurnService) Record(ctx context.Context, rec *models.TurnRecord) error {
	if err := s.validateRecord(rec); err != nil {
		return err
	}

	return s.db.AddTurn(ctx, rec)
}

// List returns recorded turns newest first
func (s *TurnService) List(ctx context.Context, limit, offset int) ([]*models.TurnRecord, error) {
	if limit <= 0 {
		limit = 100 // default limit
	}
	if limit > maxTurnPage {
		limit = maxTurnPage
	}

	if offset < 0 {
		offset = 0
	}

	turns, err := s.db.GetTurns(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}
	if turns == nil {
		turns = []*models.TurnRecord{}
	}
	return turns, nil
}

func (s *TurnService) validateRecord(rec *models.TurnRecord) error {
	if rec == nil {
		return fmt.Errorf("turn record is required")
	}

	if rec.TurnID == "" {
		return fmt.Errorf("turn ID is required")
	}

	if rec.From == "" {
		return fmt.Errorf("sender is required")
	}

	if rec.Verdict == "" || rec.Outcome == "" {
		return fmt.Errorf("verdict and outcome are required")
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	return nil
}
