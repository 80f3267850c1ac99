package models

import "time"

// TurnRecord is the audit row kept for every handled turn
type TurnRecord struct {
	ID         int64     `json:"id"`
	TurnID     string    `json:"turnId"`
	MessageSID string    `json:"messageSid"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Body       string    `json:"body"`
	MediaCount int       `json:"mediaCount"`
	Verdict    string    `json:"verdict"`
	Outcome    string    `json:"outcome"`
	Reply      string    `json:"reply"`
	CreatedAt  time.Time `json:"createdAt"`
}
