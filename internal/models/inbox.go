package models

// InboxMessage is what relay mode hands to the on-site processor.
// Message is "<image list> <audio list> <body>".
type InboxMessage struct {
	Sender   string `json:"sender"`
	Message  string `json:"message"`
	DateSent string `json:"date_sent"`
}
