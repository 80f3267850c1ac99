package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Layouts accepted for the reminder time and day fields
const (
	ReminderTimeLayout = "15:04"
	ReminderDayLayout  = "2006-01-02"
)

// Flag is a boolean that travels as the string "True" or "False".
// The scheduling endpoint only understands that form.
type Flag bool

// MarshalJSON encodes the flag as "True" or "False"
func (f Flag) MarshalJSON() ([]byte, error) {
	if f {
		return []byte(`"True"`), nil
	}
	return []byte(`"False"`), nil
}

// UnmarshalJSON accepts a JSON boolean or a case-insensitive "true"/"false" string
func (f *Flag) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = Flag(b)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("flag must be a boolean or string: %s", string(data))
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		*f = true
	case "false":
		*f = false
	default:
		return fmt.Errorf("invalid flag value %q", s)
	}
	return nil
}

// String returns the wire form of the flag
func (f Flag) String() string {
	if f {
		return "True"
	}
	return "False"
}

// Reminder is the structured scheduling request sent downstream.
// Time and Day are civil local time; they are not checked against now.
type Reminder struct {
	Time        string `json:"time"`
	Day         string `json:"day"`
	MessageBody string `json:"message_body"`
	Call        Flag   `json:"call"`
	Twilio      Flag   `json:"twilio"`
	ToNumber    string `json:"to_number"`
}

// ToolName enumerates the functions exposed to the model
type ToolName string

// ToolScheduleReminder is the only registered tool
const ToolScheduleReminder ToolName = "schedule_reminder"

// ParseToolName maps a model-supplied name onto the closed set of tools
func ParseToolName(name string) (ToolName, bool) {
	switch ToolName(name) {
	case ToolScheduleReminder:
		return ToolScheduleReminder, true
	default:
		return "", false
	}
}

// ToolCall is a decoded tool invocation owned by a single request
type ToolCall struct {
	Name ToolName
	Args ScheduleReminderArgs
}

// ScheduleReminderArgs are the arguments of schedule_reminder
type ScheduleReminderArgs struct {
	NaturalLanguageRequest string `json:"natural_language_request"`
	NumberFrom             string `json:"number_from,omitempty"`
}
