package models

import (
	"bytes"
	"encoding/json"

	"github.com/dsecure/portal/internal/details"
)

// JSONText holds a field that the backend sends as JSON-encoded text.
// It also accepts an inline object or array, which is kept as its raw JSON.
type JSONText string

// UnmarshalJSON implements json.Unmarshaler.
func (t *JSONText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = JSONText(s)
		return nil
	}
	*t = JSONText(data)
	return nil
}

// SystemLogEntry is a single system log record.
type SystemLogEntry struct {
	LogID          int64    `json:"log_id"`
	UserEmail      string   `json:"user_email"`
	LogLevel       string   `json:"log_level"`
	LogMessage     string   `json:"log_message"`
	LogDetailsJSON JSONText `json:"log_details_json,omitempty"`
	CreatedAt      string   `json:"created_at"`

	Details details.Payload `json:"-"`
}

// CommandEntry is a command issued to an erasure agent.
type CommandEntry struct {
	CommandID     int64    `json:"command_id"`
	CommandText   string   `json:"command_text"`
	CommandJSON   JSONText `json:"command_json,omitempty"`
	CommandStatus string   `json:"command_status"`
	IssuedAt      string   `json:"issued_at"`
	UserEmail     string   `json:"user_email,omitempty"`

	Details details.Payload `json:"-"`
}

// SessionEntry is a single login session.
type SessionEntry struct {
	SessionID     int64  `json:"session_id"`
	UserEmail     string `json:"user_email"`
	LoginTime     string `json:"login_time"`
	LogoutTime    string `json:"logout_time,omitempty"`
	IPAddress     string `json:"ip_address"`
	DeviceInfo    string `json:"device_info,omitempty"`
	SessionStatus string `json:"session_status"`
}

// Active reports whether the session has not been logged out.
func (s SessionEntry) Active() bool {
	return s.LogoutTime == ""
}

// NormalizeLogs parses the embedded details of each entry in place.
func NormalizeLogs(entries []SystemLogEntry) []SystemLogEntry {
	for i := range entries {
		entries[i].Details = details.Parse(string(entries[i].LogDetailsJSON))
	}
	return entries
}

// NormalizeCommands parses the embedded command payload of each entry in place.
func NormalizeCommands(entries []CommandEntry) []CommandEntry {
	for i := range entries {
		entries[i].Details = details.Parse(string(entries[i].CommandJSON))
	}
	return entries
}
