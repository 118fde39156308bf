package websocket

import (
	"encoding/json"
	"strings"

	"github.com/smis-school/smis/internal/app/models"
)

// Filter selects which entries a client receives. Empty fields match
// everything.
type Filter struct {
	// ActionPrefix matches actions such as "fee." or "auth.login".
	ActionPrefix string `json:"action,omitempty"`
	EntityType   string `json:"entityType,omitempty"`
	UserID       *int64 `json:"userId,omitempty"`
}

// Matches reports whether entry passes the filter.
func (f Filter) Matches(entry models.ActivityLog) bool {
	if f.ActionPrefix != "" && !strings.HasPrefix(entry.Action, f.ActionPrefix) {
		return false
	}
	if f.EntityType != "" && !strings.EqualFold(entry.EntityType, f.EntityType) {
		return false
	}
	if f.UserID != nil && (entry.UserID == nil || *entry.UserID != *f.UserID) {
		return false
	}
	return true
}

// clientMessage is a control frame sent by a client.
type clientMessage struct {
	Type   string `json:"type"`
	Filter Filter `json:"filter"`
}

// handleClientMessage applies a control frame and returns the reply to
// send back, if any.
func (c *Client) handleClientMessage(raw []byte) *Event {
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.logger.Debug().Err(err).Int64("userID", c.userID).Msg("Ignoring malformed stream message")
		return &Event{Type: EventError, Data: "malformed message"}
	}

	switch msg.Type {
	case EventFilter:
		msg.Filter.ActionPrefix = strings.TrimSpace(msg.Filter.ActionPrefix)
		msg.Filter.EntityType = strings.TrimSpace(msg.Filter.EntityType)
		c.SetFilter(msg.Filter)
		return &Event{Type: EventFilter, Data: msg.Filter}
	case "ping":
		return &Event{Type: "pong"}
	default:
		return &Event{Type: EventError, Data: "unknown message type " + msg.Type}
	}
}
