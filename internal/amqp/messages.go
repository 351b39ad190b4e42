package amqp

import (
	"encoding/json"
	"time"
)

// Notification kinds consumed by the bot process.
const (
	KindSubscriptionCharged = "subscription_charged"
	KindSubscriptionDue     = "subscription_due"
	KindDailyReminder       = "daily_reminder"
)

// NotificationMessage is one user-facing event. The bot fetches any extra
// context it needs; the message carries only what the sweep already knows.
type NotificationMessage struct {
	Kind             string    `json:"kind"`
	UserID           int64     `json:"user_id"`
	SubscriptionName string    `json:"subscription_name,omitempty"`
	Amount           string    `json:"amount,omitempty"`
	Currency         string    `json:"currency,omitempty"`
	DueDate          string    `json:"due_date,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// ToJSON converts the message to JSON bytes
func (m *NotificationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// NotificationMessageFromJSON creates a message from JSON bytes
func NotificationMessageFromJSON(data []byte) (*NotificationMessage, error) {
	var msg NotificationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
