package amqp

import (
	"testing"
	"time"
)

func TestNotificationMessage_JSON(t *testing.T) {
	timestamp := time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)
	msg := &NotificationMessage{
		Kind:             KindSubscriptionCharged,
		UserID:           42,
		SubscriptionName: "Netflix",
		Amount:           "-199.00",
		Currency:         "UAH",
		DueDate:          "15.07.2024",
		Timestamp:        timestamp,
	}

	jsonBytes, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := NotificationMessageFromJSON(jsonBytes)
	if err != nil {
		t.Fatalf("NotificationMessageFromJSON() error = %v", err)
	}

	if parsed.Kind != msg.Kind {
		t.Errorf("Parsed Kind = %v, want %v", parsed.Kind, msg.Kind)
	}
	if parsed.UserID != msg.UserID {
		t.Errorf("Parsed UserID = %v, want %v", parsed.UserID, msg.UserID)
	}
	if parsed.SubscriptionName != msg.SubscriptionName {
		t.Errorf("Parsed SubscriptionName = %v, want %v", parsed.SubscriptionName, msg.SubscriptionName)
	}
	if !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("Parsed Timestamp = %v, want %v", parsed.Timestamp, msg.Timestamp)
	}
}

func TestNotificationMessage_InvalidJSON(t *testing.T) {
	invalidJSON := []byte(`{"user_id": "not_a_number"}`)

	_, err := NotificationMessageFromJSON(invalidJSON)
	if err == nil {
		t.Error("NotificationMessageFromJSON() should fail with invalid JSON")
	}
}

func TestNotificationMessage_OmitsEmptyFields(t *testing.T) {
	msg := &NotificationMessage{Kind: KindDailyReminder, UserID: 7, Timestamp: time.Now()}

	jsonBytes, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	for _, field := range []string{"subscription_name", "amount", "due_date"} {
		if contains(string(jsonBytes), field) {
			t.Errorf("empty field %q serialized: %s", field, jsonBytes)
		}
	}
}

// Helper function for string contains check
func contains(s, substr string) bool {
	return len(s) >= len(substr) && (s == substr || func() bool {
		for i := 0; i <= len(s)-len(substr); i++ {
			if s[i:i+len(substr)] == substr {
				return true
			}
		}
		return false
	}())
}
