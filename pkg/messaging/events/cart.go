package events

import (
	"encoding/json"
	"time"

	"github.com/abgdnv/storefront/pkg/messaging"
)

// CartNotificationEvent mirrors a user-facing cart notification.
type CartNotificationEvent struct {
	SessionID   string    `json:"session_id"`
	Kind        string    `json:"kind"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Severity    string    `json:"severity"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func (e CartNotificationEvent) Subject() string {
	return messaging.CartSubjectPrefix + e.Kind
}

func (e CartNotificationEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}
