package models

import (
	"time"
)

// Notification kinds pushed to the external notification service
const (
	NotifyChallengeReceived = "challenge_received"
	NotifyChallengeAccepted = "challenge_accepted"
	NotifyForfeitRequested  = "forfeit_requested"
	NotifyForfeitDeclined   = "forfeit_declined"
	NotifyMatchFinished     = "match_finished"
)

// Delivery states for outbox rows
const (
	NotificationPending   = "pending"
	NotificationDelivered = "delivered"
	NotificationFailed    = "failed"
)

// MatchNotification is a durable outbox row. Rows are written in the same
// transaction as the state change they announce and delivered asynchronously
// by the notification worker, so a delivery outage never blocks gameplay.
type MatchNotification struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	RecipientID string `gorm:"index;not null" json:"recipient_id"`
	SessionID   string `gorm:"index;not null" json:"session_id"`
	Kind        string `gorm:"type:varchar(32);not null" json:"kind"`
	Payload     string `gorm:"type:text" json:"payload"` // JSON blob forwarded verbatim

	Status      string     `gorm:"type:varchar(16);default:'pending';index" json:"status"`
	Attempts    int        `gorm:"default:0" json:"attempts"`
	LastError   string     `gorm:"type:text" json:"last_error,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`

	Timestamps
}
