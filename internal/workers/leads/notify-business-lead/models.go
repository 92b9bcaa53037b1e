package notifybusinesslead

import "business-directory/internal/models"

// Input is the lead as published by the directory's Zeebe lead sink.
type Input = models.LeadCapture

type Output struct {
	NotificationID string `json:"notificationId"`
	Status         string `json:"status"` // "sent", "disabled"
	EmailMessageID string `json:"emailMessageId,omitempty"`
	SMSMessageID   string `json:"smsMessageId,omitempty"`
	SentAt         string `json:"sentAt"` // ISO 8601
}

const (
	StatusSent     = "sent"
	StatusDisabled = "disabled"
)
