package models

import "time"

// LeadCapture is the visitor-contact record produced before a phone number is
// disclosed.
type LeadCapture struct {
	BusinessID    string    `json:"businessId"`
	BusinessName  string    `json:"businessName"`
	BusinessEmail string    `json:"businessEmail,omitempty"`
	BusinessPhone string    `json:"businessPhone"`
	VisitorName   string    `json:"customerName"`
	VisitorEmail  string    `json:"customerEmail"`
	VisitorPhone  string    `json:"customerPhone"`
	SessionID     string    `json:"sessionId,omitempty"`
	CapturedAt    time.Time `json:"timestamp"`
}
