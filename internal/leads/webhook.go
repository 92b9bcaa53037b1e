package leads

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"business-directory/internal/common/errors"
	httpclient "business-directory/internal/common/http"
	"business-directory/internal/models"
)

// webhookPayload is the body lead webhooks have always received.
type webhookPayload struct {
	Timestamp     string `json:"timestamp"`
	BusinessName  string `json:"businessName"`
	BusinessID    string `json:"businessId"`
	CustomerName  string `json:"customerName"`
	CustomerEmail string `json:"customerEmail"`
	CustomerPhone string `json:"customerPhone"`
	BusinessPhone string `json:"businessPhone"`
}

// WebhookSink posts each lead as JSON to a configured URL.
type WebhookSink struct {
	url    string
	client *httpclient.Client
}

// NewWebhookSink uses a client with a 10s timeout when client is nil.
func NewWebhookSink(url string, client *httpclient.Client) *WebhookSink {
	if client == nil {
		client = httpclient.NewClient(10 * time.Second)
	}
	return &WebhookSink{url: url, client: client}
}

// Send reports a rejected request as an external service error. Transport
// failures and transient statuses come back as retryable unavailability.
func (w *WebhookSink) Send(ctx context.Context, lead models.LeadCapture) error {
	body := webhookPayload{
		Timestamp:     lead.CapturedAt.UTC().Format(time.RFC3339Nano),
		BusinessName:  lead.BusinessName,
		BusinessID:    lead.BusinessID,
		CustomerName:  lead.VisitorName,
		CustomerEmail: lead.VisitorEmail,
		CustomerPhone: lead.VisitorPhone,
		BusinessPhone: lead.BusinessPhone,
	}

	err := w.client.DoJSON(ctx, http.MethodPost, w.url, nil, body, nil)
	if err == nil {
		return nil
	}

	var statusErr *httpclient.StatusError
	if stderrors.As(err, &statusErr) && !statusErr.Transient() {
		return errors.NewExternalServiceError("lead-webhook", err)
	}
	return errors.NewUnavailableError("lead-webhook", err)
}
