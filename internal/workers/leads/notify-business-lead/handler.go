// Package notifybusinesslead tells a business owner that a visitor asked
// for their phone number, by email and optionally by SMS.
package notifybusinesslead

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html"
	"strings"
	"time"

	awsclient "business-directory/internal/common/aws"
	"business-directory/internal/common/errors"
	"business-directory/internal/common/logger"
	"business-directory/internal/common/metrics"
	"business-directory/internal/models"
	"business-directory/internal/storage"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const TaskType = "notify-business-lead"

type EmailSender interface {
	Send(ctx context.Context, e awsclient.Email) (string, error)
}

type SMSSender interface {
	Send(ctx context.Context, phone, message string) (string, error)
}

// ListingLookup fills in the owner's address when the lead did not carry
// one. Implemented by storage.Store.
type ListingLookup interface {
	GetListing(ctx context.Context, id string) (*models.Listing, error)
}

type Handler struct {
	config   *Config
	mailer   EmailSender
	texter   SMSSender
	listings ListingLookup
	logger   logger.Logger
	errors   *errors.ErrorHandler
	now      func() time.Time
}

// NewHandler wires the worker. mailer and texter may be nil when the
// channel is disabled; listings may be nil.
func NewHandler(config *Config, mailer EmailSender, texter SMSSender, listings ListingLookup, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		mailer:   mailer,
		texter:   texter,
		listings: listings,
		logger:   log,
		errors:   errors.NewErrorHandler(log),
		now:      time.Now,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	defer func() {
		metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	}()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.fail(ctx, client, job, errors.NewFieldError("variables", fmt.Sprintf("parse input: %v", err)))
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	cmd, err := client.NewCompleteJobCommand().JobKey(job.Key).VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{"error": err})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{"error": err})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.CodeOf(err))).Inc()
	h.errors.HandleJobError(ctx, client, job, err)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if strings.TrimSpace(input.BusinessID) == "" {
		return nil, errors.NewFieldError("businessId", "is required")
	}

	if input.BusinessEmail == "" && h.listings != nil {
		l, err := h.listings.GetListing(ctx, input.BusinessID)
		if err != nil {
			if stderrors.Is(err, storage.ErrNotFound) {
				return nil, errors.NewNotFoundError("Listing", input.BusinessID)
			}
			return nil, errors.NewUnavailableError("storage", err).WithMetadata("businessId", input.BusinessID)
		}
		input.BusinessEmail = l.Email
		if input.BusinessName == "" {
			input.BusinessName = l.Name
		}
	}

	out := &Output{
		NotificationID: uuid.NewString(),
		Status:         StatusDisabled,
		SentAt:         h.now().UTC().Format(time.RFC3339),
	}

	if h.config.EmailEnabled && h.mailer != nil && input.BusinessEmail != "" {
		id, err := h.mailer.Send(ctx, leadEmail(input))
		if err != nil {
			return nil, errors.NewNotificationSendFailedError("email", err).
				WithMetadata("businessId", input.BusinessID)
		}
		out.EmailMessageID = id
		out.Status = StatusSent
	}

	// SMS is a courtesy; a failed text never fails the job once the email
	// went out.
	if h.config.SMSEnabled && h.texter != nil && input.BusinessPhone != "" {
		id, err := h.texter.Send(ctx, input.BusinessPhone, leadSMS(input))
		switch {
		case err == nil:
			out.SMSMessageID = id
			out.Status = StatusSent
		case out.EmailMessageID == "":
			return nil, errors.NewNotificationSendFailedError("sms", err).
				WithMetadata("businessId", input.BusinessID)
		default:
			h.logger.Warn("lead SMS failed", map[string]interface{}{
				"businessId": input.BusinessID,
				"error":      err,
			})
		}
	}

	h.logger.Info("lead notification processed", map[string]interface{}{
		"businessId": input.BusinessID,
		"status":     out.Status,
	})
	return out, nil
}

func leadEmail(in *Input) awsclient.Email {
	subject := fmt.Sprintf("New enquiry for %s", in.BusinessName)
	text := fmt.Sprintf(
		"%s viewed your phone number on the directory.\n\nName: %s\nEmail: %s\nPhone: %s\n",
		in.VisitorName, in.VisitorName, in.VisitorEmail, in.VisitorPhone,
	)
	htmlBody := fmt.Sprintf(
		"<p><strong>%s</strong> viewed your phone number on the directory.</p><ul><li>Email: %s</li><li>Phone: %s</li></ul>",
		html.EscapeString(in.VisitorName), html.EscapeString(in.VisitorEmail), html.EscapeString(in.VisitorPhone),
	)
	return awsclient.Email{To: in.BusinessEmail, Subject: subject, TextBody: text, HTMLBody: htmlBody}
}

func leadSMS(in *Input) string {
	return fmt.Sprintf("New lead for %s: %s, %s, %s", in.BusinessName, in.VisitorName, in.VisitorPhone, in.VisitorEmail)
}
