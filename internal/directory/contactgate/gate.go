// Package contactgate withholds a business's phone number until the visitor
// has left their contact details, once per (session, business).
package contactgate

import (
	"context"
	"strings"
	"time"

	"business-directory/internal/common/errors"
	"business-directory/internal/common/logger"
	"business-directory/internal/common/metrics"
	"business-directory/internal/common/validation"
	"business-directory/internal/models"
)

// State is where a (session, business) pair sits in the reveal flow.
type State string

const (
	Locked   State = "locked"
	FormOpen State = "form_open"
	Revealed State = "revealed"
)

// LeadForm is what a visitor fills in to see a business phone number.
type LeadForm struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Entry is the persisted gate state for one (session, business) pair.
type Entry struct {
	State     State     `json:"state"`
	Phone     string    `json:"phone,omitempty"`
	Draft     *LeadForm `json:"draft,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StateStore persists gate entries per (session, business) pair.
type StateStore interface {
	// Load returns a Locked entry when nothing is stored for the pair.
	Load(ctx context.Context, sessionID, businessID string) (Entry, error)
	Save(ctx context.Context, sessionID, businessID string, e Entry) error
}

// LeadSink receives captured leads. Delivery is best effort.
type LeadSink interface {
	Send(ctx context.Context, lead models.LeadCapture) error
}

// RevealResult is returned by every gate transition. Phone and WhatsAppURL
// are only set once the pair is Revealed.
type RevealResult struct {
	BusinessID   string    `json:"businessId"`
	State        State     `json:"state"`
	FormRequired bool      `json:"formRequired"`
	Phone        string    `json:"phone,omitempty"`
	WhatsAppURL  string    `json:"whatsappUrl,omitempty"`
	Draft        *LeadForm `json:"draft,omitempty"`
}

type Config struct {
	LeadTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{LeadTimeout: 3 * time.Second}
}

// Gate withholds a listing's phone until the visitor submits a valid lead
// form. State is kept per visitor session and business.
type Gate struct {
	config Config
	store  StateStore
	sink   LeadSink
	logger logger.Logger
	now    func() time.Time
}

// New returns a Gate. A non-positive LeadTimeout falls back to the default.
func New(config Config, store StateStore, sink LeadSink, log logger.Logger) *Gate {
	if config.LeadTimeout <= 0 {
		config.LeadTimeout = DefaultConfig().LeadTimeout
	}
	return &Gate{
		config: config,
		store:  store,
		sink:   sink,
		logger: log.WithFields(map[string]interface{}{"component": "contact-gate"}),
		now:    time.Now,
	}
}

// RequestReveal opens the lead form for a locked pair and re-serves the
// cached phone for a revealed one.
func (g *Gate) RequestReveal(ctx context.Context, session models.Session, listing *models.Listing) (*RevealResult, error) {
	if err := requireSession(session); err != nil {
		return nil, err
	}

	entry, err := g.store.Load(ctx, session.ID, listing.ID)
	if err != nil {
		return nil, err
	}

	switch entry.State {
	case Revealed:
		return revealed(listing.ID, entry.Phone), nil
	case FormOpen:
		return formOpen(listing.ID, entry.Draft), nil
	}

	entry = Entry{State: FormOpen, UpdatedAt: g.now().UTC()}
	if err := g.store.Save(ctx, session.ID, listing.ID, entry); err != nil {
		return nil, err
	}
	metrics.ContactReveals.WithLabelValues(string(FormOpen)).Inc()
	return formOpen(listing.ID, nil), nil
}

// Submit validates the lead form. Invalid input keeps the form open and
// returns a field-level validation error. Valid input is forwarded to the
// lead sink on a best-effort basis and the phone is revealed regardless of
// the sink's outcome.
func (g *Gate) Submit(ctx context.Context, session models.Session, listing *models.Listing, form LeadForm) (*RevealResult, error) {
	if err := requireSession(session); err != nil {
		return nil, err
	}

	entry, err := g.store.Load(ctx, session.ID, listing.ID)
	if err != nil {
		return nil, err
	}
	if entry.State == Revealed {
		return revealed(listing.ID, entry.Phone), nil
	}

	if fieldErrs := validateForm(form); len(fieldErrs) > 0 {
		draft := form
		entry = Entry{State: FormOpen, Draft: &draft, UpdatedAt: g.now().UTC()}
		if err := g.store.Save(ctx, session.ID, listing.ID, entry); err != nil {
			return nil, err
		}
		metrics.ContactReveals.WithLabelValues("invalid").Inc()
		return formOpen(listing.ID, &draft), errors.NewValidationError(fieldErrs)
	}

	g.forwardLead(ctx, session, listing, form)

	entry = Entry{State: Revealed, Phone: listing.Phone, UpdatedAt: g.now().UTC()}
	if err := g.store.Save(ctx, session.ID, listing.ID, entry); err != nil {
		g.logger.Error("failed to persist revealed state", map[string]interface{}{
			"businessId": listing.ID,
			"error":      err,
		})
	}
	metrics.ContactReveals.WithLabelValues(string(Revealed)).Inc()

	return revealed(listing.ID, listing.Phone), nil
}

// Cancel closes an open form and discards its draft. Locked and revealed
// pairs are left as they are.
func (g *Gate) Cancel(ctx context.Context, session models.Session, businessID string) (State, error) {
	if err := requireSession(session); err != nil {
		return "", err
	}

	entry, err := g.store.Load(ctx, session.ID, businessID)
	if err != nil {
		return "", err
	}
	if entry.State != FormOpen {
		return entry.State, nil
	}

	if err := g.store.Save(ctx, session.ID, businessID, Entry{State: Locked, UpdatedAt: g.now().UTC()}); err != nil {
		return "", err
	}
	metrics.ContactReveals.WithLabelValues(string(Locked)).Inc()
	return Locked, nil
}

// State reports the current state without changing it.
func (g *Gate) State(ctx context.Context, session models.Session, businessID string) (State, error) {
	if err := requireSession(session); err != nil {
		return "", err
	}
	entry, err := g.store.Load(ctx, session.ID, businessID)
	if err != nil {
		return "", err
	}
	return entry.State, nil
}

func (g *Gate) forwardLead(ctx context.Context, session models.Session, listing *models.Listing, form LeadForm) {
	if g.sink == nil {
		return
	}

	lead := models.LeadCapture{
		BusinessID:    listing.ID,
		BusinessName:  listing.Name,
		BusinessEmail: listing.Email,
		BusinessPhone: listing.Phone,
		VisitorName:   strings.TrimSpace(form.Name),
		VisitorEmail:  strings.TrimSpace(form.Email),
		VisitorPhone:  strings.TrimSpace(form.Phone),
		SessionID:     session.ID,
		CapturedAt:    g.now().UTC(),
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.config.LeadTimeout)
	defer cancel()

	if err := g.sink.Send(sendCtx, lead); err != nil {
		metrics.LeadSinkFailures.WithLabelValues("gate").Inc()
		g.logger.Warn("lead delivery failed, revealing anyway", map[string]interface{}{
			"businessId": listing.ID,
			"error":      err,
		})
	}
}

func validateForm(form LeadForm) map[string]string {
	fieldErrs := map[string]string{}
	if strings.TrimSpace(form.Name) == "" {
		fieldErrs["name"] = "Name is required"
	}
	if !validation.ValidateLeadEmail(form.Email) {
		fieldErrs["email"] = "Please enter a valid email address"
	}
	if strings.TrimSpace(form.Phone) == "" {
		fieldErrs["phone"] = "Phone number is required"
	} else if !validation.ValidateLeadPhone(form.Phone) {
		fieldErrs["phone"] = "Please enter a valid phone number"
	}
	return fieldErrs
}

func requireSession(session models.Session) error {
	if strings.TrimSpace(session.ID) == "" {
		return errors.NewFieldError("sessionId", "is required")
	}
	return nil
}

func formOpen(businessID string, draft *LeadForm) *RevealResult {
	return &RevealResult{BusinessID: businessID, State: FormOpen, FormRequired: true, Draft: draft}
}

func revealed(businessID, phone string) *RevealResult {
	return &RevealResult{
		BusinessID:  businessID,
		State:       Revealed,
		Phone:       phone,
		WhatsAppURL: WhatsAppURL(phone),
	}
}

// WhatsAppURL builds a wa.me link from the digits of phone.
func WhatsAppURL(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return "https://wa.me/" + b.String()
}
