package service

import (
	"context"

	"business-directory/internal/common/errors"
	"business-directory/internal/directory/contactgate"
	"business-directory/internal/models"

	"go.opentelemetry.io/otel/attribute"
)

func (s *Service) requireGate() error {
	if s.gate == nil {
		return errors.NewUnavailableError("contact-gate", nil)
	}
	return nil
}

// RevealContact asks for a business's phone number on behalf of the
// visitor session.
func (s *Service) RevealContact(ctx context.Context, session models.Session, businessID string) (_ *contactgate.RevealResult, err error) {
	ctx, done := s.begin(ctx, "reveal", attribute.String("listing.id", businessID))
	defer func() { done(err) }()

	if err := s.requireGate(); err != nil {
		return nil, err
	}
	l, err := s.load(ctx, businessID)
	if err != nil {
		return nil, err
	}

	return s.gate.RequestReveal(ctx, session, l)
}

// SubmitLead sends the visitor's details and, when valid, reveals the phone.
func (s *Service) SubmitLead(ctx context.Context, session models.Session, businessID string, form contactgate.LeadForm) (_ *contactgate.RevealResult, err error) {
	ctx, done := s.begin(ctx, "submit_lead", attribute.String("listing.id", businessID))
	defer func() { done(err) }()

	if err := s.requireGate(); err != nil {
		return nil, err
	}
	l, err := s.load(ctx, businessID)
	if err != nil {
		return nil, err
	}

	res, err := s.gate.Submit(ctx, session, l, form)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// CancelContact closes an open lead form without submitting it.
func (s *Service) CancelContact(ctx context.Context, session models.Session, businessID string) (contactgate.State, error) {
	if err := s.requireGate(); err != nil {
		return "", err
	}
	return s.gate.Cancel(ctx, session, businessID)
}
