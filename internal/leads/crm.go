package leads

import (
	"context"
	"fmt"
	"strings"

	"business-directory/internal/common/zoho"
	"business-directory/internal/models"
)

// LeadCRM is the part of the Zoho client the CRM sink uses.
type LeadCRM interface {
	CreateLead(ctx context.Context, lead *zoho.Lead) (string, error)
	SearchLeads(ctx context.Context, email string) ([]zoho.Lead, error)
}

// CRMSink records the visitor as a Zoho CRM lead against the business. A
// visitor already known to the CRM for the same business is not re-created.
type CRMSink struct {
	crm LeadCRM
}

func NewCRMSink(crm LeadCRM) *CRMSink {
	return &CRMSink{crm: crm}
}

func (c *CRMSink) Send(ctx context.Context, lead models.LeadCapture) error {
	existing, err := c.crm.SearchLeads(ctx, lead.VisitorEmail)
	if err != nil {
		return err
	}
	for _, l := range existing {
		if l.Company == lead.BusinessName {
			return nil
		}
	}

	first, last := splitName(lead.VisitorName)
	_, err = c.crm.CreateLead(ctx, &zoho.Lead{
		FirstName:   first,
		LastName:    last,
		Email:       lead.VisitorEmail,
		Phone:       lead.VisitorPhone,
		Company:     lead.BusinessName,
		Source:      "Directory",
		Description: fmt.Sprintf("Requested contact for %s (%s)", lead.BusinessName, lead.BusinessID),
	})
	return err
}

// splitName puts everything after the first word into the last name; Zoho
// requires Last_Name, so a single word goes there.
func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", "Unknown"
	case 1:
		return "", parts[0]
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
