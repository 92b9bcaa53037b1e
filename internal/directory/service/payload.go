package service

import (
	"strings"

	"business-directory/internal/common/errors"
	"business-directory/internal/common/validation"
	"business-directory/internal/media"
	"business-directory/internal/models"
)

var listingSchema = validation.MustCompileSchema(`{
  "type": "object",
  "properties": {
    "businessName": {"type": "string", "minLength": 1, "maxLength": 200},
    "category":     {"type": "string", "enum": ["Restaurant", "Retail", "Technology", "Healthcare", "Education", "Real Estate", "Automotive", "Other"]},
    "description":  {"type": "string", "minLength": 1, "maxLength": 5000},
    "email":        {"type": "string", "minLength": 1},
    "phone":        {"type": "string", "minLength": 1},
    "address":      {"type": "string", "minLength": 1},
    "city":         {"type": "string", "minLength": 1, "maxLength": 100}
  },
  "required": ["businessName", "category", "description", "email", "phone", "address", "city"]
}`)

// normalizePayload trims free-text fields. City is kept verbatim so that the
// stored value is exactly what facet matching will compare against.
func normalizePayload(p models.ListingPayload) models.ListingPayload {
	p.Name = strings.TrimSpace(p.Name)
	p.Description = strings.TrimSpace(p.Description)
	p.Email = strings.TrimSpace(p.Email)
	p.Phone = strings.TrimSpace(p.Phone)
	p.Address = strings.TrimSpace(p.Address)
	return p
}

type payloadDoc struct {
	Name        string `json:"businessName,omitempty"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Address     string `json:"address,omitempty"`
	City        string `json:"city,omitempty"`
}

// validatePayload reports every failing field at once and resolves the image
// into raw bytes (new upload) or a kept reference.
func validatePayload(p models.ListingPayload, maxImage int64) (models.ListingPayload, error) {
	doc := payloadDoc{
		Name:        p.Name,
		Category:    string(p.Category),
		Description: p.Description,
		Email:       p.Email,
		Phone:       p.Phone,
		Address:     p.Address,
		City:        p.City,
	}

	fields := map[string]string{}
	result, err := listingSchema.Validate(doc)
	if err != nil {
		return p, err
	}
	for field, msg := range result.FieldMessages() {
		fields[field] = msg
	}

	if _, bad := fields["email"]; !bad && !validation.ValidateEmail(p.Email) {
		fields["email"] = "Please enter a valid email address"
	}
	if _, bad := fields["phone"]; !bad && !validation.ValidateLeadPhone(p.Phone) {
		fields["phone"] = "Please enter a valid phone number"
	}

	if data, _, isData, err := media.DecodeDataURL(p.Image); isData {
		if err != nil {
			if se, ok := errors.AsStandard(err); ok {
				for k, v := range se.Fields {
					fields[k] = v
				}
			}
		} else {
			p.ImageData = data
			p.Image = ""
		}
	}
	if len(p.ImageData) > 0 {
		if err := media.CheckSize(p.ImageData, maxImage); err != nil {
			fields["image"] = "Image must be 5MB or smaller"
		}
	}

	if len(fields) > 0 {
		return p, errors.NewValidationError(fields)
	}
	return p, nil
}

// checkImageRef accepts a plain image reference only when it names the
// listing's own current image. New images must arrive as an upload or a data
// URL, so a listing only ever holds media it stored itself.
func checkImageRef(p models.ListingPayload, current string) error {
	if len(p.ImageData) > 0 || p.Image == "" || p.Image == current {
		return nil
	}
	return errors.NewFieldError("image", "Please upload a new image or keep the current one")
}
