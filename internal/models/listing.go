package models

import "time"

type Category string

const (
	CategoryRestaurant Category = "Restaurant"
	CategoryRetail     Category = "Retail"
	CategoryTechnology Category = "Technology"
	CategoryHealthcare Category = "Healthcare"
	CategoryEducation  Category = "Education"
	CategoryRealEstate Category = "Real Estate"
	CategoryAutomotive Category = "Automotive"
	CategoryOther      Category = "Other"
)

// Categories lists the closed category set in display order.
var Categories = []Category{
	CategoryRestaurant,
	CategoryRetail,
	CategoryTechnology,
	CategoryHealthcare,
	CategoryEducation,
	CategoryRealEstate,
	CategoryAutomotive,
	CategoryOther,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Listing is a business's directory entry. A nil OwnerID marks an
// admin-authored listing.
type Listing struct {
	ID             string    `json:"id" db:"id"`
	Name           string    `json:"businessName" db:"name"`
	Category       Category  `json:"category" db:"category"`
	Description    string    `json:"description" db:"description"`
	Email          string    `json:"email" db:"email"`
	Phone          string    `json:"phone,omitempty" db:"phone"`
	Address        string    `json:"address" db:"address"`
	City           string    `json:"city" db:"city"`
	Image          string    `json:"image,omitempty" db:"image"`
	OwnerID        *string   `json:"ownerId" db:"owner_id"`
	IsAdminListing bool      `json:"isAdminListing" db:"is_admin_listing"`
	Ratings        []Rating  `json:"ratings" db:"-"`
	AverageRating  float64   `json:"averageRating" db:"average_rating"`
	TotalRatings   int       `json:"totalRatings" db:"total_ratings"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt" db:"updated_at"`
}

func (l *Listing) OwnedBy(userID string) bool {
	return l.OwnerID != nil && *l.OwnerID == userID
}

// RatingBy returns the index of userID's rating, or -1.
func (l *Listing) RatingBy(userID string) int {
	for i := range l.Ratings {
		if l.Ratings[i].UserID == userID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy safe to hand out of a shared snapshot.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	out := *l
	if l.OwnerID != nil {
		owner := *l.OwnerID
		out.OwnerID = &owner
	}
	if l.Ratings != nil {
		out.Ratings = make([]Rating, len(l.Ratings))
		copy(out.Ratings, l.Ratings)
	}
	return &out
}

// WithoutPhone hides the phone number for contact-gated views.
func (l *Listing) WithoutPhone() *Listing {
	out := l.Clone()
	out.Phone = ""
	return out
}

// ListingPayload is the create/update input for a listing. ImageData holds a
// new upload; Image keeps an already stored reference.
type ListingPayload struct {
	Name        string   `json:"businessName"`
	Category    Category `json:"category"`
	Description string   `json:"description"`
	Email       string   `json:"email"`
	Phone       string   `json:"phone"`
	Address     string   `json:"address"`
	City        string   `json:"city"`
	Image       string   `json:"image,omitempty"`
	ImageData   []byte   `json:"-"`
	ImageName   string   `json:"-"`
}
