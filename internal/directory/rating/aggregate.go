// Package rating maintains a listing's per-user ratings and the derived
// average and count.
package rating

import (
	"fmt"
	"strings"
	"time"

	"business-directory/internal/common/errors"
	"business-directory/internal/models"

	"github.com/google/uuid"
)

// CreatedAtPolicy decides what a resubmitted rating does with its timestamp.
type CreatedAtPolicy int

const (
	RefreshOnEdit CreatedAtPolicy = iota
	PreserveOnEdit
)

// ParsePolicy reads "refresh" or "preserve". An empty string means refresh.
func ParsePolicy(s string) (CreatedAtPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "refresh":
		return RefreshOnEdit, nil
	case "preserve":
		return PreserveOnEdit, nil
	default:
		return RefreshOnEdit, fmt.Errorf("unknown rating createdAt policy %q", s)
	}
}

// Submission is one user's rating as sent by the client.
type Submission struct {
	UserID   string
	UserName string
	Score    int
	Comment  string
}

// Aggregator applies submissions and removals to a listing's ratings and
// recomputes the summary.
type Aggregator struct {
	policy CreatedAtPolicy
	newID  func() string
}

// NewAggregator returns an Aggregator that treats resubmissions per policy.
func NewAggregator(policy CreatedAtPolicy) *Aggregator {
	return &Aggregator{policy: policy, newID: uuid.NewString}
}

func (a *Aggregator) Policy() CreatedAtPolicy {
	return a.policy
}

// ValidateScore rejects scores outside MinScore..MaxScore.
func ValidateScore(score int) error {
	if score < models.MinScore || score > models.MaxScore {
		return errors.NewFieldError("rating", fmt.Sprintf("must be between %d and %d", models.MinScore, models.MaxScore))
	}
	return nil
}

// Submit records s on l, replacing the user's earlier rating in place, and
// recomputes the derived fields before returning.
func (a *Aggregator) Submit(l *models.Listing, s Submission, now time.Time) (*models.Listing, error) {
	if err := ValidateScore(s.Score); err != nil {
		return nil, err
	}
	if strings.TrimSpace(s.UserID) == "" {
		return nil, errors.NewFieldError("userId", "is required")
	}

	if i := l.RatingBy(s.UserID); i >= 0 {
		existing := &l.Ratings[i]
		existing.Score = s.Score
		existing.Comment = s.Comment
		existing.UserName = s.UserName
		if a.policy == RefreshOnEdit {
			existing.CreatedAt = now
		}
	} else {
		l.Ratings = append(l.Ratings, models.Rating{
			ID:         a.newID(),
			BusinessID: l.ID,
			UserID:     s.UserID,
			UserName:   s.UserName,
			Score:      s.Score,
			Comment:    s.Comment,
			CreatedAt:  now,
		})
	}

	Recompute(l)
	return l, nil
}

// Remove deletes userID's rating from l and recomputes.
func (a *Aggregator) Remove(l *models.Listing, userID string) (*models.Listing, error) {
	i := l.RatingBy(userID)
	if i < 0 {
		return nil, errors.NewNotFoundError("Rating", l.ID+"/"+userID)
	}
	l.Ratings = append(l.Ratings[:i], l.Ratings[i+1:]...)

	Recompute(l)
	return l, nil
}

// Recompute derives AverageRating and TotalRatings from l.Ratings. The
// average is kept unrounded and is 0 for an empty set.
func Recompute(l *models.Listing) {
	l.TotalRatings = len(l.Ratings)
	if l.TotalRatings == 0 {
		l.AverageRating = 0
		return
	}

	sum := 0
	for _, r := range l.Ratings {
		sum += r.Score
	}
	l.AverageRating = float64(sum) / float64(l.TotalRatings)
}

// Summary is the public read model of a listing's ratings.
func Summary(l *models.Listing) models.RatingSummary {
	ratings := make([]models.Rating, len(l.Ratings))
	copy(ratings, l.Ratings)
	return models.RatingSummary{
		Ratings:       ratings,
		AverageRating: l.AverageRating,
		TotalRatings:  l.TotalRatings,
	}
}
