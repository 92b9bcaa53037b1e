package models

import "time"

const (
	MinScore = 1
	MaxScore = 5
)

type Rating struct {
	ID         string    `json:"id" db:"id"`
	BusinessID string    `json:"businessId" db:"business_id"`
	UserID     string    `json:"userId" db:"user_id"`
	UserName   string    `json:"userName" db:"user_name"`
	Score      int       `json:"rating" db:"score"`
	Comment    string    `json:"comment,omitempty" db:"comment"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
}

type RatingSummary struct {
	Ratings       []Rating `json:"ratings"`
	AverageRating float64  `json:"averageRating"`
	TotalRatings  int      `json:"totalRatings"`
}
