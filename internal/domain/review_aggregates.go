// Package domain holds the denormalized read-model state owned by the
// catalog and the pure fold functions that maintain it incrementally.
package domain

import (
	"math"
	"time"
)

// recentReviewsLimit bounds the most-recent-first review id list.
const recentReviewsLimit = 5

// RatingMin and RatingMax bound the accepted review rating values.
const (
	RatingMin = 1
	RatingMax = 5
)

// ReviewAggregates is the running review summary attached to a product. It is
// mutated only by the fold functions below, one event at a time, never by
// rescanning review history.
type ReviewAggregates struct {
	AverageRating       float64     `json:"average_rating"`
	TotalReviewCount    int         `json:"total_review_count"`
	VerifiedReviewCount int         `json:"verified_review_count"`
	RatingDistribution  map[int]int `json:"rating_distribution"`
	RecentReviews       []string    `json:"recent_reviews"`
	LastReviewDate      string      `json:"last_review_date,omitempty"`
	LastUpdated         time.Time   `json:"last_updated"`
}

// NewReviewAggregates returns the zero state a product starts with.
func NewReviewAggregates() ReviewAggregates {
	return ReviewAggregates{
		RatingDistribution: emptyDistribution(),
		RecentReviews:      []string{},
	}
}

func emptyDistribution() map[int]int {
	dist := make(map[int]int, RatingMax)
	for r := RatingMin; r <= RatingMax; r++ {
		dist[r] = 0
	}
	return dist
}

// round2 is the single rounding rule for average_rating so snapshots stay
// comparable across writes.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// normalized returns a deep copy with the distribution and recent list
// guaranteed non-nil, so folds over a freshly-unmarshalled aggregate never
// touch a nil map.
func (a ReviewAggregates) normalized() ReviewAggregates {
	out := a
	out.RatingDistribution = make(map[int]int, RatingMax)
	for r := RatingMin; r <= RatingMax; r++ {
		out.RatingDistribution[r] = a.RatingDistribution[r]
	}
	out.RecentReviews = make([]string, len(a.RecentReviews))
	copy(out.RecentReviews, a.RecentReviews)
	return out
}

// ApplyReviewCreated folds one new review into the aggregate.
func ApplyReviewCreated(agg ReviewAggregates, reviewID string, rating int, verified bool, createdAt string, now time.Time) ReviewAggregates {
	next := agg.normalized()

	newCount := agg.TotalReviewCount + 1
	next.TotalReviewCount = newCount
	if verified {
		next.VerifiedReviewCount = agg.VerifiedReviewCount + 1
	}
	next.AverageRating = round2((agg.AverageRating*float64(agg.TotalReviewCount) + float64(rating)) / float64(newCount))

	if rating >= RatingMin && rating <= RatingMax {
		next.RatingDistribution[rating]++
	}

	recent := append([]string{reviewID}, next.RecentReviews...)
	if len(recent) > recentReviewsLimit {
		recent = recent[:recentReviewsLimit]
	}
	next.RecentReviews = recent

	next.LastReviewDate = createdAt
	next.LastUpdated = now.UTC()
	return next
}

// ApplyReviewUpdated folds a rating change into the aggregate. The review
// count is unchanged; only the average and the distribution move. Callers
// short-circuit when oldRating == newRating, so a zero count here means the
// update raced ahead of its create and the aggregate is left untouched.
func ApplyReviewUpdated(agg ReviewAggregates, oldRating, newRating int, now time.Time) ReviewAggregates {
	next := agg.normalized()
	if agg.TotalReviewCount == 0 {
		return next
	}

	count := float64(agg.TotalReviewCount)
	next.AverageRating = round2((agg.AverageRating*count - float64(oldRating) + float64(newRating)) / count)

	if oldRating >= RatingMin && oldRating <= RatingMax {
		next.RatingDistribution[oldRating] = maxInt(0, next.RatingDistribution[oldRating]-1)
	}
	if newRating >= RatingMin && newRating <= RatingMax {
		next.RatingDistribution[newRating]++
	}

	next.LastUpdated = now.UTC()
	return next
}

// ApplyReviewDeleted removes one review from the aggregate. Decrements floor
// at zero so a delete without a matched create never drives counts negative.
func ApplyReviewDeleted(agg ReviewAggregates, reviewID string, rating int, verified bool, now time.Time) ReviewAggregates {
	next := agg.normalized()

	newCount := maxInt(0, agg.TotalReviewCount-1)
	next.TotalReviewCount = newCount
	if verified {
		next.VerifiedReviewCount = maxInt(0, agg.VerifiedReviewCount-1)
	}

	if newCount == 0 {
		next.AverageRating = 0.0
	} else {
		next.AverageRating = round2((agg.AverageRating*float64(agg.TotalReviewCount) - float64(rating)) / float64(newCount))
	}

	if rating >= RatingMin && rating <= RatingMax {
		next.RatingDistribution[rating] = maxInt(0, next.RatingDistribution[rating]-1)
	}

	recent := next.RecentReviews[:0]
	for _, id := range next.RecentReviews {
		if id != reviewID {
			recent = append(recent, id)
		}
	}
	next.RecentReviews = recent

	next.LastUpdated = now.UTC()
	return next
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
