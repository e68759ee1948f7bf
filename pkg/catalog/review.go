package catalog

import (
	"fmt"
	"time"

	pferrors "github.com/otherjamesbrown/grantqa/pkg/errors"
)

// DuplicateCandidate is a pair of same-type records flagged by the upstream
// matcher as possibly describing the same real-world entity.
type DuplicateCandidate struct {
	ID              string     `json:"id"`
	EntityType      string     `json:"entity_type"`
	Entity1ID       string     `json:"entity_1_id"`
	Entity2ID       string     `json:"entity_2_id"`
	SimilarityScore float64    `json:"similarity_score"`
	MatchMethod     string     `json:"match_method"`
	IsDuplicate     *bool      `json:"is_duplicate"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`

	// Display names of the two entities, resolved by the pending list.
	Entity1Name string `json:"entity_1_name,omitempty"`
	Entity2Name string `json:"entity_2_name,omitempty"`
}

// ReviewState is the review outcome of a duplicate candidate.
type ReviewState string

const (
	ReviewPending   ReviewState = "pending"
	ReviewConfirmed ReviewState = "confirmed"
	ReviewRejected  ReviewState = "rejected"
)

// State derives the review state from the tri-state is_duplicate column.
func (d DuplicateCandidate) State() ReviewState {
	switch {
	case d.IsDuplicate == nil:
		return ReviewPending
	case *d.IsDuplicate:
		return ReviewConfirmed
	default:
		return ReviewRejected
	}
}

// Transition returns the state reached by reviewing a candidate in state
// from. Only pending candidates can be reviewed, and only once.
func Transition(from ReviewState, isDuplicate bool) (ReviewState, error) {
	if from != ReviewPending {
		return from, fmt.Errorf("candidate already %s: %w", from, pferrors.ErrInvalidState)
	}
	if isDuplicate {
		return ReviewConfirmed, nil
	}
	return ReviewRejected, nil
}

// ReviewStats counts candidates per review state.
type ReviewStats struct {
	Pending   int `json:"pending"`
	Confirmed int `json:"confirmed"`
	Rejected  int `json:"rejected"`
}

// Completeness thresholds shared by the list filters and the band display.
const (
	LowCompletenessBelow = 50.0
	HighCompletenessFrom = 80.0
)

// CompletenessBand classifies a completeness score.
type CompletenessBand string

const (
	BandLow    CompletenessBand = "low"
	BandMedium CompletenessBand = "medium"
	BandHigh   CompletenessBand = "high"
)

// Band returns the band of a 0-100 completeness score.
func Band(score float64) CompletenessBand {
	switch {
	case score >= HighCompletenessFrom:
		return BandHigh
	case score >= LowCompletenessBelow:
		return BandMedium
	default:
		return BandLow
	}
}
