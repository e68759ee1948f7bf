// Package review implements the manual duplicate-candidate review workflow.
//
// A candidate starts pending and is decided exactly once, either confirmed
// as a duplicate or rejected. Decisions are persisted by the store with a
// conditional update and announced on Redis for the merge step.
package review

import (
	"context"
	"fmt"
	"strings"

	"github.com/otherjamesbrown/grantqa/pkg/catalog"
	pferrors "github.com/otherjamesbrown/grantqa/pkg/errors"
	"github.com/otherjamesbrown/grantqa/pkg/logging"
	"github.com/otherjamesbrown/grantqa/pkg/observability"
)

// DefaultLimit is the page size of the pending list.
const DefaultLimit = 50

// Store is the persistence surface of the review workflow.
type Store interface {
	PendingDuplicates(ctx context.Context, limit, offset int) ([]catalog.DuplicateCandidate, error)
	DuplicateStats(ctx context.Context) (catalog.ReviewStats, error)
	DecideDuplicate(ctx context.Context, id string, isDuplicate bool, notes string) (*catalog.DuplicateCandidate, error)
}

// Service runs review operations.
type Service struct {
	store     Store
	publisher Publisher
	logger    logging.Logger
	metrics   *observability.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher announces decisions through p.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// NewService creates a review service. metrics may be nil.
func NewService(store Store, logger logging.Logger, metrics *observability.Metrics, opts ...Option) *Service {
	s := &Service{
		store:   store,
		logger:  logger.With(logging.F("component", "review")),
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Pending returns undecided candidates, most similar first.
func (s *Service) Pending(ctx context.Context, limit, offset int) ([]catalog.DuplicateCandidate, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.store.PendingDuplicates(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list pending duplicates: %w", err)
	}
	if rows == nil {
		rows = []catalog.DuplicateCandidate{}
	}
	return rows, nil
}

// Stats counts candidates per review state.
func (s *Service) Stats(ctx context.Context) (catalog.ReviewStats, error) {
	stats, err := s.store.DuplicateStats(ctx)
	if err != nil {
		return catalog.ReviewStats{}, fmt.Errorf("duplicate stats: %w", err)
	}
	return stats, nil
}

// Confirm marks a pending candidate as a duplicate.
func (s *Service) Confirm(ctx context.Context, id, notes string) (*catalog.DuplicateCandidate, error) {
	return s.Decide(ctx, id, true, notes)
}

// Reject marks a pending candidate as distinct.
func (s *Service) Reject(ctx context.Context, id, notes string) (*catalog.DuplicateCandidate, error) {
	return s.Decide(ctx, id, false, notes)
}

// Decide records a verdict on a pending candidate. Deciding an already
// decided candidate fails with ErrInvalidState.
func (s *Service) Decide(ctx context.Context, id string, isDuplicate bool, notes string) (*catalog.DuplicateCandidate, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("candidate id is required: %w", pferrors.ErrValidation)
	}
	log := s.logger.WithContext(ctx).With(logging.F("candidate_id", id))

	decided, err := s.store.DecideDuplicate(ctx, id, isDuplicate, strings.TrimSpace(notes))
	if err != nil {
		if pferrors.IsInvalidState(err) || pferrors.IsNotFound(err) {
			log.Info("Review rejected", logging.Err(err))
		} else {
			log.Error("Review failed", logging.Err(err))
		}
		return nil, fmt.Errorf("review duplicate %s: %w", id, err)
	}

	state := decided.State()
	s.metrics.RecordReview(string(state))
	log.Info("Duplicate reviewed", logging.F("state", string(state)))

	if s.publisher != nil {
		event := NewDuplicateReviewedEvent(decided, logging.RequestID(ctx))
		if err := s.publisher.PublishDuplicateReviewed(ctx, event); err != nil {
			log.Warn("Failed to publish review event", logging.Err(err))
		}
	}
	return decided, nil
}
