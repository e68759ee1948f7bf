package review

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/grantqa/pkg/catalog"
	pferrors "github.com/otherjamesbrown/grantqa/pkg/errors"
	"github.com/otherjamesbrown/grantqa/pkg/logging"
	"github.com/otherjamesbrown/grantqa/pkg/observability"
	"github.com/otherjamesbrown/grantqa/pkg/store"
)

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []DuplicateReviewedEvent
	err    error
}

func (p *recordingPublisher) PublishDuplicateReviewed(_ context.Context, event DuplicateReviewedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func TestPending_OnlyUndecided(t *testing.T) {
	svc := NewService(store.NewDemo(), logging.NewNopLogger(), nil)

	pending, err := svc.Pending(context.Background(), 0, -1)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "dup-1", pending[0].ID)
	assert.Equal(t, "dup-2", pending[1].ID)
	for _, d := range pending {
		assert.Equal(t, catalog.ReviewPending, d.State())
	}
}

func TestPending_StoreFailure(t *testing.T) {
	m := store.NewDemo()
	m.FailWith(errors.New("down"))
	svc := NewService(m, logging.NewNopLogger(), nil)

	_, err := svc.Pending(context.Background(), 10, 0)
	assert.True(t, pferrors.IsUnavailable(err))
}

func TestDecide_ConfirmThenSecondReviewFails(t *testing.T) {
	m := store.NewDemo()
	pub := &recordingPublisher{}
	metrics := observability.NewNopMetrics()
	svc := NewService(m, logging.NewNopLogger(), metrics, WithPublisher(pub))
	ctx := logging.WithRequestID(context.Background(), "req-42")

	decided, err := svc.Confirm(ctx, "dup-1", "  same org number  ")
	require.NoError(t, err)
	assert.Equal(t, catalog.ReviewConfirmed, decided.State())
	assert.Equal(t, "same org number", decided.Notes)
	require.NotNil(t, decided.ReviewedAt)

	_, err = svc.Reject(ctx, "dup-1", "")
	assert.True(t, pferrors.IsInvalidState(err))

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, catalog.ReviewStats{Pending: 1, Confirmed: 2, Rejected: 0}, stats)

	require.Len(t, pub.events, 1)
	event := pub.events[0]
	assert.Equal(t, "duplicate.reviewed", event.EventType)
	assert.Equal(t, "dup-1", event.CandidateID)
	assert.True(t, event.IsDuplicate)
	assert.Equal(t, catalog.ReviewConfirmed, event.State)
	require.NotNil(t, event.CorrelationID)
	assert.Equal(t, "req-42", *event.CorrelationID)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ReviewsTotal.WithLabelValues("confirmed")))
}

func TestDecide_Reject(t *testing.T) {
	svc := NewService(store.NewDemo(), logging.NewNopLogger(), nil)

	decided, err := svc.Reject(context.Background(), "dup-2", "")
	require.NoError(t, err)
	assert.Equal(t, catalog.ReviewRejected, decided.State())

	pending, err := svc.Pending(context.Background(), 50, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "dup-1", pending[0].ID)
}

func TestDecide_Errors(t *testing.T) {
	svc := NewService(store.NewDemo(), logging.NewNopLogger(), nil)

	_, err := svc.Decide(context.Background(), "missing", true, "")
	assert.True(t, pferrors.IsNotFound(err))

	_, err = svc.Decide(context.Background(), " ", true, "")
	assert.True(t, pferrors.IsValidation(err))

	_, err = svc.Decide(context.Background(), "dup-3", false, "")
	assert.True(t, pferrors.IsInvalidState(err))
}

func TestDecide_PublishFailureDoesNotFailReview(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("redis down")}
	svc := NewService(store.NewDemo(), logging.NewNopLogger(), nil, WithPublisher(pub))

	decided, err := svc.Confirm(context.Background(), "dup-1", "")
	require.NoError(t, err)
	assert.Equal(t, catalog.ReviewConfirmed, decided.State())
	assert.Len(t, pub.events, 1)
}

func TestDecide_ConcurrentReviewersOneWins(t *testing.T) {
	svc := NewService(store.NewDemo(), logging.NewNopLogger(), nil)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Decide(context.Background(), "dup-1", i%2 == 0, "")
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.True(t, pferrors.IsInvalidState(err))
	}
	assert.Equal(t, 1, wins)
}

func TestNewDuplicateReviewedEvent_JSON(t *testing.T) {
	verdict := false
	reviewedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	event := NewDuplicateReviewedEvent(&catalog.DuplicateCandidate{
		ID:              "d1",
		EntityType:      "grant",
		Entity1ID:       "g1",
		Entity2ID:       "g2",
		SimilarityScore: 61,
		IsDuplicate:     &verdict,
		ReviewedAt:      &reviewedAt,
	}, "")

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "duplicate.reviewed", decoded["event_type"])
	assert.Equal(t, "grantqa", decoded["source"])
	assert.Equal(t, "rejected", decoded["state"])
	assert.Equal(t, false, decoded["is_duplicate"])
	assert.Equal(t, "2026-03-01T12:00:00Z", decoded["reviewed_at"])
	assert.NotContains(t, decoded, "notes")
	assert.NotContains(t, decoded, "correlation_id")
}

func TestRedisPublisher_UnreachableServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	metrics := observability.NewNopMetrics()
	pub := NewRedisPublisher(client, logging.NewNopLogger(), metrics)
	defer pub.Close()

	err := pub.PublishDuplicateReviewed(context.Background(), minimalEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), ChannelDuplicateReviewed)
	assert.Equal(t, 1.0, testutil.ToFloat64(
		metrics.EventsPublished.WithLabelValues(ChannelDuplicateReviewed, observability.StatusError)))
}

func minimalEvent() DuplicateReviewedEvent {
	return DuplicateReviewedEvent{BaseEvent: NewBaseEvent("duplicate.reviewed")}
}
