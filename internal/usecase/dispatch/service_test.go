package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notifrelay/internal/domain/entity"
	"notifrelay/internal/repository"
)

type fakePublisher struct {
	published []string
	failIDs   map[string]int // message id -> number of times to fail
}

func (f *fakePublisher) Publish(_ context.Context, messageID string, _ entity.Priority) error {
	if n, ok := f.failIDs[messageID]; ok && n > 0 {
		f.failIDs[messageID] = n - 1
		return errors.New("broker unavailable")
	}
	f.published = append(f.published, messageID)
	return nil
}

type fakeRequestRepo struct {
	repository.RequestRepository

	claimed      []*entity.Request
	claimErr     error
	cleared      []string
	clearErr     error
	released     []string
	claimedCalls int
}

func (f *fakeRequestRepo) ClaimDueScheduled(_ context.Context, _ time.Time) ([]*entity.Request, error) {
	f.claimedCalls++
	return f.claimed, f.claimErr
}

func (f *fakeRequestRepo) ClearSchedule(_ context.Context, id string) error {
	if f.clearErr != nil {
		return f.clearErr
	}
	f.cleared = append(f.cleared, id)
	return nil
}

func (f *fakeRequestRepo) ReleaseClaim(_ context.Context, id string) error {
	f.released = append(f.released, id)
	return nil
}

type fakeMessageRepo struct {
	repository.MessageRepository

	pending    []*entity.Message
	pendingErr error
	queriedIDs []string
}

func (f *fakeMessageRepo) ListPendingByRequests(_ context.Context, requestIDs []string) ([]*entity.Message, error) {
	f.queriedIDs = requestIDs
	return f.pending, f.pendingErr
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func msg(id, requestID string) *entity.Message {
	return &entity.Message{ID: id, RequestID: requestID, Priority: entity.PriorityNormal, Status: entity.StatusPending}
}

func TestEnqueueMessages(t *testing.T) {
	t.Run("publishes every job", func(t *testing.T) {
		pub := &fakePublisher{}
		svc := &Service{Publisher: pub, Logger: discardLogger()}

		n, err := svc.EnqueueMessages(context.Background(), []*entity.Message{msg("m1", "r1"), msg("m2", "r1")})

		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, []string{"m1", "m2"}, pub.published)
	})

	t.Run("retries transient publish failures", func(t *testing.T) {
		pub := &fakePublisher{failIDs: map[string]int{"m1": 2}}
		svc := &Service{Publisher: pub, Logger: discardLogger()}

		n, err := svc.EnqueueMessages(context.Background(), []*entity.Message{msg("m1", "r1")})

		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("skips a message that exhausts its publish budget", func(t *testing.T) {
		pub := &fakePublisher{failIDs: map[string]int{"m1": 3}}
		svc := &Service{Publisher: pub, Logger: discardLogger()}

		n, err := svc.EnqueueMessages(context.Background(), []*entity.Message{msg("m1", "r1"), msg("m2", "r1")})

		require.Error(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, []string{"m2"}, pub.published)
	})
}

func TestDispatchDueScheduled(t *testing.T) {
	t.Run("enqueues pending messages and clears the schedule", func(t *testing.T) {
		requests := &fakeRequestRepo{claimed: []*entity.Request{{ID: "r1"}, {ID: "r2"}}}
		messages := &fakeMessageRepo{pending: []*entity.Message{msg("m1", "r1"), msg("m2", "r1"), msg("m3", "r2")}}
		pub := &fakePublisher{}
		svc := &Service{Requests: requests, Messages: messages, Publisher: pub, Logger: discardLogger()}

		stats, err := svc.DispatchDueScheduled(context.Background(), time.Now())

		require.NoError(t, err)
		assert.Equal(t, Stats{ClaimedRequests: 2, Enqueued: 3}, stats)
		assert.ElementsMatch(t, []string{"r1", "r2"}, requests.cleared)
		assert.ElementsMatch(t, []string{"r1", "r2"}, messages.queriedIDs)
	})

	t.Run("no due requests is a no-op", func(t *testing.T) {
		requests := &fakeRequestRepo{}
		svc := &Service{Requests: requests, Messages: &fakeMessageRepo{}, Publisher: &fakePublisher{}, Logger: discardLogger()}

		stats, err := svc.DispatchDueScheduled(context.Background(), time.Now())

		require.NoError(t, err)
		assert.Equal(t, Stats{}, stats)
	})

	t.Run("releases the claim when a request is only partially enqueued", func(t *testing.T) {
		requests := &fakeRequestRepo{claimed: []*entity.Request{{ID: "r1"}}}
		messages := &fakeMessageRepo{pending: []*entity.Message{msg("m1", "r1")}}
		pub := &fakePublisher{failIDs: map[string]int{"m1": 10}}
		svc := &Service{Requests: requests, Messages: messages, Publisher: pub, Logger: discardLogger()}

		stats, err := svc.DispatchDueScheduled(context.Background(), time.Now())

		require.NoError(t, err)
		assert.Equal(t, 1, stats.Failed)
		assert.Empty(t, requests.cleared, "schedule must survive so the next sweep retries")
		assert.Equal(t, []string{"r1"}, requests.released)
	})

	t.Run("releases every claim when the pending-message lookup fails", func(t *testing.T) {
		requests := &fakeRequestRepo{claimed: []*entity.Request{{ID: "r1"}, {ID: "r2"}}}
		messages := &fakeMessageRepo{pendingErr: errors.New("db down")}
		svc := &Service{Requests: requests, Messages: messages, Publisher: &fakePublisher{}, Logger: discardLogger()}

		_, err := svc.DispatchDueScheduled(context.Background(), time.Now())

		require.Error(t, err)
		assert.ElementsMatch(t, []string{"r1", "r2"}, requests.released)
	})

	t.Run("claim error aborts the sweep", func(t *testing.T) {
		requests := &fakeRequestRepo{claimErr: errors.New("db down")}
		svc := &Service{Requests: requests, Messages: &fakeMessageRepo{}, Publisher: &fakePublisher{}, Logger: discardLogger()}

		_, err := svc.DispatchDueScheduled(context.Background(), time.Now())
		assert.Error(t, err)
	})
}
