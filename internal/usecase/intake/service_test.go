package intake

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notifrelay/internal/domain/entity"
	"notifrelay/internal/repository"
	"notifrelay/internal/usecase/channel"
)

type fakeRequestRepo struct {
	repository.RequestRepository

	byKey     map[string]*entity.Request
	savedReq  *entity.Request
	savedMsgs []*entity.Message
	createErr error
}

func (f *fakeRequestRepo) GetByIdempotencyKey(_ context.Context, clientID, key string) (*entity.Request, error) {
	return f.byKey[clientID+"/"+key], nil
}

func (f *fakeRequestRepo) CreateWithMessages(_ context.Context, req *entity.Request, msgs []*entity.Message) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.savedReq = req
	f.savedMsgs = msgs
	return nil
}

type fakeEnqueuer struct {
	enqueued []*entity.Message
	calls    int
}

func (f *fakeEnqueuer) EnqueueMessages(_ context.Context, msgs []*entity.Message) (int, error) {
	f.calls++
	f.enqueued = append(f.enqueued, msgs...)
	return len(msgs), nil
}

type fakeBlobStore struct{}

func (fakeBlobStore) Put(path string, _ []byte) (string, error) { return path, nil }

func newService(repo *fakeRequestRepo, enq *fakeEnqueuer) *Service {
	return &Service{
		Requests: repo,
		Policies: channel.NewPolicies(channel.DefaultLimits(), fakeBlobStore{}),
		Enqueuer: enq,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func validInput() CreateInput {
	return CreateInput{
		ClientID: "client-1",
		Channel:  entity.ChannelSMS,
		Priority: entity.PriorityNormal,
		Body:     "Hi {{ name }}",
		Recipients: []RecipientInput{
			{To: "+15550001111", Vars: map[string]any{"name": "Ada"}},
			{To: "+15550002222", Vars: map[string]any{"name": "Grace"}},
		},
	}
}

func TestCreateAcceptsAndEnqueues(t *testing.T) {
	repo := &fakeRequestRepo{}
	enq := &fakeEnqueuer{}
	svc := newService(repo, enq)

	res, err := svc.Create(context.Background(), validInput())

	require.NoError(t, err)
	assert.True(t, res.Created)
	req := res.Request
	assert.Equal(t, 2, req.RequestedCount)
	assert.Equal(t, 2, req.AcceptedCount)
	assert.Equal(t, 2, req.PendingCount)
	assert.Equal(t, entity.StatusPending, req.Status)
	assert.True(t, req.CountsConsistent())
	assert.NotEmpty(t, req.IdempotencyKey)
	assert.NotEmpty(t, req.CorrelationID)

	require.Len(t, repo.savedMsgs, 2)
	for _, m := range repo.savedMsgs {
		assert.Equal(t, req.ID, m.RequestID)
		assert.Equal(t, entity.StatusPending, m.Status)
		assert.Equal(t, entity.DeliveryQueued, m.DeliveryState)
	}
	assert.Len(t, enq.enqueued, 2, "messages should be enqueued immediately")
}

func TestCreateRejectsInvalidRecipientsIndividually(t *testing.T) {
	repo := &fakeRequestRepo{}
	enq := &fakeEnqueuer{}
	svc := newService(repo, enq)

	in := validInput()
	in.Recipients = []RecipientInput{
		{To: "+15550001111", Vars: map[string]any{"name": "Ada"}},
		{To: "", Vars: map[string]any{"name": "Empty"}},                                   // blank address
		{To: "+15550003333", Vars: map[string]any{"name": []string{"not", "scalar"}}},     // structured var
		{To: "+15550004444", Vars: map[string]any{"nickname": "missing required 'name'"}}, // uncovered placeholder
	}

	res, err := svc.Create(context.Background(), in)

	require.NoError(t, err)
	req := res.Request
	assert.Equal(t, 4, req.RequestedCount)
	assert.Equal(t, 1, req.AcceptedCount)
	assert.Equal(t, 3, req.RejectedCount())
	assert.True(t, req.CountsConsistent())
	require.Len(t, repo.savedMsgs, 1)
	assert.Equal(t, "+15550001111", repo.savedMsgs[0].To)
}

func TestCreateAllRecipientsRejected(t *testing.T) {
	svc := newService(&fakeRequestRepo{}, &fakeEnqueuer{})

	in := validInput()
	in.Recipients = []RecipientInput{{To: "", Vars: nil}}

	_, err := svc.Create(context.Background(), in)

	require.Error(t, err)
	assert.True(t, entity.IsValidation(err))
}

func TestCreateIdempotentReplay(t *testing.T) {
	prior := &entity.Request{ID: "r-prior", ClientID: "client-1", IdempotencyKey: "key-1"}
	repo := &fakeRequestRepo{byKey: map[string]*entity.Request{"client-1/key-1": prior}}
	enq := &fakeEnqueuer{}
	svc := newService(repo, enq)

	in := validInput()
	in.IdempotencyKey = "key-1"

	res, err := svc.Create(context.Background(), in)

	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Same(t, prior, res.Request)
	assert.Nil(t, repo.savedReq, "replay must not persist a second request")
	assert.Zero(t, enq.calls, "replay must not enqueue")
}

func TestCreateAutoGeneratesIdempotencyKey(t *testing.T) {
	repo := &fakeRequestRepo{}
	svc := newService(repo, &fakeEnqueuer{})

	res, err := svc.Create(context.Background(), validInput())

	require.NoError(t, err)
	assert.True(t, len(res.Request.IdempotencyKey) > 2)
	assert.Equal(t, "i-", res.Request.IdempotencyKey[:2])
}

func TestCreateScheduledSkipsEnqueue(t *testing.T) {
	repo := &fakeRequestRepo{}
	enq := &fakeEnqueuer{}
	svc := newService(repo, enq)

	in := validInput()
	at := time.Now().Add(time.Hour)
	in.ScheduledAt = &at

	res, err := svc.Create(context.Background(), in)

	require.NoError(t, err)
	require.NotNil(t, res.Request.ScheduledAt)
	assert.Zero(t, enq.calls, "scheduled requests wait for the sweep")
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateInput)
	}{
		{name: "missing client id", mutate: func(in *CreateInput) { in.ClientID = "" }},
		{name: "invalid channel", mutate: func(in *CreateInput) { in.Channel = "fax" }},
		{name: "invalid priority", mutate: func(in *CreateInput) { in.Priority = "urgent" }},
		{name: "no recipients", mutate: func(in *CreateInput) { in.Recipients = nil }},
		{name: "schedule in the past", mutate: func(in *CreateInput) {
			at := time.Now().Add(-time.Minute)
			in.ScheduledAt = &at
		}},
		{name: "sms body too long", mutate: func(in *CreateInput) {
			in.Body = string(make([]byte, 200))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newService(&fakeRequestRepo{}, &fakeEnqueuer{})
			in := validInput()
			tt.mutate(&in)

			_, err := svc.Create(context.Background(), in)

			require.Error(t, err)
			assert.True(t, entity.IsValidation(err), "expected validation error, got %v", err)
		})
	}
}

func TestCreateEmailRelocatesBody(t *testing.T) {
	repo := &fakeRequestRepo{}
	svc := newService(repo, &fakeEnqueuer{})

	in := validInput()
	in.Channel = entity.ChannelEmail
	in.Subject = "Welcome {{ name }}"
	in.Body = "Hello {{ name }}, glad to have you."

	res, err := svc.Create(context.Background(), in)

	require.NoError(t, err)
	assert.Empty(t, res.Request.Template.Body)
	assert.Contains(t, res.Request.Template.BodyPath, "notifications/email_")
	assert.Equal(t, "Welcome {{ name }}", res.Request.Template.Subject)
}
