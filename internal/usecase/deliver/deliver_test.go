package deliver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notifrelay/internal/domain/entity"
	"notifrelay/internal/infra/provider"
	"notifrelay/internal/infra/queue"
	"notifrelay/internal/repository"
)

type fakeMessageRepo struct {
	repository.MessageRepository

	messages map[string]*entity.Message

	processing []string
	sent       []string
	failed     map[string]string
	reset      map[string]string
}

func newFakeMessageRepo(msgs ...*entity.Message) *fakeMessageRepo {
	repo := &fakeMessageRepo{
		messages: make(map[string]*entity.Message),
		failed:   make(map[string]string),
		reset:    make(map[string]string),
	}
	for _, m := range msgs {
		repo.messages[m.ID] = m
	}
	return repo
}

func (f *fakeMessageRepo) Get(_ context.Context, id string) (*entity.Message, error) {
	return f.messages[id], nil
}

func (f *fakeMessageRepo) MarkProcessing(_ context.Context, id string) error {
	f.processing = append(f.processing, id)
	return nil
}

func (f *fakeMessageRepo) MarkSent(_ context.Context, id string, state entity.DeliveryState, providerMessageID string) error {
	f.sent = append(f.sent, id)
	m := f.messages[id]
	m.Status = entity.StatusSent
	m.DeliveryState = state
	m.ProviderMessageID = providerMessageID
	return nil
}

func (f *fakeMessageRepo) MarkFailed(_ context.Context, id string, lastError string) error {
	f.failed[id] = lastError
	f.messages[id].Status = entity.StatusFailed
	return nil
}

func (f *fakeMessageRepo) ResetForRetry(_ context.Context, id string, lastError string) error {
	f.reset[id] = lastError
	f.messages[id].Status = entity.StatusPending
	return nil
}

type fakeRequestRepo struct {
	repository.RequestRepository

	requests map[string]*entity.Request
}

func (f *fakeRequestRepo) Get(_ context.Context, id string) (*entity.Request, error) {
	return f.requests[id], nil
}

type fakeProvider struct {
	result     *provider.Result
	err        error
	deliveries []provider.Delivery
}

func (f *fakeProvider) Send(_ context.Context, d provider.Delivery) (*provider.Result, error) {
	f.deliveries = append(f.deliveries, d)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeLimiter struct {
	allow bool
	err   error
}

func (f *fakeLimiter) Allow(_ context.Context, _ entity.Channel) (bool, error) {
	return f.allow, f.err
}

type fakeCounters struct {
	sent   []string
	failed []string
}

func (f *fakeCounters) IncrementSent(_ context.Context, requestID string) error {
	f.sent = append(f.sent, requestID)
	return nil
}

func (f *fakeCounters) IncrementFailed(_ context.Context, requestID string) error {
	f.failed = append(f.failed, requestID)
	return nil
}

type fakeBlobs struct {
	blobs map[string][]byte
	err   error
}

func (f *fakeBlobs) Get(path string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, ok := f.blobs[path]
	if !ok {
		return nil, errors.New("blob not found")
	}
	return b, nil
}

type fixture struct {
	messages *fakeMessageRepo
	requests *fakeRequestRepo
	provider *fakeProvider
	limiter  *fakeLimiter
	counters *fakeCounters
	blobs    *fakeBlobs
	job      *Job
}

func newFixture(req *entity.Request, msgs ...*entity.Message) *fixture {
	f := &fixture{
		messages: newFakeMessageRepo(msgs...),
		requests: &fakeRequestRepo{requests: map[string]*entity.Request{}},
		provider: &fakeProvider{result: &provider.Result{ProviderMessageID: "pm-1", State: entity.DeliveryQueued}},
		limiter:  &fakeLimiter{allow: true},
		counters: &fakeCounters{},
		blobs:    &fakeBlobs{blobs: map[string][]byte{}},
	}
	if req != nil {
		f.requests.requests[req.ID] = req
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	processor := NewProcessor(f.requests, f.messages, f.provider, f.limiter, f.counters, f.blobs, logger)
	f.job = &Job{Processor: processor, Messages: f.messages, Counters: f.counters, Logger: logger}
	return f
}

func smsRequest() *entity.Request {
	return &entity.Request{
		ID:       "r1",
		Channel:  entity.ChannelSMS,
		Template: entity.Template{Body: "Hi {{ name }}"},
	}
}

func smsMessage(id string) *entity.Message {
	return &entity.Message{
		ID:        id,
		RequestID: "r1",
		To:        "+15550001111",
		Vars:      map[string]any{"name": "Ada"},
		Channel:   entity.ChannelSMS,
		Priority:  entity.PriorityNormal,
		Status:    entity.StatusPending,
	}
}

func TestHandleDeliversSMS(t *testing.T) {
	f := newFixture(smsRequest(), smsMessage("m1"))

	verdict := f.job.Handle(context.Background(), "m1", 1)

	assert.Equal(t, queue.VerdictAck, verdict)
	assert.Equal(t, []string{"m1"}, f.messages.processing)
	assert.Equal(t, []string{"m1"}, f.messages.sent)
	assert.Equal(t, []string{"r1"}, f.counters.sent)
	require.Len(t, f.provider.deliveries, 1)
	assert.Equal(t, "Hi Ada", f.provider.deliveries[0].Content)
	assert.Equal(t, "sms", f.provider.deliveries[0].Channel)
	assert.Equal(t, entity.DeliveryQueued, f.messages.messages["m1"].DeliveryState)
	assert.Equal(t, "pm-1", f.messages.messages["m1"].ProviderMessageID)
}

func TestHandleTerminalStatusIsNoOp(t *testing.T) {
	msg := smsMessage("m1")
	msg.Status = entity.StatusCancelled
	f := newFixture(smsRequest(), msg)

	verdict := f.job.Handle(context.Background(), "m1", 1)

	assert.Equal(t, queue.VerdictAck, verdict)
	assert.Empty(t, f.provider.deliveries, "terminal messages must not reach the gateway")
	assert.Empty(t, f.messages.processing)
	assert.Empty(t, f.counters.sent)
	assert.Empty(t, f.counters.failed)
}

func TestHandleMissingMessageAcks(t *testing.T) {
	f := newFixture(smsRequest())

	verdict := f.job.Handle(context.Background(), "ghost", 1)

	assert.Equal(t, queue.VerdictAck, verdict)
	assert.Empty(t, f.provider.deliveries)
}

func TestHandleRateLimitedRetries(t *testing.T) {
	f := newFixture(smsRequest(), smsMessage("m1"))
	f.limiter.allow = false

	verdict := f.job.Handle(context.Background(), "m1", 1)

	assert.Equal(t, queue.VerdictRetry, verdict)
	assert.Empty(t, f.provider.deliveries)
	assert.Equal(t, ErrRateLimited.Error(), f.messages.reset["m1"])
	assert.Equal(t, entity.StatusPending, f.messages.messages["m1"].Status)
}

func TestHandleGatewayRejectionFailsImmediately(t *testing.T) {
	f := newFixture(smsRequest(), smsMessage("m1"))
	f.provider.err = &provider.ClientError{StatusCode: 422, Message: "bad recipient"}

	verdict := f.job.Handle(context.Background(), "m1", 1)

	assert.Equal(t, queue.VerdictAck, verdict)
	assert.Contains(t, f.messages.failed["m1"], "bad recipient")
	assert.Equal(t, []string{"r1"}, f.counters.failed)
	assert.Empty(t, f.counters.sent)
}

func TestHandleGatewayFailureStatusStillMarksSent(t *testing.T) {
	// The body status is the provider-facing dimension only; an accepted
	// hand-off counts as sent.
	f := newFixture(smsRequest(), smsMessage("m1"))
	f.provider.result = &provider.Result{ProviderMessageID: "pm-1", State: entity.DeliveryFailed}

	verdict := f.job.Handle(context.Background(), "m1", 1)

	assert.Equal(t, queue.VerdictAck, verdict)
	assert.Equal(t, []string{"m1"}, f.messages.sent)
	assert.Equal(t, entity.StatusSent, f.messages.messages["m1"].Status)
	assert.Equal(t, entity.DeliveryFailed, f.messages.messages["m1"].DeliveryState)
	assert.Equal(t, []string{"r1"}, f.counters.sent)
	assert.Empty(t, f.counters.failed)
	assert.Empty(t, f.messages.failed)
}

func TestHandleRetryableErrorBeforeExhaustion(t *testing.T) {
	f := newFixture(smsRequest(), smsMessage("m1"))
	f.provider.err = &provider.ServerError{StatusCode: 503, Message: "gateway overloaded"}

	verdict := f.job.Handle(context.Background(), "m1", 2)

	assert.Equal(t, queue.VerdictRetry, verdict)
	assert.Contains(t, f.messages.reset["m1"], "gateway overloaded")
	assert.Empty(t, f.messages.failed)
	assert.Empty(t, f.counters.failed)
}

func TestHandleExhaustionMarksFailed(t *testing.T) {
	f := newFixture(smsRequest(), smsMessage("m1"))
	f.provider.err = &provider.ServerError{StatusCode: 503, Message: "gateway overloaded"}

	verdict := f.job.Handle(context.Background(), "m1", MaxAttempts)

	assert.Equal(t, queue.VerdictAck, verdict)
	require.Contains(t, f.messages.failed, "m1")
	assert.True(t, strings.HasPrefix(f.messages.failed["m1"], "Max attempts exceeded: "))
	assert.Equal(t, []string{"r1"}, f.counters.failed)
}

func TestHandleUnresolvedTemplateVariableIsTerminal(t *testing.T) {
	msg := smsMessage("m1")
	msg.Vars = map[string]any{"wrong": "var"}
	f := newFixture(smsRequest(), msg)

	verdict := f.job.Handle(context.Background(), "m1", 1)

	assert.Equal(t, queue.VerdictAck, verdict)
	assert.Contains(t, f.messages.failed["m1"], "unresolved template variables")
	assert.Empty(t, f.provider.deliveries)
	assert.Equal(t, []string{"r1"}, f.counters.failed)
}

func TestHandleEmailLoadsBodyFromBlobStore(t *testing.T) {
	req := &entity.Request{
		ID:      "r1",
		Channel: entity.ChannelEmail,
		Template: entity.Template{
			Subject:  "Welcome {{ name }}",
			BodyPath: "notifications/email_c1.txt",
		},
	}
	msg := smsMessage("m1")
	msg.Channel = entity.ChannelEmail
	msg.To = "ada@example.test"
	f := newFixture(req, msg)
	f.blobs.blobs["notifications/email_c1.txt"] = []byte("Hello {{ name }}!")

	verdict := f.job.Handle(context.Background(), "m1", 1)

	assert.Equal(t, queue.VerdictAck, verdict)
	require.Len(t, f.provider.deliveries, 1)
	assert.Equal(t, "Welcome Ada", f.provider.deliveries[0].Subject)
	assert.Equal(t, "Hello Ada!", f.provider.deliveries[0].Content)
	assert.Equal(t, "email", f.provider.deliveries[0].Channel)
}

func TestHandleEmailBlobReadErrorRetries(t *testing.T) {
	req := &entity.Request{
		ID:       "r1",
		Channel:  entity.ChannelEmail,
		Template: entity.Template{BodyPath: "notifications/email_c1.txt"},
	}
	msg := smsMessage("m1")
	msg.Channel = entity.ChannelEmail
	f := newFixture(req, msg)
	f.blobs.err = errors.New("storage timeout")

	verdict := f.job.Handle(context.Background(), "m1", 1)

	assert.Equal(t, queue.VerdictRetry, verdict)
	assert.Empty(t, f.messages.failed)
}

func TestHandleMissingRequestIsTerminal(t *testing.T) {
	f := newFixture(nil, smsMessage("m1"))

	verdict := f.job.Handle(context.Background(), "m1", 1)

	assert.Equal(t, queue.VerdictAck, verdict)
	assert.Contains(t, f.messages.failed["m1"], "not found")
}
