// Package deliver executes queued delivery jobs: it renders the per-recipient
// payload, hands it to the provider gateway and records the outcome. The
// processor is re-entrant: duplicate jobs for a message that already reached
// a terminal status are silent no-ops.
package deliver

import (
	"context"
	"fmt"
	"log/slog"

	"notifrelay/internal/domain/entity"
	"notifrelay/internal/infra/provider"
	"notifrelay/internal/observability/metrics"
	"notifrelay/internal/repository"
)

// Provider is the slice of the gateway client the processor needs.
type Provider interface {
	Send(ctx context.Context, d provider.Delivery) (*provider.Result, error)
}

// RateLimiter grants per-channel delivery permits.
type RateLimiter interface {
	Allow(ctx context.Context, channel entity.Channel) (bool, error)
}

// CounterStore buffers per-request outcome counters.
type CounterStore interface {
	IncrementSent(ctx context.Context, requestID string) error
	IncrementFailed(ctx context.Context, requestID string) error
}

// Processor delivers one message per invocation.
type Processor struct {
	Requests repository.RequestRepository
	Messages repository.MessageRepository
	Provider Provider
	Limiter  RateLimiter
	Counters CounterStore
	Logger   *slog.Logger

	handlers map[entity.Channel]handler
}

// NewProcessor wires the per-channel handlers. The blob store backs the email
// handler's body loads.
func NewProcessor(requests repository.RequestRepository, messages repository.MessageRepository,
	prov Provider, limiter RateLimiter, counters CounterStore, blobs BlobStore, logger *slog.Logger) *Processor {
	return &Processor{
		Requests: requests,
		Messages: messages,
		Provider: prov,
		Limiter:  limiter,
		Counters: counters,
		Logger:   logger,
		handlers: map[entity.Channel]handler{
			entity.ChannelSMS:   smsHandler{},
			entity.ChannelPush:  pushHandler{},
			entity.ChannelEmail: emailHandler{blobs: blobs},
		},
	}
}

// ProcessMessage attempts one delivery. The returned message is non-nil
// whenever the message row was found, so the caller can record terminal
// outcomes against its request.
//
// Error classification drives the queue verdict: nil means done (delivered or
// no-op), ErrRateLimited and plain errors mean retry, TerminalError means the
// message must fail now.
func (p *Processor) ProcessMessage(ctx context.Context, messageID string) (*entity.Message, error) {
	msg, err := p.Messages.Get(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("ProcessMessage: %w", err)
	}
	if msg == nil {
		// The row is gone; retrying cannot bring it back.
		p.Logger.Warn("delivery job references missing message", slog.String("message_id", messageID))
		metrics.RecordMessageOutcome("unknown", "skipped")
		return nil, nil
	}
	if msg.Status.IsTerminal() {
		// Duplicate queue delivery or a cancellation that won the race.
		metrics.RecordMessageOutcome(string(msg.Channel), "skipped")
		return msg, nil
	}

	req, err := p.Requests.Get(ctx, msg.RequestID)
	if err != nil {
		return msg, fmt.Errorf("ProcessMessage: %w", err)
	}
	if req == nil {
		return msg, &TerminalError{Err: fmt.Errorf("request %s not found", msg.RequestID)}
	}

	allowed, err := p.Limiter.Allow(ctx, msg.Channel)
	if err != nil {
		return msg, fmt.Errorf("ProcessMessage: %w", err)
	}
	if !allowed {
		metrics.RecordRateLimitDenied(string(msg.Channel))
		return msg, ErrRateLimited
	}

	if err := p.Messages.MarkProcessing(ctx, msg.ID); err != nil {
		return msg, fmt.Errorf("ProcessMessage: %w", err)
	}

	h, ok := p.handlers[msg.Channel]
	if !ok {
		return msg, &TerminalError{Err: fmt.Errorf("no handler for channel %q", msg.Channel)}
	}
	delivery, err := h.build(ctx, req, msg)
	if err != nil {
		return msg, err
	}

	result, err := p.Provider.Send(ctx, delivery)
	if err != nil {
		if !provider.IsRetryable(err) {
			return msg, &TerminalError{Err: err}
		}
		return msg, err
	}

	// An accepted hand-off is delivery success regardless of the status the
	// gateway reports in the body; that status only sets the provider-facing
	// delivery state.
	if err := p.Messages.MarkSent(ctx, msg.ID, result.State, result.ProviderMessageID); err != nil {
		return msg, fmt.Errorf("ProcessMessage: %w", err)
	}
	if err := p.Counters.IncrementSent(ctx, msg.RequestID); err != nil {
		// The delivery already happened; retrying the job would double-send.
		p.Logger.Error("failed to buffer sent counter",
			slog.String("message_id", msg.ID),
			slog.String("request_id", msg.RequestID),
			slog.Any("error", err))
	}

	metrics.RecordMessageOutcome(string(msg.Channel), "sent")
	p.Logger.Info("message delivered to gateway",
		slog.String("message_id", msg.ID),
		slog.String("request_id", msg.RequestID),
		slog.String("channel", string(msg.Channel)),
		slog.String("delivery_state", string(result.State)))
	return msg, nil
}
