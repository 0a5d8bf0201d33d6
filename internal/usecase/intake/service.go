// Package intake implements the request acceptance path: validation,
// idempotency, per-recipient filtering, channel policy, and the initial
// fan-out into per-recipient messages.
package intake

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"notifrelay/internal/domain/entity"
	"notifrelay/internal/observability/metrics"
	"notifrelay/internal/pkg/render"
	"notifrelay/internal/repository"
	"notifrelay/internal/usecase/channel"
)

// RecipientInput is one recipient with its template variables.
type RecipientInput struct {
	To   string
	Vars map[string]any
}

// CreateInput represents the input parameters for creating a notification request.
type CreateInput struct {
	ClientID       string
	IdempotencyKey string
	CorrelationID  string
	Channel        entity.Channel
	Priority       entity.Priority
	Subject        string
	Body           string
	Recipients     []RecipientInput
	ScheduledAt    *time.Time
}

// CreateResult carries the persisted request plus whether this call created it
// or replayed a prior one under the same idempotency key.
type CreateResult struct {
	Request *entity.Request
	Created bool
}

// Enqueuer hands accepted messages to the dispatcher. Scheduled requests skip
// it; the periodic sweep picks them up instead.
type Enqueuer interface {
	EnqueueMessages(ctx context.Context, msgs []*entity.Message) (int, error)
}

// Service provides the request intake use case.
type Service struct {
	Requests repository.RequestRepository
	Messages repository.MessageRepository
	Policies *channel.Policies
	Enqueuer Enqueuer
	Logger   *slog.Logger
}

// Create validates and persists a notification request, fanning it out into
// one message per accepted recipient. Recipients failing per-recipient
// validation are rejected individually; they count toward requested_count but
// produce no message. Replays under a known idempotency key return the prior
// request untouched.
func (s *Service) Create(ctx context.Context, in CreateInput) (*CreateResult, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	key := in.IdempotencyKey
	if key == "" {
		// Auto-generated keys make every retry of a keyless call unique.
		key = "i-" + strings.ReplaceAll(uuid.New().String(), "-", "")
	} else {
		prior, err := s.Requests.GetByIdempotencyKey(ctx, in.ClientID, key)
		if err != nil {
			return nil, fmt.Errorf("Create: %w", err)
		}
		if prior != nil {
			return &CreateResult{Request: prior, Created: false}, nil
		}
	}

	policy, err := s.Policies.ForChannel(in.Channel)
	if err != nil {
		return nil, &entity.ValidationError{Field: "channel", Message: fmt.Sprintf("unsupported channel %q", in.Channel)}
	}
	tpl := entity.Template{Subject: in.Subject, Body: in.Body}
	if err := policy.ValidateLimits(tpl); err != nil {
		return nil, err
	}

	required := requiredVars(tpl)

	correlationID := in.CorrelationID
	if correlationID == "" {
		correlationID = uuid.New().String()
	}

	now := time.Now().UTC()
	req := &entity.Request{
		ID:             uuid.New().String(),
		ClientID:       in.ClientID,
		IdempotencyKey: key,
		CorrelationID:  correlationID,
		Channel:        in.Channel,
		Priority:       in.Priority,
		RequestedCount: len(in.Recipients),
		Status:         entity.StatusPending,
		ScheduledAt:    in.ScheduledAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	msgs := make([]*entity.Message, 0, len(in.Recipients))
	for _, rcpt := range in.Recipients {
		if !acceptRecipient(rcpt, required) {
			continue
		}
		msgs = append(msgs, &entity.Message{
			ID:            uuid.New().String(),
			RequestID:     req.ID,
			To:            rcpt.To,
			Vars:          rcpt.Vars,
			Channel:       in.Channel,
			Priority:      in.Priority,
			Status:        entity.StatusPending,
			DeliveryState: entity.DeliveryQueued,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}
	if len(msgs) == 0 {
		return nil, &entity.ValidationError{Field: "recipients", Message: "no valid recipients"}
	}
	req.AcceptedCount = len(msgs)
	req.PendingCount = len(msgs)

	prepared, err := policy.PrepareTemplate(tpl, correlationID)
	if err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}
	req.Template = prepared

	if err := s.Requests.CreateWithMessages(ctx, req, msgs); err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	metrics.RequestsAcceptedTotal.WithLabelValues(string(req.Channel), string(req.Priority)).Inc()
	logger := s.Logger.With(
		slog.String("request_id", req.ID),
		slog.String("correlation_id", correlationID),
		slog.String("channel", string(req.Channel)))
	logger.Info("notification request accepted",
		slog.Int("requested", req.RequestedCount),
		slog.Int("accepted", req.AcceptedCount),
		slog.Int("rejected", req.RejectedCount()))

	if req.ScheduledAt == nil {
		if _, err := s.Enqueuer.EnqueueMessages(ctx, msgs); err != nil {
			// The request is durable; stragglers stay PENDING until an
			// operator redispatches them.
			logger.Error("immediate enqueue incomplete", slog.Any("error", err))
		}
	}

	return &CreateResult{Request: req, Created: true}, nil
}

// Get returns a client's request by id, nil when it does not exist or belongs
// to another client.
func (s *Service) Get(ctx context.Context, clientID, id string) (*entity.Request, error) {
	req, err := s.Requests.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	if req == nil || req.ClientID != clientID {
		return nil, nil
	}
	return req, nil
}

// GetWithMessages returns a client's request together with its per-recipient
// messages, nil when the request is unknown or foreign.
func (s *Service) GetWithMessages(ctx context.Context, clientID, id string) (*entity.Request, []*entity.Message, error) {
	req, err := s.Get(ctx, clientID, id)
	if err != nil || req == nil {
		return req, nil, err
	}
	msgs, err := s.Messages.ListByRequest(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("GetWithMessages: %w", err)
	}
	return req, msgs, nil
}

// List returns the client's requests newest-first with the total match count.
func (s *Service) List(ctx context.Context, clientID string, f repository.RequestFilter) ([]*entity.Request, int64, error) {
	items, total, err := s.Requests.List(ctx, clientID, f)
	if err != nil {
		return nil, 0, fmt.Errorf("List: %w", err)
	}
	return items, total, nil
}

func validateInput(in CreateInput) error {
	var errs entity.ValidationErrors
	if in.ClientID == "" {
		errs = append(errs, &entity.ValidationError{Field: "client_id", Message: "is required"})
	}
	if !in.Channel.IsValid() {
		errs = append(errs, &entity.ValidationError{Field: "channel", Message: fmt.Sprintf("must be one of sms, email, push (got %q)", in.Channel)})
	}
	if !in.Priority.IsValid() {
		errs = append(errs, &entity.ValidationError{Field: "priority", Message: fmt.Sprintf("must be one of low, normal, high (got %q)", in.Priority)})
	}
	if len(in.Recipients) == 0 {
		errs = append(errs, &entity.ValidationError{Field: "recipients", Message: "at least one recipient is required"})
	}
	if in.ScheduledAt != nil && in.ScheduledAt.Before(time.Now()) {
		errs = append(errs, &entity.ValidationError{Field: "scheduled_at", Message: "must be in the future"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// requiredVars collects the placeholders a recipient must supply, across both
// template fields.
func requiredVars(tpl entity.Template) []string {
	seen := make(map[string]struct{})
	var vars []string
	for _, v := range append(render.Vars(tpl.Subject), render.Vars(tpl.Body)...) {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		vars = append(vars, v)
	}
	return vars
}

// acceptRecipient applies the per-recipient filter: a non-empty address,
// scalar-only variables, and every placeholder covered.
func acceptRecipient(rcpt RecipientInput, required []string) bool {
	if strings.TrimSpace(rcpt.To) == "" {
		return false
	}
	if !entity.ScalarVars(rcpt.Vars) {
		return false
	}
	for _, v := range required {
		if _, ok := rcpt.Vars[v]; !ok {
			return false
		}
	}
	return true
}
