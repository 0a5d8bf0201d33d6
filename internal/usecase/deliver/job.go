package deliver

import (
	"context"
	"log/slog"

	"notifrelay/internal/domain/entity"
	"notifrelay/internal/infra/queue"
	"notifrelay/internal/observability/metrics"
	"notifrelay/internal/repository"
)

// MaxAttempts is the per-message delivery attempt budget.
const MaxAttempts = 5

// Job adapts the processor to the queue's verdict contract: it decides
// between acknowledging, retrying, and failing a message for good, and is the
// single place a message transitions to FAILED.
type Job struct {
	Processor *Processor
	Messages  repository.MessageRepository
	Counters  CounterStore
	Logger    *slog.Logger
}

// Handle processes one queued delivery job. attempt starts at 1.
func (j *Job) Handle(ctx context.Context, messageID string, attempt int) queue.Verdict {
	msg, err := j.Processor.ProcessMessage(ctx, messageID)
	if err == nil {
		return queue.VerdictAck
	}

	if IsTerminal(err) {
		j.fail(ctx, msg, err.Error())
		return queue.VerdictAck
	}

	if attempt >= MaxAttempts {
		j.fail(ctx, msg, "Max attempts exceeded: "+err.Error())
		return queue.VerdictAck
	}

	if msg != nil {
		if resetErr := j.Messages.ResetForRetry(ctx, msg.ID, err.Error()); resetErr != nil {
			j.Logger.Error("failed to reset message for retry",
				slog.String("message_id", msg.ID),
				slog.Any("error", resetErr))
		}
		metrics.RecordMessageOutcome(string(msg.Channel), "retried")
	}
	j.Logger.Warn("delivery attempt failed, retrying",
		slog.String("message_id", messageID),
		slog.Int("attempt", attempt),
		slog.Int("max_attempts", MaxAttempts),
		slog.Any("error", err))
	return queue.VerdictRetry
}

// fail records the terminal failure on the message row and buffers the failed
// counter for its request.
func (j *Job) fail(ctx context.Context, msg *entity.Message, lastError string) {
	if msg == nil {
		return
	}
	if err := j.Messages.MarkFailed(ctx, msg.ID, lastError); err != nil {
		j.Logger.Error("failed to mark message failed",
			slog.String("message_id", msg.ID),
			slog.Any("error", err))
		return
	}
	if err := j.Counters.IncrementFailed(ctx, msg.RequestID); err != nil {
		j.Logger.Error("failed to buffer failed counter",
			slog.String("message_id", msg.ID),
			slog.String("request_id", msg.RequestID),
			slog.Any("error", err))
	}
	metrics.RecordMessageOutcome(string(msg.Channel), "failed")
	j.Logger.Error("message failed terminally",
		slog.String("message_id", msg.ID),
		slog.String("request_id", msg.RequestID),
		slog.String("last_error", lastError))
}
