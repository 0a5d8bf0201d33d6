package deliver

import (
	"context"
	"fmt"

	"notifrelay/internal/domain/entity"
	"notifrelay/internal/infra/provider"
	"notifrelay/internal/pkg/render"
)

// BlobStore is the slice of blob storage the email handler needs.
type BlobStore interface {
	Get(path string) ([]byte, error)
}

// handler builds the outbound delivery for one channel. Render failures are
// terminal; only the email handler touches I/O.
type handler interface {
	build(ctx context.Context, req *entity.Request, msg *entity.Message) (provider.Delivery, error)
}

type smsHandler struct{}

func (smsHandler) build(_ context.Context, req *entity.Request, msg *entity.Message) (provider.Delivery, error) {
	content, err := render.Render(req.Template.Body, msg.Vars)
	if err != nil {
		return provider.Delivery{}, &TerminalError{Err: err}
	}
	return provider.Delivery{
		To:      msg.To,
		Channel: string(entity.ChannelSMS),
		Content: content,
	}, nil
}

type pushHandler struct{}

func (pushHandler) build(_ context.Context, req *entity.Request, msg *entity.Message) (provider.Delivery, error) {
	subject, err := render.Render(req.Template.Subject, msg.Vars)
	if err != nil {
		return provider.Delivery{}, &TerminalError{Err: err}
	}
	content, err := render.Render(req.Template.Body, msg.Vars)
	if err != nil {
		return provider.Delivery{}, &TerminalError{Err: err}
	}
	return provider.Delivery{
		To:      msg.To,
		Channel: string(entity.ChannelPush),
		Subject: subject,
		Content: content,
	}, nil
}

// emailHandler loads the relocated body template from blob storage before
// rendering.
type emailHandler struct {
	blobs BlobStore
}

func (h emailHandler) build(_ context.Context, req *entity.Request, msg *entity.Message) (provider.Delivery, error) {
	if req.Template.BodyPath == "" {
		return provider.Delivery{}, &TerminalError{Err: fmt.Errorf("email request %s has no body path", req.ID)}
	}
	body, err := h.blobs.Get(req.Template.BodyPath)
	if err != nil {
		// Storage hiccups are worth retrying; the blob was written at intake.
		return provider.Delivery{}, fmt.Errorf("load email body: %w", err)
	}
	subject, err := render.Render(req.Template.Subject, msg.Vars)
	if err != nil {
		return provider.Delivery{}, &TerminalError{Err: err}
	}
	content, err := render.Render(string(body), msg.Vars)
	if err != nil {
		return provider.Delivery{}, &TerminalError{Err: err}
	}
	return provider.Delivery{
		To:      msg.To,
		Channel: string(entity.ChannelEmail),
		Subject: subject,
		Content: content,
	}, nil
}
