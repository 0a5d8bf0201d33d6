// Package channel holds the per-channel template policies: field bounds at
// intake and channel-specific template preparation before persistence.
package channel

import (
	"fmt"
	"unicode/utf8"

	"notifrelay/internal/domain/entity"
)

// BlobStore is the slice of blob storage the email policy needs.
type BlobStore interface {
	Put(path string, content []byte) (string, error)
}

// Policy validates and prepares a template for one channel.
type Policy interface {
	// Channel names the channel this policy governs.
	Channel() entity.Channel

	// ValidateLimits checks the template against the channel's field bounds.
	// Violations come back as entity.ValidationErrors.
	ValidateLimits(tpl entity.Template) error

	// PrepareTemplate applies channel-specific transformations before the
	// request is persisted. The correlation ID keys any derived artifacts.
	PrepareTemplate(tpl entity.Template, correlationID string) (entity.Template, error)
}

// Policies resolves the policy for each supported channel.
type Policies struct {
	byChannel map[entity.Channel]Policy
}

// NewPolicies builds the policy set from the configured bounds. The blob store
// backs the email policy's body relocation.
func NewPolicies(cfg LimitsConfig, blobs BlobStore) *Policies {
	return &Policies{
		byChannel: map[entity.Channel]Policy{
			entity.ChannelSMS:   &smsPolicy{limits: cfg.SMS},
			entity.ChannelPush:  &pushPolicy{limits: cfg.Push},
			entity.ChannelEmail: &emailPolicy{limits: cfg.Email, blobs: blobs},
		},
	}
}

// ForChannel returns the policy governing the channel.
func (p *Policies) ForChannel(c entity.Channel) (Policy, error) {
	policy, ok := p.byChannel[c]
	if !ok {
		return nil, fmt.Errorf("ForChannel: unsupported channel %q", c)
	}
	return policy, nil
}

func validate(limits Limits, tpl entity.Template) error {
	var errs entity.ValidationErrors

	if tpl.Body == "" {
		errs = append(errs, &entity.ValidationError{Field: "body", Message: "body is required"})
	}
	if n := utf8.RuneCountInString(tpl.Body); limits.MaxBody > 0 && n > limits.MaxBody {
		errs = append(errs, &entity.ValidationError{
			Field:   "body",
			Message: fmt.Sprintf("body exceeds %d characters (got %d)", limits.MaxBody, n),
		})
	}
	if n := utf8.RuneCountInString(tpl.Subject); limits.MaxSubject > 0 && n > limits.MaxSubject {
		errs = append(errs, &entity.ValidationError{
			Field:   "subject",
			Message: fmt.Sprintf("subject exceeds %d characters (got %d)", limits.MaxSubject, n),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type smsPolicy struct {
	limits Limits
}

func (p *smsPolicy) Channel() entity.Channel { return entity.ChannelSMS }

func (p *smsPolicy) ValidateLimits(tpl entity.Template) error {
	return validate(p.limits, tpl)
}

func (p *smsPolicy) PrepareTemplate(tpl entity.Template, _ string) (entity.Template, error) {
	return tpl, nil
}

type pushPolicy struct {
	limits Limits
}

func (p *pushPolicy) Channel() entity.Channel { return entity.ChannelPush }

func (p *pushPolicy) ValidateLimits(tpl entity.Template) error {
	return validate(p.limits, tpl)
}

func (p *pushPolicy) PrepareTemplate(tpl entity.Template, _ string) (entity.Template, error) {
	return tpl, nil
}

// emailPolicy relocates the body to blob storage so the requests table never
// carries multi-kilobyte template text.
type emailPolicy struct {
	limits Limits
	blobs  BlobStore
}

func (p *emailPolicy) Channel() entity.Channel { return entity.ChannelEmail }

func (p *emailPolicy) ValidateLimits(tpl entity.Template) error {
	return validate(p.limits, tpl)
}

func (p *emailPolicy) PrepareTemplate(tpl entity.Template, correlationID string) (entity.Template, error) {
	path, err := p.blobs.Put(fmt.Sprintf("notifications/email_%s.txt", correlationID), []byte(tpl.Body))
	if err != nil {
		return entity.Template{}, fmt.Errorf("PrepareTemplate: store email body: %w", err)
	}
	tpl.BodyPath = path
	tpl.Body = ""
	return tpl, nil
}
