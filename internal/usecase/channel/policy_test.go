package channel

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notifrelay/internal/domain/entity"
)

type fakeBlobStore struct {
	path    string
	content []byte
	err     error
}

func (f *fakeBlobStore) Put(path string, content []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.path = path
	f.content = content
	return path, nil
}

func TestValidateLimits(t *testing.T) {
	policies := NewPolicies(DefaultLimits(), &fakeBlobStore{})

	tests := []struct {
		name    string
		channel entity.Channel
		tpl     entity.Template
		wantOK  bool
	}{
		{
			name:    "sms body at the limit",
			channel: entity.ChannelSMS,
			tpl:     entity.Template{Body: strings.Repeat("a", 160)},
			wantOK:  true,
		},
		{
			name:    "sms body one over the limit",
			channel: entity.ChannelSMS,
			tpl:     entity.Template{Body: strings.Repeat("a", 161)},
			wantOK:  false,
		},
		{
			name:    "sms accepts a subject within the shared cap",
			channel: entity.ChannelSMS,
			tpl:     entity.Template{Subject: "hi", Body: "ok"},
			wantOK:  true,
		},
		{
			name:    "sms subject over the shared cap",
			channel: entity.ChannelSMS,
			tpl:     entity.Template{Subject: strings.Repeat("s", 256), Body: "ok"},
			wantOK:  false,
		},
		{
			name:    "push subject and body at the limits",
			channel: entity.ChannelPush,
			tpl:     entity.Template{Subject: strings.Repeat("s", 100), Body: strings.Repeat("b", 200)},
			wantOK:  true,
		},
		{
			name:    "push subject over the limit",
			channel: entity.ChannelPush,
			tpl:     entity.Template{Subject: strings.Repeat("s", 101), Body: "ok"},
			wantOK:  false,
		},
		{
			name:    "push body over the limit",
			channel: entity.ChannelPush,
			tpl:     entity.Template{Body: strings.Repeat("b", 201)},
			wantOK:  false,
		},
		{
			name:    "email at the limits",
			channel: entity.ChannelEmail,
			tpl:     entity.Template{Subject: strings.Repeat("s", 255), Body: strings.Repeat("b", 10000)},
			wantOK:  true,
		},
		{
			name:    "email subject over the limit",
			channel: entity.ChannelEmail,
			tpl:     entity.Template{Subject: strings.Repeat("s", 256), Body: "ok"},
			wantOK:  false,
		},
		{
			name:    "email body over the limit",
			channel: entity.ChannelEmail,
			tpl:     entity.Template{Subject: "s", Body: strings.Repeat("b", 10001)},
			wantOK:  false,
		},
		{
			name:    "empty body rejected",
			channel: entity.ChannelSMS,
			tpl:     entity.Template{},
			wantOK:  false,
		},
		{
			name:    "multibyte runes count as characters, not bytes",
			channel: entity.ChannelSMS,
			tpl:     entity.Template{Body: strings.Repeat("あ", 160)},
			wantOK:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy, err := policies.ForChannel(tt.channel)
			require.NoError(t, err)

			err = policy.ValidateLimits(tt.tpl)
			if tt.wantOK {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, entity.IsValidation(err), "expected a validation error, got %v", err)
			}
		})
	}
}

func TestEmailPrepareTemplateRelocatesBody(t *testing.T) {
	blobs := &fakeBlobStore{}
	policies := NewPolicies(DefaultLimits(), blobs)

	policy, err := policies.ForChannel(entity.ChannelEmail)
	require.NoError(t, err)

	prepared, err := policy.PrepareTemplate(entity.Template{Subject: "hi", Body: "long body"}, "corr-1")
	require.NoError(t, err)

	assert.Equal(t, "notifications/email_corr-1.txt", blobs.path)
	assert.Equal(t, []byte("long body"), blobs.content)
	assert.Equal(t, "notifications/email_corr-1.txt", prepared.BodyPath)
	assert.Empty(t, prepared.Body, "inline body should be cleared after relocation")
	assert.Equal(t, "hi", prepared.Subject)
}

func TestEmailPrepareTemplateStoreFailure(t *testing.T) {
	blobs := &fakeBlobStore{err: errors.New("disk full")}
	policies := NewPolicies(DefaultLimits(), blobs)

	policy, err := policies.ForChannel(entity.ChannelEmail)
	require.NoError(t, err)

	_, err = policy.PrepareTemplate(entity.Template{Body: "b"}, "corr-2")
	assert.Error(t, err)
}

func TestSMSAndPushPrepareTemplateIsIdentity(t *testing.T) {
	policies := NewPolicies(DefaultLimits(), &fakeBlobStore{})

	for _, ch := range []entity.Channel{entity.ChannelSMS, entity.ChannelPush} {
		policy, err := policies.ForChannel(ch)
		require.NoError(t, err)

		tpl := entity.Template{Subject: "", Body: "short"}
		prepared, err := policy.PrepareTemplate(tpl, "corr-3")
		require.NoError(t, err)
		assert.Equal(t, tpl, prepared)
	}
}

func TestForChannelUnsupported(t *testing.T) {
	policies := NewPolicies(DefaultLimits(), &fakeBlobStore{})
	_, err := policies.ForChannel(entity.Channel("fax"))
	assert.Error(t, err)
}
