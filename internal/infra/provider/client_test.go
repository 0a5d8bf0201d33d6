package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notifrelay/internal/domain/entity"
)

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:           baseURL,
		Timeout:           2 * time.Second,
		RequestsPerSecond: 1000,
		Burst:             1000,
	}
}

func TestClientSend(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		expectedState entity.DeliveryState
	}{
		{
			name:          "accepted maps to queued",
			status:        http.StatusAccepted,
			body:          `{"status":"accepted"}`,
			expectedState: entity.DeliveryQueued,
		},
		{
			name:          "error maps to failed",
			status:        http.StatusAccepted,
			body:          `{"status":"error"}`,
			expectedState: entity.DeliveryFailed,
		},
		{
			name:          "unrecognized status maps to unknown",
			status:        http.StatusAccepted,
			body:          `{"status":"throttled"}`,
			expectedState: entity.DeliveryUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Delivery
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, http.MethodPost, r.Method)
				require.Equal(t, "/messages", r.URL.Path)
				require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewClient(testConfig(srv.URL))
			result, err := client.Send(context.Background(), Delivery{
				To:      "+15550001111",
				Channel: "sms",
				Subject: "",
				Content: "hello",
			})

			require.NoError(t, err)
			assert.Equal(t, tt.expectedState, result.State)
			assert.NotEmpty(t, result.ProviderMessageID)
			assert.Equal(t, "+15550001111", got.To)
			assert.Equal(t, "sms", got.Channel)
		})
	}
}

func TestClientSendNon202(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{name: "400 is a terminal client error", status: http.StatusBadRequest, retryable: false},
		{name: "422 is a terminal client error", status: http.StatusUnprocessableEntity, retryable: false},
		{name: "500 is retryable", status: http.StatusInternalServerError, retryable: true},
		{name: "200 without acceptance is retryable", status: http.StatusOK, retryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			client := NewClient(testConfig(srv.URL))
			result, err := client.Send(context.Background(), Delivery{To: "a@b.test", Channel: "email"})

			require.Error(t, err)
			assert.Nil(t, result)
			assert.Equal(t, tt.retryable, IsRetryable(err))
		})
	}
}

func TestClientSendNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	client := NewClient(testConfig(srv.URL))
	_, err := client.Send(context.Background(), Delivery{To: "a@b.test", Channel: "email"})

	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}
