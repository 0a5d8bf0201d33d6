// Package provider implements the HTTP client for the external delivery
// gateway. The gateway accepts a delivery with 202 and reports its own verdict
// in the response body; any other status is an error.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"notifrelay/internal/domain/entity"
	"notifrelay/internal/observability/metrics"
	"notifrelay/internal/resilience/circuitbreaker"
)

// Config contains configuration for the provider gateway client.
type Config struct {
	// BaseURL is the gateway endpoint (deliveries are POSTed to BaseURL/messages)
	BaseURL string

	// Timeout is the HTTP request timeout for gateway calls
	Timeout time.Duration

	// RequestsPerSecond is the client-side smoothing rate
	RequestsPerSecond float64

	// Burst is the token bucket burst capacity
	Burst int
}

// DefaultConfig returns production defaults for the gateway client.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:           baseURL,
		Timeout:           10 * time.Second,
		RequestsPerSecond: 50,
		Burst:             10,
	}
}

// Delivery is one outbound notification handed to the gateway.
type Delivery struct {
	To      string `json:"to"`
	Channel string `json:"channel"`
	Subject string `json:"subject"`
	Content string `json:"content"`
}

// Result is the gateway's verdict on an accepted delivery.
type Result struct {
	// ProviderMessageID identifies the delivery on our side of the gateway.
	ProviderMessageID string
	// State is the delivery state reported by the gateway.
	State entity.DeliveryState
}

type gatewayResponse struct {
	Status string `json:"status"`
}

// Client sends deliveries to the provider gateway. Calls pass through a token
// bucket and a circuit breaker so a degraded gateway fails fast instead of
// tying up worker goroutines.
type Client struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *circuitbreaker.CircuitBreaker
}

// NewClient creates a gateway client with the specified configuration.
func NewClient(config Config) *Client {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst),
		breaker: circuitbreaker.New(circuitbreaker.ProviderConfig()),
	}
}

// Send submits one delivery to the gateway.
//
// The gateway acknowledges with 202 Accepted and reports its verdict in the
// response body: "accepted" means the delivery is queued downstream, "error"
// means it already failed there, anything else is recorded as unknown.
func (c *Client) Send(ctx context.Context, d Delivery) (*Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("Send: %w", err)
	}

	start := time.Now()
	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.send(ctx, d)
	})
	metrics.RecordProviderCall(d.Channel, callStatus(err), time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("Send: %w", err)
	}
	return res.(*Result), nil
}

func (c *Client) send(ctx context.Context, d Delivery) (*Result, error) {
	jsonData, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal delivery payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/messages", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)

	// Only 202 counts as acceptance.
	if resp.StatusCode != http.StatusAccepted {
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, &ClientError{
				StatusCode: resp.StatusCode,
				Message:    fmt.Sprintf("gateway rejected delivery: status %d: %s", resp.StatusCode, string(body)),
			}
		}
		return nil, &ServerError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("gateway error: status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var gw gatewayResponse
	if err := json.Unmarshal(body, &gw); err != nil {
		return nil, fmt.Errorf("decode gateway response: %w", err)
	}

	return &Result{
		ProviderMessageID: uuid.New().String(),
		State:             stateFor(gw.Status),
	}, nil
}

func stateFor(status string) entity.DeliveryState {
	switch status {
	case "accepted":
		return entity.DeliveryQueued
	case "error":
		return entity.DeliveryFailed
	default:
		return entity.DeliveryUnknown
	}
}

func callStatus(err error) string {
	if err == nil {
		return "ok"
	}
	return "error"
}
