// Package payments talks to the hosted subscription checkout provider.
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"reflexion/internal/models"

	"github.com/sony/gobreaker"
)

const (
	defaultTimeout     = 10 * time.Second
	maxResponseBytes   = 1 << 20
	preapprovalPath    = "/preapproval"
	breakerName        = "payments"
	breakerMinRequests = 5
	breakerFailRatio   = 0.6
)

// SubscriptionRequest asks the provider for a recurring-payment checkout.
type SubscriptionRequest struct {
	PlanID            string `json:"preapproval_plan_id"`
	PayerEmail        string `json:"payer_email"`
	ExternalReference string `json:"external_reference"`
	BackURL           string `json:"back_url"`
	Status            string `json:"status"`
}

// Subscription is the provider's answer; InitPoint is where the payer is sent.
type Subscription struct {
	ID        string `json:"id"`
	InitPoint string `json:"init_point"`
	Status    string `json:"status"`
}

// Client is a provider API client guarded by a circuit breaker.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewClient builds a client for baseURL. A nil httpClient uses a client
// with a 10s timeout.
func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    httpClient,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        breakerName,
			MaxRequests: 1,
			Interval:    30 * time.Second,
			Timeout:     60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				if counts.Requests < breakerMinRequests {
					return false
				}
				return float64(counts.TotalFailures)/float64(counts.Requests) >= breakerFailRatio
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("circuit breaker state changed",
					slog.String("breaker", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()),
				)
			},
			IsSuccessful: func(err error) bool {
				// Caller mistakes say nothing about provider health.
				return err == nil || models.ErrorCode(err) == models.CodeValidation
			},
		}),
	}
}

// CreateSubscription registers a pending subscription and returns the
// checkout redirect.
func (c *Client) CreateSubscription(ctx context.Context, req SubscriptionRequest) (*Subscription, error) {
	if c.baseURL == "" || c.apiKey == "" {
		return nil, models.NewUnavailableError(errors.New("payment provider not configured"))
	}
	if req.Status == "" {
		req.Status = "pending"
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.post(ctx, preapprovalPath, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, models.NewUnavailableError(err)
		}
		return nil, err
	}
	return out.(*Subscription), nil
}

func (c *Client) post(ctx context.Context, path string, payload any) (*Subscription, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, models.NewUnavailableError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, models.NewUnavailableError(err)
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests:
		return nil, models.NewUnavailableError(fmt.Errorf("provider returned %d", resp.StatusCode))
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, models.NewValidationError(fmt.Sprintf("provider rejected checkout (%d): %s", resp.StatusCode, truncate(string(raw), 200)))
	}

	var sub Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, models.NewInternalError(fmt.Errorf("decode provider response: %w", err))
	}
	if sub.InitPoint == "" {
		return nil, models.NewInternalError(errors.New("provider response has no init_point"))
	}
	return &sub, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
