// Package remote talks to the receiving service: the hosted functions that
// verify recipients, record received packages and notify customers.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/99minutos/parcel-intake/internal/core/domain"
	"github.com/99minutos/parcel-intake/internal/core/ports"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultMaxRetries  = 2
	defaultBaseBackoff = 200 * time.Millisecond
	defaultRateLimit   = 20 // requests per second
	defaultBurst       = 10

	opVerifyRecipient = "verify-recipient"
	opRecordAndNotify = "record-and-notify"

	maxErrorBody = 4 << 10
)

// Config configures the receiving client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// ReceivingClient invokes remote operations as POST <base>/functions/<op>
// with a JSON body. It implements ports.ReceivingClient.
type ReceivingClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
	log        zerolog.Logger
}

func NewReceivingClient(cfg Config, log zerolog.Logger) (*ReceivingClient, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("receiving client: base url required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &ReceivingClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
		maxRetries: defaultMaxRetries,
		backoff:    defaultBaseBackoff,
		log:        log,
	}, nil
}

var _ ports.ReceivingClient = (*ReceivingClient)(nil)

type verifyRequest struct {
	RecipientID string `json:"recipient_id"`
}

type verifyResponse struct {
	Verified bool `json:"verified"`
}

// VerifyRecipient reports whether the recipient exists and may receive
// packages. An unknown recipient is (false, nil).
func (c *ReceivingClient) VerifyRecipient(ctx context.Context, recipientID string) (bool, error) {
	var out verifyResponse
	err := c.invoke(ctx, opVerifyRecipient, "", verifyRequest{RecipientID: recipientID}, &out)
	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return out.Verified, nil
}

// RecordAndNotify records every item of a batch and notifies the recipient.
// The batch id doubles as idempotency key so a retried call records once.
func (c *ReceivingClient) RecordAndNotify(ctx context.Context, req ports.RecordRequest) (*ports.RecordReceipt, error) {
	var out ports.RecordReceipt
	err := c.invoke(ctx, opRecordAndNotify, req.BatchID, req, &out)
	var se *statusError
	if errors.As(err, &se) && se.code < http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: %s", domain.ErrReceivingFailed, se.body)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReceivingFailed, err)
	}
	return &out, nil
}

func (c *ReceivingClient) invoke(ctx context.Context, op, idempotencyKey string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", op, err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: rate limiter: %w", op, err)
		}

		lastErr = c.do(ctx, op, idempotencyKey, body, out)
		if lastErr == nil || !retryable(lastErr) {
			return lastErr
		}
		c.log.Warn().Err(lastErr).Str("op", op).Int("attempt", attempt+1).Msg("receiving call failed, retrying")
	}
	return fmt.Errorf("%s: max retries exceeded: %w", op, lastErr)
}

func (c *ReceivingClient) do(ctx context.Context, op, idempotencyKey string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/functions/"+op, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &transportError{err: fmt.Errorf("%s: %w", op, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &statusError{op: op, code: resp.StatusCode, body: strings.TrimSpace(string(msg))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

type statusError struct {
	op   string
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.op, e.code, e.body)
}

type transportError struct{ err error }

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

// retryable is true for network failures, 429 and 5xx.
func retryable(err error) bool {
	var te *transportError
	if errors.As(err, &te) {
		return true
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= http.StatusInternalServerError
	}
	return false
}
