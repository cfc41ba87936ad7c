package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99minutos/parcel-intake/internal/core/domain"
	"github.com/99minutos/parcel-intake/internal/core/ports"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *ReceivingClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewReceivingClient(Config{BaseURL: srv.URL + "/", APIKey: "test-key", Timeout: time.Second}, zerolog.Nop())
	require.NoError(t, err)
	c.backoff = time.Millisecond
	return c
}

func TestNewReceivingClient_RequiresBaseURL(t *testing.T) {
	_, err := NewReceivingClient(Config{}, zerolog.Nop())
	assert.Error(t, err)
}

func TestVerifyRecipient(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/functions/verify-recipient", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var in verifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		_ = json.NewEncoder(w).Encode(verifyResponse{Verified: in.RecipientID == "cust_1"})
	})

	ok, err := c.VerifyRecipient(context.Background(), "cust_1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.VerifyRecipient(context.Background(), "cust_2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyRecipient_NotFoundIsUnverified(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such recipient", http.StatusNotFound)
	})

	ok, err := c.VerifyRecipient(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRecordAndNotify(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/functions/record-and-notify", r.URL.Path)
		assert.Equal(t, "batch-1", r.Header.Get("Idempotency-Key"))

		var in ports.RecordRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "cust_1", in.RecipientID)
		require.Len(t, in.Items, 2)
		assert.Equal(t, "fragile", in.Items[1].Notes)

		_ = json.NewEncoder(w).Encode(ports.RecordReceipt{ReceiptID: "rcpt_9", Recorded: len(in.Items), Notified: true})
	})

	receipt, err := c.RecordAndNotify(context.Background(), ports.RecordRequest{
		RecipientID: "cust_1",
		BatchID:     "batch-1",
		Items: []ports.RecordItem{
			{TrackingNumber: "1Z999AA10123456784"},
			{TrackingNumber: "986578788855", Notes: "fragile"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, &ports.RecordReceipt{ReceiptID: "rcpt_9", Recorded: 2, Notified: true}, receipt)
}

func TestRecordAndNotify_RejectedIsReceivingFailed(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "recipient suspended", http.StatusUnprocessableEntity)
	})

	_, err := c.RecordAndNotify(context.Background(), ports.RecordRequest{BatchID: "b"})
	assert.True(t, errors.Is(err, domain.ErrReceivingFailed))
	assert.Contains(t, err.Error(), "recipient suspended")
	assert.Equal(t, int32(1), calls.Load(), "client errors are not retried")
}

func TestInvoke_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(verifyResponse{Verified: true})
	})

	ok, err := c.VerifyRecipient(context.Background(), "cust_1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(3), calls.Load())
}

func TestInvoke_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.VerifyRecipient(context.Background(), "cust_1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, int32(defaultMaxRetries+1), calls.Load())
}
