package ports

import (
	"context"
	"time"

	"github.com/99minutos/parcel-intake/internal/core/domain"
)

// ListBatchesFilter carries all query parameters for listing batches.
// OperatorID is always enforced by the service layer for the operator role.
type ListBatchesFilter struct {
	OperatorID  string // empty = no filter (admin)
	RecipientID string // optional
	Status      string // optional: open | submitted
	Page        int    // 1-based
	Limit       int    // capped at 100 by service
}

// BatchRepository defines persistence operations for receiving batches.
type BatchRepository interface {
	Create(ctx context.Context, b *domain.Batch) error
	FindByID(ctx context.Context, id string) (*domain.Batch, error)
	List(ctx context.Context, filter ListBatchesFilter) ([]*domain.Batch, int64, error)

	// AppendEntries pushes entries onto an open batch. It returns
	// domain.ErrBatchClosed when the batch was submitted in the meantime.
	AppendEntries(ctx context.Context, id string, entries []domain.BatchEntry, at time.Time) error
	UpdateEntryNotes(ctx context.Context, id, trackingNumber, notes string, at time.Time) error
	RemoveEntry(ctx context.Context, id, trackingNumber string, at time.Time) error

	// MarkSubmitted closes the batch and records the receipt of the remote
	// record-and-notify call.
	MarkSubmitted(ctx context.Context, id, receiptID string, at time.Time) error
}
