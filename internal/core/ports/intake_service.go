package ports

import (
	"context"
	"time"

	"github.com/99minutos/parcel-intake/internal/core/domain"
)

// OpenBatchInput carries the data needed to start a receiving batch.
type OpenBatchInput struct {
	RecipientID string
	Operator    domain.Operator
}

// BatchRef identifies a batch on behalf of an operator.
type BatchRef struct {
	BatchID  string
	Operator domain.Operator
}

// ScanInput is one scan or paste event.
type ScanInput struct {
	BatchID  string
	Text     string
	Source   domain.Source
	Notes    string
	Operator domain.Operator
}

// ScanLabelInput is a label photo to be read and merged into a batch.
type ScanLabelInput struct {
	BatchID  string
	Image    []byte
	Notes    string
	Operator domain.Operator
}

// ScanResult reports what a scan changed. Duplicates lists the numbers that
// were already in the batch so the operator can be told they were skipped.
type ScanResult struct {
	BatchID    string
	Detected   []domain.ParsedTrackingNumber
	Added      []domain.BatchEntry
	Duplicates []string
	Summary    string
}

// NoneDetected reports whether the scanned text held no candidate at all.
func (r *ScanResult) NoneDetected() bool {
	return len(r.Detected) == 0
}

// EntryInput addresses one entry of a batch.
type EntryInput struct {
	BatchID        string
	TrackingNumber string
	Notes          string
	Operator       domain.Operator
}

// ListBatchesInput carries all parameters for the list endpoint.
type ListBatchesInput struct {
	Operator    domain.Operator
	RecipientID string
	Status      string
	Page        int
	Limit       int
}

// BatchSummary is the lightweight view used in list responses.
type BatchSummary struct {
	ID          string
	RecipientID string
	OperatorID  string
	Status      string
	Count       int
	CarrierMix  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ListBatchesResult is returned by ListBatches.
type ListBatchesResult struct {
	Items      []BatchSummary
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

// SubmitResult is returned once the receiving service accepted a batch.
type SubmitResult struct {
	BatchID     string
	ReceiptID   string
	Recorded    int
	Notified    bool
	SubmittedAt time.Time
}

// IntakeService defines the receiving use cases.
type IntakeService interface {
	Extract(ctx context.Context, text string) []domain.ParsedTrackingNumber

	OpenBatch(ctx context.Context, input OpenBatchInput) (*domain.Batch, error)
	GetBatch(ctx context.Context, ref BatchRef) (*domain.Batch, error)
	ListBatches(ctx context.Context, input ListBatchesInput) (*ListBatchesResult, error)

	Scan(ctx context.Context, input ScanInput) (*ScanResult, error)
	ScanLabel(ctx context.Context, input ScanLabelInput) (*ScanResult, error)
	UpdateNotes(ctx context.Context, input EntryInput) (*domain.Batch, error)
	RemoveEntry(ctx context.Context, input EntryInput) (*domain.Batch, error)

	Submit(ctx context.Context, ref BatchRef) (*SubmitResult, error)
}
