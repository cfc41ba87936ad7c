package domain

import (
	"errors"
	"time"
)

// Source records how a tracking number was captured.
type Source string

const (
	SourceKeyboard Source = "KEYBOARD"
	SourceCamera   Source = "CAMERA"
	SourceLabel    Source = "LABEL"
)

// Valid reports whether s is one of the known capture sources.
func (s Source) Valid() bool {
	switch s {
	case SourceKeyboard, SourceCamera, SourceLabel:
		return true
	}
	return false
}

// BatchStatus represents the lifecycle state of a receiving batch.
type BatchStatus string

const (
	BatchOpen      BatchStatus = "open"
	BatchSubmitted BatchStatus = "submitted"
)

var ErrBatchNotFound = errors.New("batch not found")
var ErrEntryNotFound = errors.New("tracking number not in batch")
var ErrBatchClosed = errors.New("batch already submitted")
var ErrEmptyBatch = errors.New("batch has no tracking numbers")
var ErrForbidden = errors.New("access forbidden")
var ErrRecipientRequired = errors.New("recipient is required")
var ErrRecipientUnverified = errors.New("recipient could not be verified")
var ErrReceivingFailed = errors.New("receiving service rejected the batch")
var ErrLabelReaderUnavailable = errors.New("label reader not configured")
var ErrUnreadableLabel = errors.New("unreadable label image")

// BatchEntry is a tracking number collected into a batch, plus operator metadata.
type BatchEntry struct {
	TrackingNumber string     `json:"tracking_number" bson:"tracking_number"`
	Carrier        Carrier    `json:"carrier" bson:"carrier"`
	Confidence     Confidence `json:"confidence" bson:"confidence"`
	Raw            string     `json:"raw" bson:"raw"`
	Notes          string     `json:"notes,omitempty" bson:"notes,omitempty"`
	Source         Source     `json:"source" bson:"source"`
	AddedAt        time.Time  `json:"added_at" bson:"added_at"`
}

// Batch is the set of tracking numbers an operator records against one
// verified recipient before a single submission.
type Batch struct {
	ID          string       `json:"id" bson:"_id"`
	RecipientID string       `json:"recipient_id" bson:"recipient_id"`
	OperatorID  string       `json:"operator_id" bson:"operator_id"`
	Status      BatchStatus  `json:"status" bson:"status"`
	Entries     []BatchEntry `json:"entries" bson:"entries"`
	ReceiptID   string       `json:"receipt_id,omitempty" bson:"receipt_id,omitempty"`
	CreatedAt   time.Time    `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at" bson:"updated_at"`
	SubmittedAt *time.Time   `json:"submitted_at,omitempty" bson:"submitted_at,omitempty"`
}

// Has reports whether trackingNumber is already collected.
func (b *Batch) Has(trackingNumber string) bool {
	return b.indexOf(trackingNumber) >= 0
}

// Entry returns the entry for trackingNumber.
func (b *Batch) Entry(trackingNumber string) (BatchEntry, bool) {
	i := b.indexOf(trackingNumber)
	if i < 0 {
		return BatchEntry{}, false
	}
	return b.Entries[i], true
}

// Carriers lists the carrier of every entry in batch order.
func (b *Batch) Carriers() []Carrier {
	out := make([]Carrier, len(b.Entries))
	for i, e := range b.Entries {
		out[i] = e.Carrier
	}
	return out
}

// Merge appends the candidates not yet in the batch and returns them along
// with the tracking numbers that were skipped as duplicates. Input order is
// preserved in both results.
func (b *Batch) Merge(found []ParsedTrackingNumber, source Source, notes string, now time.Time) (added []BatchEntry, duplicates []string) {
	for _, p := range found {
		if p.TrackingNumber == "" {
			continue
		}
		if b.Has(p.TrackingNumber) {
			duplicates = append(duplicates, p.TrackingNumber)
			continue
		}
		entry := BatchEntry{
			TrackingNumber: p.TrackingNumber,
			Carrier:        p.Carrier,
			Confidence:     p.Confidence,
			Raw:            p.Raw,
			Notes:          notes,
			Source:         source,
			AddedAt:        now,
		}
		b.Entries = append(b.Entries, entry)
		added = append(added, entry)
	}
	if len(added) > 0 {
		b.UpdatedAt = now
	}
	return added, duplicates
}

// Remove drops trackingNumber from the batch.
func (b *Batch) Remove(trackingNumber string) error {
	i := b.indexOf(trackingNumber)
	if i < 0 {
		return ErrEntryNotFound
	}
	b.Entries = append(b.Entries[:i], b.Entries[i+1:]...)
	return nil
}

// SetNotes replaces the operator notes on one entry.
func (b *Batch) SetNotes(trackingNumber, notes string) error {
	i := b.indexOf(trackingNumber)
	if i < 0 {
		return ErrEntryNotFound
	}
	b.Entries[i].Notes = notes
	return nil
}

// IsOpen reports whether the batch still accepts changes.
func (b *Batch) IsOpen() bool {
	return b.Status == BatchOpen
}

func (b *Batch) indexOf(trackingNumber string) int {
	for i := range b.Entries {
		if b.Entries[i].TrackingNumber == trackingNumber {
			return i
		}
	}
	return -1
}
