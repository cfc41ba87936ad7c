package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/99minutos/parcel-intake/internal/core/domain"
	"github.com/99minutos/parcel-intake/internal/core/ports"
	"github.com/99minutos/parcel-intake/internal/core/tracking"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// Serializer runs fn so that calls sharing a key never overlap and complete
// in submission order. The queue dispatcher implements it.
type Serializer interface {
	Do(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

type IntakeService struct {
	repo     ports.BatchRepository
	index    ports.BatchIndex
	receiver ports.ReceivingClient
	labels   ports.LabelReader
	serial   Serializer
	logger   zerolog.Logger
	now      func() time.Time
}

// IntakeDeps groups the collaborators of IntakeService. Index and Labels
// are optional.
type IntakeDeps struct {
	Repo     ports.BatchRepository
	Index    ports.BatchIndex
	Receiver ports.ReceivingClient
	Labels   ports.LabelReader
	Serial   Serializer
}

func NewIntakeService(deps IntakeDeps, logger zerolog.Logger) *IntakeService {
	return &IntakeService{
		repo:     deps.Repo,
		index:    deps.Index,
		receiver: deps.Receiver,
		labels:   deps.Labels,
		serial:   deps.Serial,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Extract previews the candidates in text without touching any batch.
func (s *IntakeService) Extract(_ context.Context, text string) []domain.ParsedTrackingNumber {
	return tracking.Extract(text)
}

// OpenBatch verifies the recipient with the receiving service and starts an
// empty batch owned by the calling operator.
func (s *IntakeService) OpenBatch(ctx context.Context, in ports.OpenBatchInput) (*domain.Batch, error) {
	if in.RecipientID == "" {
		return nil, domain.ErrRecipientRequired
	}

	ok, err := s.receiver.VerifyRecipient(ctx, in.RecipientID)
	if err != nil {
		return nil, fmt.Errorf("open batch: verify recipient: %w", err)
	}
	if !ok {
		return nil, domain.ErrRecipientUnverified
	}

	now := s.now()
	batch := &domain.Batch{
		ID:          uuid.NewString(),
		RecipientID: in.RecipientID,
		OperatorID:  in.Operator.ID,
		Status:      domain.BatchOpen,
		Entries:     []domain.BatchEntry{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, batch); err != nil {
		s.logger.Error().Err(err).Msg("failed to create batch")
		return nil, err
	}

	s.logger.Info().Str("batch_id", batch.ID).Str("recipient_id", in.RecipientID).Str("operator_id", in.Operator.ID).Msg("batch opened")
	return batch, nil
}

func (s *IntakeService) GetBatch(ctx context.Context, ref ports.BatchRef) (*domain.Batch, error) {
	return s.load(ctx, ref.BatchID, ref.Operator)
}

// ListBatches enforces operator scoping: operators only ever see their own batches.
func (s *IntakeService) ListBatches(ctx context.Context, in ports.ListBatchesInput) (*ports.ListBatchesResult, error) {
	page := in.Page
	if page < 1 {
		page = 1
	}
	limit := in.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	filter := ports.ListBatchesFilter{
		RecipientID: in.RecipientID,
		Status:      in.Status,
		Page:        page,
		Limit:       limit,
	}
	if in.Operator.Role != domain.RoleAdmin {
		if in.Operator.ID == "" {
			return nil, domain.ErrForbidden
		}
		filter.OperatorID = in.Operator.ID
	}

	batches, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}

	items := make([]ports.BatchSummary, 0, len(batches))
	for _, b := range batches {
		items = append(items, ports.BatchSummary{
			ID:          b.ID,
			RecipientID: b.RecipientID,
			OperatorID:  b.OperatorID,
			Status:      string(b.Status),
			Count:       len(b.Entries),
			CarrierMix:  tracking.SummarizeCarrierMix(b.Entries),
			CreatedAt:   b.CreatedAt,
			UpdatedAt:   b.UpdatedAt,
		})
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return &ports.ListBatchesResult{
		Items:      items,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}, nil
}

// Scan extracts tracking numbers from one scan or paste event and merges the
// new ones into the batch. Text without candidates is not an error: the
// result simply reports nothing detected.
func (s *IntakeService) Scan(ctx context.Context, in ports.ScanInput) (*ports.ScanResult, error) {
	if !in.Source.Valid() {
		return nil, fmt.Errorf("scan: unknown source %q", in.Source)
	}

	found := tracking.Extract(in.Text)
	result := &ports.ScanResult{BatchID: in.BatchID, Detected: found}

	err := s.serial.Do(ctx, in.BatchID, func(ctx context.Context) error {
		batch, err := s.load(ctx, in.BatchID, in.Operator)
		if err != nil {
			return err
		}
		if !batch.IsOpen() {
			return domain.ErrBatchClosed
		}
		if len(found) == 0 {
			result.Summary = tracking.SummarizeCarrierMix(batch.Entries)
			return nil
		}

		accepted, contested := s.claim(ctx, batch.ID, found)
		now := s.now()
		added, dups := batch.Merge(accepted, in.Source, in.Notes, now)
		dups = inInputOrder(found, dups, contested)

		if len(added) > 0 {
			if err := s.repo.AppendEntries(ctx, batch.ID, added, now); err != nil {
				s.release(ctx, batch.ID, added)
				return fmt.Errorf("scan: append entries: %w", err)
			}
		}

		result.Added = added
		result.Duplicates = dups
		result.Summary = tracking.SummarizeCarrierMix(batch.Entries)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.NoneDetected() {
		s.logger.Debug().Str("batch_id", in.BatchID).Str("source", string(in.Source)).Msg("no tracking numbers detected")
	} else {
		s.logger.Info().
			Str("batch_id", in.BatchID).
			Str("source", string(in.Source)).
			Int("detected", len(result.Detected)).
			Int("added", len(result.Added)).
			Int("duplicates", len(result.Duplicates)).
			Msg("scan merged")
	}
	return result, nil
}

// ScanLabel reads a label photo and merges what it finds with source LABEL.
func (s *IntakeService) ScanLabel(ctx context.Context, in ports.ScanLabelInput) (*ports.ScanResult, error) {
	if s.labels == nil {
		return nil, domain.ErrLabelReaderUnavailable
	}
	// Fail on access before paying for OCR.
	if _, err := s.load(ctx, in.BatchID, in.Operator); err != nil {
		return nil, err
	}

	text, err := s.labels.ReadLabel(ctx, in.Image)
	if err != nil {
		return nil, fmt.Errorf("scan label: %w", err)
	}
	s.logger.Debug().Str("batch_id", in.BatchID).Int("chars", len(text)).Msg("label read")

	return s.Scan(ctx, ports.ScanInput{
		BatchID:  in.BatchID,
		Text:     text,
		Source:   domain.SourceLabel,
		Notes:    in.Notes,
		Operator: in.Operator,
	})
}

func (s *IntakeService) UpdateNotes(ctx context.Context, in ports.EntryInput) (*domain.Batch, error) {
	var out *domain.Batch
	err := s.serial.Do(ctx, in.BatchID, func(ctx context.Context) error {
		batch, err := s.loadOpen(ctx, in.BatchID, in.Operator)
		if err != nil {
			return err
		}
		if err := batch.SetNotes(in.TrackingNumber, in.Notes); err != nil {
			return err
		}
		now := s.now()
		if err := s.repo.UpdateEntryNotes(ctx, batch.ID, in.TrackingNumber, in.Notes, now); err != nil {
			return fmt.Errorf("update notes: %w", err)
		}
		batch.UpdatedAt = now
		out = batch
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *IntakeService) RemoveEntry(ctx context.Context, in ports.EntryInput) (*domain.Batch, error) {
	var out *domain.Batch
	err := s.serial.Do(ctx, in.BatchID, func(ctx context.Context) error {
		batch, err := s.loadOpen(ctx, in.BatchID, in.Operator)
		if err != nil {
			return err
		}
		if err := batch.Remove(in.TrackingNumber); err != nil {
			return err
		}
		now := s.now()
		if err := s.repo.RemoveEntry(ctx, batch.ID, in.TrackingNumber, now); err != nil {
			return fmt.Errorf("remove entry: %w", err)
		}
		if s.index != nil {
			if err := s.index.Release(ctx, batch.ID, in.TrackingNumber); err != nil {
				s.logger.Warn().Err(err).Str("batch_id", batch.ID).Str("tracking_number", in.TrackingNumber).Msg("failed to release index entry")
			}
		}
		batch.UpdatedAt = now
		out = batch
		s.logger.Info().Str("batch_id", batch.ID).Str("tracking_number", in.TrackingNumber).Msg("entry removed")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Submit hands the deduplicated batch to the receiving service and closes it.
func (s *IntakeService) Submit(ctx context.Context, ref ports.BatchRef) (*ports.SubmitResult, error) {
	var out *ports.SubmitResult
	err := s.serial.Do(ctx, ref.BatchID, func(ctx context.Context) error {
		batch, err := s.loadOpen(ctx, ref.BatchID, ref.Operator)
		if err != nil {
			return err
		}
		if len(batch.Entries) == 0 {
			return domain.ErrEmptyBatch
		}

		items := make([]ports.RecordItem, len(batch.Entries))
		for i, e := range batch.Entries {
			items[i] = ports.RecordItem{TrackingNumber: e.TrackingNumber, Notes: e.Notes}
		}

		receipt, err := s.receiver.RecordAndNotify(ctx, ports.RecordRequest{
			RecipientID: batch.RecipientID,
			BatchID:     batch.ID,
			Items:       items,
		})
		if err != nil {
			s.logger.Error().Err(err).Str("batch_id", batch.ID).Msg("record and notify failed")
			return fmt.Errorf("submit batch: %w", err)
		}

		now := s.now()
		if err := s.repo.MarkSubmitted(ctx, batch.ID, receipt.ReceiptID, now); err != nil {
			// The remote side already recorded the batch; surface the receipt
			// in the log so the close can be repaired by hand.
			s.logger.Error().Err(err).Str("batch_id", batch.ID).Str("receipt_id", receipt.ReceiptID).Msg("failed to mark batch submitted")
			return fmt.Errorf("submit batch: mark submitted: %w", err)
		}
		if s.index != nil {
			if err := s.index.Drop(ctx, batch.ID); err != nil {
				s.logger.Warn().Err(err).Str("batch_id", batch.ID).Msg("failed to drop batch index")
			}
		}

		out = &ports.SubmitResult{
			BatchID:     batch.ID,
			ReceiptID:   receipt.ReceiptID,
			Recorded:    receipt.Recorded,
			Notified:    receipt.Notified,
			SubmittedAt: now,
		}
		s.logger.Info().
			Str("batch_id", batch.ID).
			Str("receipt_id", receipt.ReceiptID).
			Int("items", len(items)).
			Msg("batch submitted")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// load fetches a batch and enforces ownership.
func (s *IntakeService) load(ctx context.Context, id string, op domain.Operator) (*domain.Batch, error) {
	batch, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !op.CanAccess(batch) {
		return nil, domain.ErrForbidden
	}
	return batch, nil
}

func (s *IntakeService) loadOpen(ctx context.Context, id string, op domain.Operator) (*domain.Batch, error) {
	batch, err := s.load(ctx, id, op)
	if err != nil {
		return nil, err
	}
	if !batch.IsOpen() {
		return nil, domain.ErrBatchClosed
	}
	return batch, nil
}

// claim reserves found numbers in the shared batch index. Numbers another
// replica already holds come back as contested. When the index is missing
// or failing, everything is accepted and the batch document alone dedupes.
func (s *IntakeService) claim(ctx context.Context, batchID string, found []domain.ParsedTrackingNumber) (accepted []domain.ParsedTrackingNumber, contested []string) {
	if s.index == nil {
		return found, nil
	}

	numbers := make([]string, len(found))
	for i, p := range found {
		numbers[i] = p.TrackingNumber
	}
	claimed, err := s.index.Claim(ctx, batchID, numbers)
	if err != nil || len(claimed) != len(found) {
		if err == nil {
			err = errors.New("claim result length mismatch")
		}
		s.logger.Warn().Err(err).Str("batch_id", batchID).Msg("batch index claim failed, merging anyway")
		return found, nil
	}

	for i, p := range found {
		if claimed[i] {
			accepted = append(accepted, p)
		} else {
			contested = append(contested, p.TrackingNumber)
		}
	}
	return accepted, contested
}

// inInputOrder returns the numbers named in lists ordered as they appear in
// found.
func inInputOrder(found []domain.ParsedTrackingNumber, lists ...[]string) []string {
	skipped := make(map[string]struct{})
	for _, l := range lists {
		for _, n := range l {
			skipped[n] = struct{}{}
		}
	}
	if len(skipped) == 0 {
		return nil
	}
	out := make([]string, 0, len(skipped))
	for _, p := range found {
		if _, ok := skipped[p.TrackingNumber]; ok {
			out = append(out, p.TrackingNumber)
			delete(skipped, p.TrackingNumber)
		}
	}
	return out
}

func (s *IntakeService) release(ctx context.Context, batchID string, added []domain.BatchEntry) {
	if s.index == nil {
		return
	}
	numbers := make([]string, len(added))
	for i, e := range added {
		numbers[i] = e.TrackingNumber
	}
	if err := s.index.Release(ctx, batchID, numbers...); err != nil {
		s.logger.Warn().Err(err).Str("batch_id", batchID).Msg("failed to release index entries")
	}
}
