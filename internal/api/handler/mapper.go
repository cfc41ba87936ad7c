package handler

import (
	"fmt"

	"github.com/99minutos/parcel-intake/internal/core/domain"
	"github.com/99minutos/parcel-intake/internal/core/ports"
	"github.com/99minutos/parcel-intake/internal/core/tracking"
)

// --- Domain → Response ---

func toCandidates(found []domain.ParsedTrackingNumber) []candidateResponse {
	out := make([]candidateResponse, len(found))
	for i, p := range found {
		out[i] = candidateResponse{
			TrackingNumber: p.TrackingNumber,
			Carrier:        string(p.Carrier),
			Confidence:     string(p.Confidence),
			Raw:            p.Raw,
			NeedsReview:    p.NeedsReview(),
		}
	}
	return out
}

func toExtractResponse(found []domain.ParsedTrackingNumber) extractResponse {
	return extractResponse{
		Candidates:   toCandidates(found),
		Summary:      tracking.SummarizeParsed(found),
		NoneDetected: len(found) == 0,
	}
}

func toEntries(entries []domain.BatchEntry) []entryResponse {
	out := make([]entryResponse, len(entries))
	for i, e := range entries {
		out[i] = entryResponse{
			TrackingNumber: e.TrackingNumber,
			Carrier:        string(e.Carrier),
			Confidence:     string(e.Confidence),
			Raw:            e.Raw,
			Notes:          e.Notes,
			Source:         string(e.Source),
			NeedsReview:    e.Confidence != domain.ConfidenceHigh,
			AddedAt:        e.AddedAt,
		}
	}
	return out
}

func batchPath(id string) string {
	return "/v1/batches/" + id
}

func toBatchResponse(b *domain.Batch) batchResponse {
	self := batchPath(b.ID)
	return batchResponse{
		ID:          b.ID,
		RecipientID: b.RecipientID,
		OperatorID:  b.OperatorID,
		Status:      string(b.Status),
		Count:       len(b.Entries),
		CarrierMix:  tracking.SummarizeCarrierMix(b.Entries),
		Entries:     toEntries(b.Entries),
		ReceiptID:   b.ReceiptID,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
		SubmittedAt: b.SubmittedAt,
		Links: batchLinks{
			Self:    self,
			Scans:   self + "/scans",
			Summary: self + "/summary",
			Submit:  self + "/submit",
		},
	}
}

func toListResponse(res *ports.ListBatchesResult) listBatchesResponse {
	items := make([]batchSummaryItem, len(res.Items))
	for i, s := range res.Items {
		items[i] = batchSummaryItem{
			ID:          s.ID,
			RecipientID: s.RecipientID,
			OperatorID:  s.OperatorID,
			Status:      s.Status,
			Count:       s.Count,
			CarrierMix:  s.CarrierMix,
			CreatedAt:   s.CreatedAt,
			UpdatedAt:   s.UpdatedAt,
		}
	}
	return listBatchesResponse{
		Items:      items,
		Total:      res.Total,
		Page:       res.Page,
		Limit:      res.Limit,
		TotalPages: res.TotalPages,
	}
}

func toScanResponse(res *ports.ScanResult) scanResponse {
	dups := res.Duplicates
	if dups == nil {
		dups = []string{}
	}
	return scanResponse{
		BatchID:      res.BatchID,
		Detected:     toCandidates(res.Detected),
		Added:        toEntries(res.Added),
		Duplicates:   dups,
		NoneDetected: res.NoneDetected(),
		Summary:      res.Summary,
		Message:      scanMessage(res),
	}
}

// scanMessage is the operator-facing line shown after a scan.
func scanMessage(res *ports.ScanResult) string {
	switch {
	case res.NoneDetected():
		return "no tracking numbers detected"
	case len(res.Duplicates) == 0:
		return fmt.Sprintf("%d added", len(res.Added))
	default:
		return fmt.Sprintf("%d added, %d already in batch", len(res.Added), len(res.Duplicates))
	}
}

func toCarrierMixResponse(b *domain.Batch) carrierMixResponse {
	byCarrier := make(map[string]int)
	for _, c := range b.Carriers() {
		byCarrier[string(c)]++
	}
	review := 0
	for _, e := range b.Entries {
		if e.Confidence != domain.ConfidenceHigh {
			review++
		}
	}
	return carrierMixResponse{
		BatchID:     b.ID,
		Status:      string(b.Status),
		Count:       len(b.Entries),
		CarrierMix:  tracking.SummarizeCarrierMix(b.Entries),
		ByCarrier:   byCarrier,
		NeedsReview: review,
	}
}

func toSubmitResponse(res *ports.SubmitResult) submitResponse {
	return submitResponse{
		BatchID:     res.BatchID,
		ReceiptID:   res.ReceiptID,
		Recorded:    res.Recorded,
		Notified:    res.Notified,
		SubmittedAt: res.SubmittedAt,
	}
}

// --- Request → Service input ---

func toScanInput(req scanRequest, op domain.Operator) ports.ScanInput {
	return ports.ScanInput{
		BatchID:  req.BatchID,
		Text:     req.Text,
		Source:   domain.Source(req.Source),
		Notes:    req.Notes,
		Operator: op,
	}
}

func toEntryInput(req entryRequest, op domain.Operator) ports.EntryInput {
	return ports.EntryInput{
		BatchID:        req.BatchID,
		TrackingNumber: req.TrackingNumber,
		Notes:          req.Notes,
		Operator:       op,
	}
}
