package handler

import "time"

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

// --- Request types ---

type extractRequest struct {
	Text string `json:"text" validate:"required,max=65536"`
}

type openBatchRequest struct {
	RecipientID string `json:"recipient_id" validate:"required,max=128"`
}

type listBatchesQuery struct {
	RecipientID string `query:"recipient_id"`
	Status      string `query:"status" validate:"omitempty,oneof=open submitted"`
	Page        int    `query:"page"   validate:"omitempty,min=1"`
	Limit       int    `query:"limit"  validate:"omitempty,min=1"`
}

type scanRequest struct {
	BatchID string `param:"id"`
	Text    string `json:"text"   validate:"required,max=65536"`
	Source  string `json:"source" validate:"required,oneof=KEYBOARD CAMERA LABEL"`
	Notes   string `json:"notes"  validate:"max=500"`
}

type entryRequest struct {
	BatchID        string `param:"id"`
	TrackingNumber string `param:"tracking_number" validate:"required,trackingnumber"`
	Notes          string `json:"notes"             validate:"max=500"`
}

// --- Response types ---

type candidateResponse struct {
	TrackingNumber string `json:"tracking_number"`
	Carrier        string `json:"carrier"`
	Confidence     string `json:"confidence"`
	Raw            string `json:"raw"`
	NeedsReview    bool   `json:"needs_review"`
}

type extractResponse struct {
	Candidates   []candidateResponse `json:"candidates"`
	Summary      string              `json:"summary"`
	NoneDetected bool                `json:"none_detected"`
}

type entryResponse struct {
	TrackingNumber string    `json:"tracking_number"`
	Carrier        string    `json:"carrier"`
	Confidence     string    `json:"confidence"`
	Raw            string    `json:"raw"`
	Notes          string    `json:"notes,omitempty"`
	Source         string    `json:"source"`
	NeedsReview    bool      `json:"needs_review"`
	AddedAt        time.Time `json:"added_at"`
}

type batchLinks struct {
	Self    string `json:"self"`
	Scans   string `json:"scans"`
	Summary string `json:"summary"`
	Submit  string `json:"submit"`
}

type batchResponse struct {
	ID          string          `json:"id"`
	RecipientID string          `json:"recipient_id"`
	OperatorID  string          `json:"operator_id"`
	Status      string          `json:"status"`
	Count       int             `json:"count"`
	CarrierMix  string          `json:"carrier_mix"`
	Entries     []entryResponse `json:"entries"`
	ReceiptID   string          `json:"receipt_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	SubmittedAt *time.Time      `json:"submitted_at,omitempty"`
	Links       batchLinks      `json:"_links"`
}

type batchSummaryItem struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipient_id"`
	OperatorID  string    `json:"operator_id"`
	Status      string    `json:"status"`
	Count       int       `json:"count"`
	CarrierMix  string    `json:"carrier_mix"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type listBatchesResponse struct {
	Items      []batchSummaryItem `json:"items"`
	Total      int64              `json:"total"`
	Page       int                `json:"page"`
	Limit      int                `json:"limit"`
	TotalPages int                `json:"total_pages"`
}

type scanResponse struct {
	BatchID      string              `json:"batch_id"`
	Detected     []candidateResponse `json:"detected"`
	Added        []entryResponse     `json:"added"`
	Duplicates   []string            `json:"duplicates"`
	NoneDetected bool                `json:"none_detected"`
	Summary      string              `json:"summary"`
	Message      string              `json:"message"`
}

type carrierMixResponse struct {
	BatchID     string         `json:"batch_id"`
	Status      string         `json:"status"`
	Count       int            `json:"count"`
	CarrierMix  string         `json:"carrier_mix"`
	ByCarrier   map[string]int `json:"by_carrier"`
	NeedsReview int            `json:"needs_review"`
}

type submitResponse struct {
	BatchID     string    `json:"batch_id"`
	ReceiptID   string    `json:"receipt_id"`
	Recorded    int       `json:"recorded"`
	Notified    bool      `json:"notified"`
	SubmittedAt time.Time `json:"submitted_at"`
}
