package ports

import "context"

// RecordItem is one tracking number handed to the receiving service.
type RecordItem struct {
	TrackingNumber string `json:"tracking_number"`
	Notes          string `json:"notes,omitempty"`
}

// RecordRequest is the payload of the remote record-and-notify operation.
type RecordRequest struct {
	RecipientID string       `json:"recipient_id"`
	BatchID     string       `json:"batch_id"`
	Items       []RecordItem `json:"items"`
}

// RecordReceipt is what the receiving service returns after recording a batch.
type RecordReceipt struct {
	ReceiptID string `json:"receipt_id"`
	Recorded  int    `json:"recorded"`
	Notified  bool   `json:"notified"`
}

// ReceivingClient is the boundary to the remote functions that own recipient
// verification, package recording and customer notification.
type ReceivingClient interface {
	VerifyRecipient(ctx context.Context, recipientID string) (bool, error)
	RecordAndNotify(ctx context.Context, req RecordRequest) (*RecordReceipt, error)
}
