package ports

import "context"

// LabelReader turns a photographed shipping label into text.
type LabelReader interface {
	ReadLabel(ctx context.Context, image []byte) (string, error)
}
