package ports

import "context"

// BatchIndex is the shared membership set of every open batch. Claims are
// atomic across service replicas, so two scans racing on different replicas
// cannot both add the same tracking number.
type BatchIndex interface {
	// Claim adds numbers to the batch set. claimed[i] is false when
	// numbers[i] was already a member.
	Claim(ctx context.Context, batchID string, numbers []string) (claimed []bool, err error)
	Release(ctx context.Context, batchID string, numbers ...string) error
	Drop(ctx context.Context, batchID string) error
}
