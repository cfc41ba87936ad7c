package mongo

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/99minutos/parcel-intake/internal/core/ports"
)

func TestListFilter(t *testing.T) {
	tests := []struct {
		name string
		in   ports.ListBatchesFilter
		want bson.M
	}{
		{"admin, no filters", ports.ListBatchesFilter{}, bson.M{}},
		{"operator scoped", ports.ListBatchesFilter{OperatorID: "op_1"}, bson.M{"operator_id": "op_1"}},
		{
			"all filters",
			ports.ListBatchesFilter{OperatorID: "op_1", RecipientID: "cust_9", Status: "open"},
			bson.M{"operator_id": "op_1", "recipient_id": "cust_9", "status": "open"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := listFilter(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s: expected %v, got %v", k, v, got[k])
				}
			}
		})
	}
}
