package domain

const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
)

// Operator is the authenticated console user behind a request. Tokens are
// issued by the console's identity service; this service only reads them.
type Operator struct {
	ID   string
	Role string
}

// CanAccess reports whether the operator may read or change b.
func (o Operator) CanAccess(b *Batch) bool {
	return o.Role == RoleAdmin || (o.ID != "" && o.ID == b.OperatorID)
}
