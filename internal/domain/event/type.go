package event

// Type identifies the kind of status-change fact an event carries
type Type string

const (
	TypeRequestCreated  Type = "request.created"
	TypeRequestApproved Type = "request.approved"
	TypeRequestRejected Type = "request.rejected"
	TypeQueryRaised     Type = "request.query_raised"
	TypeQueryResponded  Type = "request.query_responded"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeRequestCreated,
		TypeRequestApproved,
		TypeRequestRejected,
		TypeQueryRaised,
		TypeQueryResponded:
		return true
	default:
		return false
	}
}
