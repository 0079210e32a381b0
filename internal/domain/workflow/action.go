package workflow

// Action identifies the kind of operation an actor performed on a request
type Action string

const (
	ActionSubmit  Action = "submit"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionQuery   Action = "query"
	ActionRespond Action = "respond"
)

var validActions = map[Action]bool{
	ActionSubmit:  true,
	ActionApprove: true,
	ActionReject:  true,
	ActionQuery:   true,
	ActionRespond: true,
}

// IsValid returns true if the action is a known operation kind
func (a Action) IsValid() bool {
	return validActions[a]
}

// String returns the string representation of the action
func (a Action) String() string {
	return string(a)
}
