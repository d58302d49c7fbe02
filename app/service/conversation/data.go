package conversation

// Status tags the result of one orchestration call. Exactly one status is
// produced per call.
type Status string

const (
	// StatusDiscuss continues the conversation without a trade decision.
	StatusDiscuss Status = "Discuss"
	// StatusReadyToShilling means the pool was verified in this call and
	// analytics may now be requested.
	StatusReadyToShilling Status = "ReadyToShilling"
	// StatusApprove is the terminal buy decision.
	StatusApprove Status = "Approve"
	// StatusReject is the terminal no-buy decision.
	StatusReject Status = "Reject"
	// StatusApproveFailed means the model committed to buying but the swap
	// could not be executed.
	StatusApproveFailed Status = "ApproveFailed"
	// StatusDecline means the rejection could not be recorded.
	StatusDecline Status = "Decline"
)

func (s Status) Terminal() bool {
	switch s {
	case StatusApprove, StatusReject, StatusApproveFailed, StatusDecline:
		return true
	default:
		return false
	}
}

// Request is one user message addressed to a session.
type Request struct {
	SessionID string
	// UserWallet identifies the caller. It is supplied by the host, the
	// model cannot override it through tool arguments.
	UserWallet     string
	Message        string
	TradingAllowed bool
}

// Outcome is the decision produced by one orchestration call. Artifact is
// populated only for StatusApprove and carries the persisted trade.
type Outcome struct {
	Text     string
	Status   Status
	Artifact any
}
