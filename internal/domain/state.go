package domain

// TxState tracks one verify call through the checkout flow.
type TxState string

const (
	StateCreated     TxState = "CREATED"
	StateVerifying   TxState = "VERIFYING"
	StateVerified    TxState = "VERIFIED"
	StateRejected    TxState = "REJECTED"
	StateProvisioned TxState = "PROVISIONED"
	StateFulfilled   TxState = "FULFILLED"
	StateNotified    TxState = "NOTIFIED"
	StateFailed      TxState = "FAILED"
)

var transitions = map[TxState][]TxState{
	StateCreated:     {StateVerifying},
	StateVerifying:   {StateVerified, StateRejected},
	StateVerified:    {StateProvisioned, StateFailed},
	StateProvisioned: {StateFulfilled, StateFailed},
	StateFulfilled:   {StateNotified},
}

// CanTransition reports whether next may follow s.
func (s TxState) CanTransition(next TxState) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Terminal is true for states that end a verify call.
func (s TxState) Terminal() bool {
	return s == StateRejected || s == StateNotified || s == StateFailed
}
