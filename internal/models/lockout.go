package models

// LockoutDecision is derived from an attempt counter and the configured maximum.
type LockoutDecision struct {
	Locked    bool `json:"locked"`
	Attempts  int  `json:"attempts"`
	Remaining int  `json:"remaining"`
}

// NewLockoutDecision computes the decision for a counter value.
func NewLockoutDecision(attempts, maxAttempts int) LockoutDecision {
	remaining := maxAttempts - attempts
	if remaining < 0 {
		remaining = 0
	}
	return LockoutDecision{
		Locked:    attempts >= maxAttempts,
		Attempts:  attempts,
		Remaining: remaining,
	}
}
