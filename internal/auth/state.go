package auth

import "fmt"

type State int

const (
	Anonymous State = iota
	RestoringSession
	AwaitingPhone
	AwaitingOTP
	Authenticated
	Failed
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case RestoringSession:
		return "restoring-session"
	case AwaitingPhone:
		return "awaiting-phone"
	case AwaitingOTP:
		return "awaiting-otp"
	case Authenticated:
		return "authenticated"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no transition leaves the state.
func (s State) Terminal() bool {
	return s == Authenticated || s == Failed
}

const (
	ReasonOTPScreen       = "OTP screen did not load"
	ReasonOTPRejected     = "OTP rejected"
	ReasonLoginIncomplete = "login did not complete"
	ReasonLoginUI         = "login form did not load"
	ReasonInput           = "no input available"
)

// FailedError is returned when the machine ends in Failed, the run must not continue.
type FailedError struct {
	Reason string
	Err    error
}

func (e *FailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("login failed: %s: %s", e.Reason, e.Err.Error())
	}
	return fmt.Sprintf("login failed: %s", e.Reason)
}

func (e *FailedError) Unwrap() error {
	return e.Err
}
