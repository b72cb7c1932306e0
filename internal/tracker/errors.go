package tracker

// DefectError signals misuse of a tracker. It is never transient and must not be retried.
type DefectError struct {
	msg string
}

func (e *DefectError) Error() string {
	return "defect: " + e.msg
}

// ErrAlreadyStarted is returned by a second Start on the same tracker.
var ErrAlreadyStarted = &DefectError{msg: "tracker can only be started once"}
