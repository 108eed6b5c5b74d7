package ports

import "fmt"

// TransientError marks a platform failure worth retrying: timeouts, rate
// limiting, 5xx responses. Anything else is treated as permanent.
type TransientError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransientError) Error() string {
	msg := e.Op + ": transient failure"
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *TransientError) Unwrap() error { return e.Err }
