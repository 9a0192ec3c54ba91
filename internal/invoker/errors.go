package invoker

import "fmt"

// InvocationError reports a failed model call: unreachable endpoint, error
// status, malformed payload or deadline.
type InvocationError struct {
	Provider string
	Endpoint string
	Timeout  bool
	Err      error
}

func (e *InvocationError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("invoke %s endpoint %q: timed out: %v", e.Provider, e.Endpoint, e.Err)
	}
	return fmt.Sprintf("invoke %s endpoint %q: %v", e.Provider, e.Endpoint, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

type malformedError struct {
	msg string
	err error
}

func (e *malformedError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("malformed response: %s: %v", e.msg, e.err)
	}
	return "malformed response: " + e.msg
}

func (e *malformedError) Unwrap() error { return e.err }
