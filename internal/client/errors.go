package client

import "fmt"

// SubscriptionError wraps a channel-level feed failure: a failed dial or a
// dropped connection. It drives the supervisor's backoff and never reaches
// the rendering layer; consumers observe the connection state instead.
type SubscriptionError struct {
	Op  string
	Err error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscription %s: %v", e.Op, e.Err)
}

func (e *SubscriptionError) Unwrap() error {
	return e.Err
}
