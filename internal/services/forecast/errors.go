package forecast

import "fmt"

// DataUnavailableError is returned when the provider has no history for a symbol.
type DataUnavailableError struct {
	Symbol string
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("no price history available for symbol %q", e.Symbol)
}

// InsufficientDataError is returned when a series is too short to build a single window.
type InsufficientDataError struct {
	Required int
	Got      int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient price history: need at least %d closes, got %d", e.Required, e.Got)
}

// ComputationError wraps a failure while fitting or predicting.
// The cause is meant for logs; callers surface a generic message.
type ComputationError struct {
	Op  string
	Err error
}

func (e *ComputationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("forecast %s: %v", e.Op, e.Err)
	}
	return "forecast " + e.Op + " failed"
}

func (e *ComputationError) Unwrap() error { return e.Err }

func computationErr(op string, err error) error {
	return &ComputationError{Op: op, Err: err}
}
