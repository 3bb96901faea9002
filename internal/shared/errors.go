package shared

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates a malformed request value.
	ErrInvalidInput = errors.New("invalid input")
)

// OpError attaches operation context to data-source failures so callers can
// tell which report and which range failed.
type OpError struct {
	Op         string
	BusinessID int64
	From       time.Time
	To         time.Time
	Err        error
}

func (e *OpError) Error() string {
	if e.From.IsZero() && e.To.IsZero() {
		return fmt.Sprintf("%s business=%d: %v", e.Op, e.BusinessID, e.Err)
	}
	return fmt.Sprintf("%s business=%d range=%s..%s: %v", e.Op, e.BusinessID,
		e.From.Format(time.DateOnly), e.To.Format(time.DateOnly), e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// WrapOp wraps err with operation context. Nil stays nil.
func WrapOp(op string, businessID int64, from, to time.Time, err error) error {
	if err == nil {
		return nil
	}
	var existing *OpError
	if errors.As(err, &existing) {
		return err
	}
	return &OpError{Op: op, BusinessID: businessID, From: from, To: to, Err: err}
}
