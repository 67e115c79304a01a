package rentals

import (
	"errors"
	"fmt"
)

var ErrDegenerateInput = errors.New("degenerate regression input")

// DegenerateInputError reports a regression whose slope is undefined.
type DegenerateInputError struct {
	N      int
	Reason string
}

func (e *DegenerateInputError) Error() string {
	return fmt.Sprintf("%s: %s (n=%d)", ErrDegenerateInput, e.Reason, e.N)
}

func (e *DegenerateInputError) Unwrap() error {
	return ErrDegenerateInput
}
