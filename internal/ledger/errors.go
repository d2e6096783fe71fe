package ledger

import (
	"errors"
	"fmt"
)

// ErrValidation is the root of every input error; callers map it to 400.
var ErrValidation = errors.New("validation failed")

var (
	ErrInvalidActionKind = fmt.Errorf("%w: invalid action type", ErrValidation)
	ErrInvalidEntityKind = fmt.Errorf("%w: invalid entity type", ErrValidation)
	ErrInvalidDateRange  = fmt.Errorf("%w: invalid date range", ErrValidation)
	ErrInvalidRange      = fmt.Errorf("%w: custom range needs startDate <= endDate", ErrValidation)
)
