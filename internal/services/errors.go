package services

import (
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/datatypes"

	"github.com/finlog/backend/internal/ledger"
)

// ErrNotFound is the root of every "row absent or not owned" error.
var ErrNotFound = errors.New("not found")

// invalid wraps a validation message so callers can match ledger.ErrValidation.
func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ledger.ErrValidation, fmt.Sprintf(format, args...))
}

func encodeSnapshot(v any) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return datatypes.JSON(b), nil
}

func decodeSnapshot[T any](raw datatypes.JSON) (T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decode snapshot: %w", err)
	}
	return v, nil
}
