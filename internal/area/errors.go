package area

import (
	"errors"
	"fmt"

	"github.com/wegman-software/osm-areas-go/internal/element"
)

var (
	ErrUnclosedRing         = errors.New("unclosed ring")
	ErrInsufficientGeometry = errors.New("insufficient geometry")
	ErrInvalidNesting       = errors.New("invalid ring nesting")
	ErrMissingPositions     = errors.New("missing node positions")
)

// GeometryError ties an assembly failure to the object it was built from
type GeometryError struct {
	Type element.Type
	ID   int64
	Err  error
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("%s %d: %v", e.Type, e.ID, e.Err)
}

func (e *GeometryError) Unwrap() error {
	return e.Err
}

// Reason maps an error to the short code used in reports
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrMissingPositions):
		return "missing_positions"
	case errors.Is(err, ErrUnclosedRing):
		return "unclosed_ring"
	case errors.Is(err, ErrInsufficientGeometry):
		return "insufficient_geometry"
	case errors.Is(err, ErrInvalidNesting):
		return "invalid_nesting"
	default:
		return "error"
	}
}
