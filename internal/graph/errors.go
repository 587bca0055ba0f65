package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument marks errors caused by malformed caller input.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidIdentifier is returned for labels, relationship types and
	// property names that cannot be interpolated into a query.
	ErrInvalidIdentifier = fmt.Errorf("%w: invalid identifier", ErrInvalidArgument)
)
