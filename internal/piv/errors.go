package piv

import "errors"

// ErrInvalidWeights is returned when an external role-weight table names an
// unknown role, side or metric, or carries a negative weight.
var ErrInvalidWeights = errors.New("invalid role weights")
