package ingest

import "errors"

// ErrMissingColumn is returned when a table lacks a column it cannot be
// loaded without (player name or team, round winner, role, metric...).
var ErrMissingColumn = errors.New("missing required column")
