package model

import "github.com/rotisserie/eris"

// Sentinel errors shared across packages. Callers test with eris.Is.
var (
	// ErrInvalidInput marks malformed caller input (coordinates, k, filters).
	ErrInvalidInput = eris.New("invalid input")
	// ErrUpstreamUnavailable marks a failed read of one of the datasets.
	ErrUpstreamUnavailable = eris.New("upstream dataset unavailable")
	// ErrRecomputeInProgress is returned when another recompute pass holds the guard.
	ErrRecomputeInProgress = eris.New("recompute already in progress")
)
