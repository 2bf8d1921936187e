package models

import "errors"

// Sentinel errors for the resolution pipeline and its collaborators. Handlers
// map these onto HTTP statuses; internal callers test with errors.Is.
var (
	// ErrInvalidMarket means the requested market is not a supported benchmark.
	ErrInvalidMarket = errors.New("invalid market")

	// ErrInvalidWindow means windowDays is below the minimum of 1.
	ErrInvalidWindow = errors.New("invalid window")

	// ErrHistoricalDataUnavailable means a closed past trading day has no
	// cached or stored artifact. Past days are never re-generated.
	ErrHistoricalDataUnavailable = errors.New("historical data unavailable")

	// ErrUpstreamFailure means the generator or all storage tiers failed.
	// Safe for the caller to retry.
	ErrUpstreamFailure = errors.New("upstream failure")

	// ErrDuplicateFactorID means a generated driver payload carried two
	// records with the same factor id for one trading day.
	ErrDuplicateFactorID = errors.New("duplicate factor id")

	// ErrArtifactNotFound is the persistent store's miss result.
	ErrArtifactNotFound = errors.New("artifact not found")
)
