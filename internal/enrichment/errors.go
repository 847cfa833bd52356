// Package enrichment resolves military membership, airframe ownership and routes
// for a selected flight through cached, rate-limited remote lookups.
package enrichment

import "errors"

// Enrichment errors
var (
	ErrDisabled     = errors.New("lookup disabled")
	ErrLowMemory    = errors.New("insufficient memory headroom")
	ErrRateLimited  = errors.New("lookup rate limited")
	ErrNotFound     = errors.New("no data for lookup")
	ErrTooManyHexes = errors.New("too many hex ids in batch")
)
