package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Cache errors
	ErrCacheMiss         = fmt.Errorf("canvas not cached")
	ErrCacheUnavailable  = fmt.Errorf("canvas cache unavailable")
	ErrDownloadFailed    = fmt.Errorf("canvas download failed")
	ErrNoBearerInCommand = fmt.Errorf("no bearer token found in cURL command")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
