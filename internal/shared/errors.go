package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Storage errors
	ErrStorage         = fmt.Errorf("storage operation failed")
	ErrMalformedRecord = fmt.Errorf("malformed stored record")

	// Catalog errors
	ErrSetNotFound  = fmt.Errorf("set not found")
	ErrCardNotFound = fmt.Errorf("card not found")
	ErrInvalidSet   = fmt.Errorf("invalid set definition")

	// Remote errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrNotAuthenticated   = fmt.Errorf("not authenticated")
	ErrTimeout            = fmt.Errorf("operation timed out")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
