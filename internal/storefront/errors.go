package storefront

import "fmt"

// TransportError means the upstream API could not be reached or answered
// with a non-success status. Callers may retry against a fallback endpoint;
// it is never fatal to the process.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("storefront transport failure on %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError means the upstream answered but the body had an unexpected
// shape. The affected record or batch is skipped; it is never fatal.
type ParseError struct {
	Endpoint string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("storefront parse failure on %s: %v", e.Endpoint, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
