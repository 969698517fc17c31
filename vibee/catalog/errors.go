package catalog

import (
	"errors"
	"fmt"

	"github.com/vibeelabs/vibee-go/vibee/httpx"
)

// Sentinel errors for catalog operations.
var (
	ErrNotFound    = errors.New("catalog: not found")
	ErrEmptyResult = errors.New("catalog: empty result")

	// ErrRateLimited aliases the transport sentinel so callers can
	// match 429s without importing httpx.
	ErrRateLimited = httpx.ErrRateLimited
)

// CatalogError wraps a catalog operation failure with its endpoint and
// query context.
type CatalogError struct {
	Endpoint string
	Query    string
	Err      error
}

func (e *CatalogError) Error() string {
	if e.Query != "" {
		return fmt.Sprintf("catalog: %s %q: %v", e.Endpoint, e.Query, e.Err)
	}
	return fmt.Sprintf("catalog: %s: %v", e.Endpoint, e.Err)
}

func (e *CatalogError) Unwrap() error { return e.Err }
