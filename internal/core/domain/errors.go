package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound           = errors.New("listing not found")
	ErrInvalidListingID   = errors.New("invalid listing id")
	ErrInvalidCategory    = errors.New("invalid listing category")
	ErrInvalidPriceRange  = errors.New("unknown price range")
	ErrInvalidSortField   = errors.New("unknown sort field")
	ErrDeleteNotRequested = errors.New("delete was not requested or the confirmation expired")
	ErrInvalidDeviceID    = errors.New("invalid device id")
)

// FailureKind classifies why a remote catalog call did not succeed.
type FailureKind string

const (
	// FailureNetwork: no response, timeout or a non-2xx status.
	FailureNetwork FailureKind = "network"
	// FailureBackend: 2xx envelope carrying status "error".
	FailureBackend FailureKind = "backend"
	// FailureDeserialization: malformed JSON or an unexpected shape.
	FailureDeserialization FailureKind = "deserialization"
)

// CatalogError is the typed failure returned by the remote catalog client.
type CatalogError struct {
	Kind       FailureKind
	StatusCode int
	Message    string
	Err        error
}

func (e *CatalogError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "catalog %s failure", e.Kind)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *CatalogError) Unwrap() error { return e.Err }

// Timeout reports whether the call was cut by its deadline.
func (e *CatalogError) Timeout() bool {
	var t interface{ Timeout() bool }
	if errors.As(e.Err, &t) {
		return t.Timeout()
	}
	return false
}

// IsKind reports whether err is a CatalogError of the given kind.
func IsKind(err error, kind FailureKind) bool {
	var ce *CatalogError
	return errors.As(err, &ce) && ce.Kind == kind
}

// ValidationError is returned before dispatch when a form is incomplete.
// Fields maps a form field to a human readable message.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
