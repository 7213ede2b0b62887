// Package glanceerr defines the tagged error kinds used across Glance.
package glanceerr

import "fmt"

// Kind tags the category of a Glance error.
type Kind int

const (
	// Connection covers network/auth/SSL/db-not-found failures opening a DB pool.
	Connection Kind = iota
	// Query covers syntax, constraint, timeout, or runtime errors from the database.
	Query
	// Llm covers provider-side HTTP, timeout, network, auth, or rate-limit errors.
	Llm
	// Config covers CLI parsing, config file parsing, invalid options.
	Config
	// Persistence covers local store, migration, or secret-store failures.
	Persistence
	// Internal covers programmer errors and unexpected states.
	Internal
)

// Category returns the display label used in logging and UI.
func (k Kind) Category() string {
	switch k {
	case Connection:
		return "Connection Error"
	case Query:
		return "Query Error"
	case Llm:
		return "LLM Error"
	case Config:
		return "Configuration Error"
	case Persistence:
		return "Persistence Error"
	case Internal:
		return "Internal Error"
	default:
		return "Error"
	}
}

func (k Kind) label() string {
	switch k {
	case Connection:
		return "Connection error"
	case Query:
		return "Query error"
	case Llm:
		return "LLM error"
	case Config:
		return "Configuration error"
	case Persistence:
		return "Persistence error"
	case Internal:
		return "Internal error"
	default:
		return "Error"
	}
}

// Error is the main error type for Glance operations.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.label(), e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.label(), e.Message)
}

func (e *Error) label() string { return e.Kind.label() }

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Cause }

// Category returns the error's display category.
func (e *Error) Category() string { return e.Kind.Category() }

func new(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// ConnectionErr creates a connection error.
func ConnectionErr(msg string) *Error { return new(Connection, msg) }

// QueryErr creates a query error.
func QueryErr(msg string) *Error { return new(Query, msg) }

// LlmErr creates an LLM error.
func LlmErr(msg string) *Error { return new(Llm, msg) }

// ConfigErr creates a configuration error.
func ConfigErr(msg string) *Error { return new(Config, msg) }

// PersistenceErr creates a persistence error.
func PersistenceErr(msg string) *Error { return new(Persistence, msg) }

// InternalErr creates an internal error.
func InternalErr(msg string) *Error { return new(Internal, msg) }

// Wrap attaches a cause to an existing Glance error, returning a new value.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}
