package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/mailsort/internal/model"
)

// AuthError indicates the server rejected the supplied credentials.
type AuthError struct {
	Username string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error for %s: %v", e.Username, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// ConnectionError indicates a dial, TLS or transport failure.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error (%s): %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// QueryError indicates a mailbox command (SELECT, SEARCH) did not succeed.
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query error (%s): %v", e.Op, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// FetchError describes a single message that could not be retrieved.
// It is never terminal for a run.
type FetchError struct {
	ID  uint32
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch error (uid %d): %v", e.ID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsConnectionError reports whether err (or any error in its chain) is a
// ConnectionError.
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}

// IsQueryError reports whether err (or any error in its chain) is a QueryError.
func IsQueryError(err error) bool {
	var queryErr *QueryError
	return errors.As(err, &queryErr)
}

// ErrNoPayload is returned when the server answered a fetch with status
// only and no message body.
var ErrNoPayload = errors.New("server returned no message body")

// FetchResponse is the typed answer to a full-message fetch.
type FetchResponse struct {
	ID uint32

	// Raw is the RFC 5322 message. It is nil for status-only responses.
	Raw []byte
}

// HasPayload reports whether the response carries a message body.
func (r *FetchResponse) HasPayload() bool {
	return r != nil && len(r.Raw) > 0
}

// Mailbox is an authenticated, selected mailbox session.
type Mailbox interface {
	// ListAll returns every message identifier in server order.
	ListAll(ctx context.Context) ([]uint32, error)

	// Fetch retrieves the full raw form of one message.
	Fetch(ctx context.Context, id uint32) (*FetchResponse, error)

	// Close logs out and releases the connection. It is safe to call
	// more than once.
	Close() error
}

// Opener authenticates and selects the configured mailbox.
type Opener func(ctx context.Context, cfg model.Config) (Mailbox, error)
