// Package swift provides an authenticated client for Swift-compatible object
// storage: token acquisition and single-retry re-authentication, status
// classification, streamed chunked uploads and range-addressable chunked
// downloads, plus account/container/object accessors built on top of them.
//
// The auth request is a bodiless GET sent without a Content-Length header.
// Auth services that insist on "Content-Length: 0" for GET are not
// supported.
package swift

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for classification. Use errors.Is(err, swift.ErrNotFound).
var (
	ErrAuthentication          = errors.New("swift: authentication failed")
	ErrStorageEndpointNotFound = errors.New("swift: storage endpoint not found")
	ErrCatalogParse            = errors.New("swift: could not parse service catalog")
	ErrUnknownDatacenter       = errors.New("swift: unknown datacenter")
	ErrConnection              = errors.New("swift: connection failed")
	ErrUnauthorized            = errors.New("swift: unauthorized")
	ErrNotFound                = errors.New("swift: not found")
	ErrRedirection             = errors.New("swift: redirection")
	ErrClientError             = errors.New("swift: client error")
	ErrServerError             = errors.New("swift: server error")
	ErrContainerNotEmpty       = errors.New("swift: container not empty")
	ErrChecksumMismatch        = errors.New("swift: checksum mismatch")
	ErrUploadFinished          = errors.New("swift: upload already finished")
	ErrSizeMismatch            = errors.New("swift: upload size mismatch")
	ErrInvalidRange            = errors.New("swift: invalid byte range")
	ErrBodyNotReplayable       = errors.New("swift: request body cannot be replayed")
)

// ResponseError is a terminal HTTP failure. It carries the status code, the
// reason phrase, the Swift transaction ID, and a sentinel for errors.Is().
type ResponseError struct {
	StatusCode int
	Reason     string
	TransID    string
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *ResponseError) Error() string {
	msg := "swift: HTTP " + e.Reason

	if e.TransID != "" {
		msg += fmt.Sprintf(" (trans-id: %s)", e.TransID)
	}

	if e.Message != "" {
		msg += ": " + e.Message
	}

	return msg
}

func (e *ResponseError) Unwrap() error {
	return e.Err
}

// ConnectionError is a transport-level failure (DNS, dial, reset, timeout).
// The executor never retries these.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("swift: %s: %v", e.Op, e.Err)
}

// Unwrap exposes both the ErrConnection sentinel and the underlying cause,
// so errors.Is works for ErrConnection as well as context.DeadlineExceeded.
func (e *ConnectionError) Unwrap() []error {
	return []error{ErrConnection, e.Err}
}

// CatalogError is returned when authentication produced a token but the
// service catalog in the response body could not be decoded. FallbackURL is
// the X-Storage-Url header of the same response, if any; the caller decides
// whether using it is acceptable.
type CatalogError struct {
	Token       string
	FallbackURL string
	Err         error
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("swift: could not parse service catalog: %v", e.Err)
}

func (e *CatalogError) Unwrap() []error {
	return []error{ErrCatalogParse, e.Err}
}

// ChecksumMismatchError reports that the server-side ETag of an upload does
// not match the digest computed over the bytes that were sent. The upload
// itself succeeded at the HTTP level.
type ChecksumMismatchError struct {
	Path   string
	Local  string
	Remote string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("swift: checksum mismatch for %s: local %s, remote %s", e.Path, e.Local, e.Remote)
}

func (e *ChecksumMismatchError) Unwrap() error {
	return ErrChecksumMismatch
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Order matters: 404 is checked before the generic 4xx range.
// Returns nil for codes outside 3xx-5xx.
func classifyStatus(code int) error {
	switch {
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code >= 300 && code < 400:
		return ErrRedirection
	case code >= 400 && code < 500:
		return ErrClientError
	case code >= 500 && code < 600:
		return ErrServerError
	default:
		return nil
	}
}

// statusReason is the human-readable class for a sentinel from classifyStatus.
func statusReason(sentinel error) string {
	switch sentinel {
	case ErrNotFound:
		return "Not Found"
	case ErrRedirection:
		return "Redirection"
	case ErrServerError:
		return "Server Error"
	default:
		return "Client Error"
	}
}

// isSuccess reports whether code is a 2xx status.
func isSuccess(code int) bool {
	return code >= http.StatusOK && code < http.StatusMultipleChoices
}

// newResponseError builds a ResponseError from a status, header and an
// optional (already read) body excerpt.
func newResponseError(code int, header http.Header, body []byte) *ResponseError {
	sentinel := classifyStatus(code)
	if sentinel == nil {
		// 1xx or other oddities outside the documented ranges.
		sentinel = ErrClientError
	}

	reason := statusReason(sentinel)

	return &ResponseError{
		StatusCode: code,
		Reason:     fmt.Sprintf("%d %s", code, reason),
		TransID:    header.Get("X-Trans-Id"),
		Message:    truncateBody(body),
		Err:        sentinel,
	}
}

// maxErrorBody caps how much of an error response body ends up in messages.
const maxErrorBody = 512

func truncateBody(b []byte) string {
	if len(b) > maxErrorBody {
		return string(b[:maxErrorBody]) + "..."
	}

	return string(b)
}
