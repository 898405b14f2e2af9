package card

import (
	"context"
	"errors"

	"github.com/gregLibert/travel-card/pkg/bits"
)

// Error taxonomy of a read session.
//
// Transport errors are the only retryable class. Everything raised while
// interpreting card data is structural: retrying cannot repair it, and the
// user sees it as an unsupported card.
var (
	// ErrTransport reports link loss, a timeout or a malformed response frame.
	ErrTransport = errors.New("transport error")
	// ErrUnsupportedTag reports a tag whose technology cannot carry the card application.
	ErrUnsupportedTag = errors.New("unsupported tag")
	// ErrUnsupportedCard reports a card that is present but is not a known product.
	ErrUnsupportedCard = errors.New("unsupported card")
	// ErrTruncatedRecord reports a field that extends past the end of its block.
	ErrTruncatedRecord = bits.ErrTruncatedRecord
	// ErrChecksumMismatch reports a record whose integrity field does not match its content.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrInvalidDate reports a decoded date outside the plausible range.
	ErrInvalidDate = errors.New("invalid date")
	// ErrMalformedRecord reports a record violating a structural invariant.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrTagRemoved reports that the tag left the field during a session.
	ErrTagRemoved = errors.New("tag removed")
)

// IsRetryable reports whether a failed step may be attempted again.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransport)
}

// IsDecodeError reports whether err was raised while interpreting record content.
func IsDecodeError(err error) bool {
	return errors.Is(err, ErrTruncatedRecord) ||
		errors.Is(err, bits.ErrInvalidBCD) ||
		errors.Is(err, ErrChecksumMismatch) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrMalformedRecord)
}

// StatusOf maps the outcome of a read session to the status shown to the user.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusReady
	case errors.Is(err, ErrTagRemoved), errors.Is(err, context.Canceled):
		return StatusIdle
	case errors.Is(err, ErrUnsupportedTag),
		errors.Is(err, ErrUnsupportedCard),
		IsDecodeError(err):
		return StatusUnsupportedCard
	default:
		return StatusReadError
	}
}
