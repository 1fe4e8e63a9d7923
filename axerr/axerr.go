// Package axerr implements the core's error-kind taxonomy: a small
// sentinel Kind wrapped with call-site detail via fmt.Errorf("%w", ...),
// checked with errors.Is/errors.As rather than propagated as bespoke
// error types per package.
package axerr

import "fmt"

// Kind is one of the taxonomy's error classes.
type Kind int

const (
	// FramingError: KISS/AX.25 malformed. Policy: drop frame, record
	// diagnostic, never propagate upward.
	FramingError Kind = iota
	// DecodeError: AXDP incomplete or malformed.
	DecodeError
	// IntegrityError: chunk CRC mismatch, final sha256 mismatch.
	IntegrityError
	// ProtocolError: FRMR, SABM during connected without DISC, N2
	// exceeded.
	ProtocolError
	// ResourceError: persistence read/write failure, decompression
	// bound exceeded.
	ResourceError
	// TransferError: peer NACK of FILE_META, cancel, timeout.
	TransferError
)

func (k Kind) String() string {
	switch k {
	case FramingError:
		return "framing"
	case DecodeError:
		return "decode"
	case IntegrityError:
		return "integrity"
	case ProtocolError:
		return "protocol"
	case ResourceError:
		return "resource"
	case TransferError:
		return "transfer"
	default:
		return "unknown"
	}
}

// Error wraps a Kind with a human-readable detail string.
type Error struct {
	Kind   Kind
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Is reports whether target is the bare sentinel for this error's Kind,
// so callers write errors.Is(err, axerr.ErrIntegrity) against the
// package-level sentinels below regardless of Detail.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	return ok && te.Kind == e.Kind && te.Detail == ""
}

// Sentinels, one per Kind, for use with errors.Is.
var (
	ErrFraming   = &Error{Kind: FramingError}
	ErrDecode    = &Error{Kind: DecodeError}
	ErrIntegrity = &Error{Kind: IntegrityError}
	ErrProtocol  = &Error{Kind: ProtocolError}
	ErrResource  = &Error{Kind: ResourceError}
	ErrTransfer  = &Error{Kind: TransferError}
)

// New constructs an *Error for kind with the given detail.
func New(kind Kind, detail string) error {
	return &Error{Kind: kind, Detail: detail}
}

// Wrap constructs an *Error for kind, folding in err's message as detail.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Detail: err.Error()}
}
