package admin

import (
	"errors"
	"fmt"

	"github.com/pairdb/ring/internal/metadata"
	"github.com/pairdb/ring/internal/store"
	"github.com/pairdb/ring/internal/versioning"
)

// The flat error taxonomy of spec.md §7, given stable wire codes. Grounded
// on storage-node/internal/errors/codes.go's code+message shape, narrowed
// to the int16 wire representation spec.md §4.6 requires instead of gRPC
// status codes.
type Code int16

const (
	CodeOK                    Code = 0
	CodeObsoleteVersion       Code = 1
	CodeInconsistentMetadata  Code = 2
	CodeStoreNotFound         Code = 3
	CodeUnknownMetadataKey    Code = 4
	CodePermissionDenied      Code = 5
	CodeInvalidClockFormat    Code = 6
	CodeInvalidRequest        Code = 7
	CodeIO                    Code = 8
	CodeTimeout               Code = 9
	CodeNotSupported          Code = 10
	CodeInternal              Code = 99
)

// ErrInvalidRequest covers malformed wire frames and client ops bounced
// during REBALANCING_STATE (spec.md §4.6's "well-known error signaling the
// client to refresh its cluster view").
var ErrInvalidRequest = errors.New("admin: invalid request")

// ErrPoolTimeout is returned by SocketPool.Checkout when no connection to
// the destination becomes free before the configured timeout.
var ErrPoolTimeout = errors.New("admin: pool checkout timed out")

// WireError is the inflated form of a nonzero response prelude: a code plus
// the message the peer sent, reconstructed by the admin client from
// (i16 code, utf8 message) per spec.md §4.6.
type WireError struct {
	Code    Code
	Message string
}

func (e *WireError) Error() string {
	return fmt.Sprintf("admin: %s (code %d): %s", codeName(e.Code), e.Code, e.Message)
}

func codeName(c Code) string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeObsoleteVersion:
		return "obsolete-version"
	case CodeInconsistentMetadata:
		return "inconsistent-metadata"
	case CodeStoreNotFound:
		return "store-not-found"
	case CodeUnknownMetadataKey:
		return "unknown-metadata-key"
	case CodePermissionDenied:
		return "permission-denied"
	case CodeInvalidClockFormat:
		return "invalid-clock-format"
	case CodeInvalidRequest:
		return "invalid-request"
	case CodeIO:
		return "io"
	case CodeTimeout:
		return "timeout"
	case CodeNotSupported:
		return "not-supported"
	default:
		return "internal"
	}
}

// ErrorCodeMapper maps the sentinel errors returned across internal/store,
// internal/metadata, and internal/versioning onto the stable wire codes
// above, and back again on the client side. Grounded on the mapping role
// voldemort.store.ErrorCodeMapper plays throughout AdminClient.java.
type ErrorCodeMapper struct{}

// ToWire classifies err into the code/message pair the server writes into
// the response prelude.
func (ErrorCodeMapper) ToWire(err error) (Code, string) {
	if err == nil {
		return CodeOK, ""
	}
	switch {
	case errors.Is(err, store.ErrObsoleteVersion), errors.Is(err, metadata.ErrObsoleteVersion):
		return CodeObsoleteVersion, err.Error()
	case errors.Is(err, metadata.ErrInconsistentMetadata):
		return CodeInconsistentMetadata, err.Error()
	case errors.Is(err, metadata.ErrStoreNotFound):
		return CodeStoreNotFound, err.Error()
	case errors.Is(err, metadata.ErrUnknownMetadataKey):
		return CodeUnknownMetadataKey, err.Error()
	case errors.Is(err, metadata.ErrPermissionDenied):
		return CodePermissionDenied, err.Error()
	case errors.Is(err, versioning.ErrInvalidClockFormat):
		return CodeInvalidClockFormat, err.Error()
	case errors.Is(err, ErrInvalidRequest):
		return CodeInvalidRequest, err.Error()
	case errors.Is(err, ErrPoolTimeout):
		return CodeTimeout, err.Error()
	case errors.Is(err, store.ErrNotSupported), errors.Is(err, metadata.ErrNotSupported):
		return CodeNotSupported, err.Error()
	default:
		return CodeInternal, err.Error()
	}
}

// FromWire re-inflates a (code, message) pair read off the wire into a
// typed error the admin client's callers can match with errors.Is.
func (ErrorCodeMapper) FromWire(code Code, message string) error {
	switch code {
	case CodeOK:
		return nil
	case CodeObsoleteVersion:
		return fmt.Errorf("%w: %s", store.ErrObsoleteVersion, message)
	case CodeInconsistentMetadata:
		return fmt.Errorf("%w: %s", metadata.ErrInconsistentMetadata, message)
	case CodeStoreNotFound:
		return fmt.Errorf("%w: %s", metadata.ErrStoreNotFound, message)
	case CodeUnknownMetadataKey:
		return fmt.Errorf("%w: %s", metadata.ErrUnknownMetadataKey, message)
	case CodePermissionDenied:
		return fmt.Errorf("%w: %s", metadata.ErrPermissionDenied, message)
	case CodeInvalidClockFormat:
		return fmt.Errorf("%w: %s", versioning.ErrInvalidClockFormat, message)
	case CodeInvalidRequest:
		return fmt.Errorf("%w: %s", ErrInvalidRequest, message)
	case CodeTimeout:
		return fmt.Errorf("%w: %s", ErrPoolTimeout, message)
	case CodeNotSupported:
		return fmt.Errorf("%w: %s", store.ErrNotSupported, message)
	default:
		return &WireError{Code: code, Message: message}
	}
}
