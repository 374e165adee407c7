package metadata

import "errors"

// The flat error taxonomy from spec.md §7 that metadata.Store can return.
var (
	ErrPermissionDenied     = errors.New("metadata: is not deletable")
	ErrNotSupported         = errors.New("metadata: cannot iterate over all entries")
	ErrInconsistentMetadata = errors.New("metadata: inconsistent metadata")
	ErrStoreNotFound        = errors.New("metadata: store not found")
	ErrUnknownMetadataKey   = errors.New("metadata: unknown metadata key")
	ErrObsoleteVersion      = errors.New("metadata: attempt to put out of date store metadata")
)
