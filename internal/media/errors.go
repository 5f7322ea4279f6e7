package media

import "errors"

var (
	// ErrInvalidKind is returned by ResolveKind for anything but "image" or "video".
	ErrInvalidKind = errors.New("kind must be image or video")
	// ErrInvalidSegment is returned for identifiers that are not safe as a single path segment.
	ErrInvalidSegment = errors.New("invalid path segment")
	// ErrUnsupportedMediaType means the declared MIME type has no known extension.
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	// ErrMediaTypeKindMismatch means the declared MIME type is known but not valid for the kind.
	ErrMediaTypeKindMismatch = errors.New("unsupported media type for kind")
	// ErrProviderUnavailable is returned when no storage provider is configured.
	ErrProviderUnavailable = errors.New("storage provider not configured")
)
