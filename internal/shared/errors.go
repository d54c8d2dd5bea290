package shared

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")

	// Remote service errors
	ErrRemoteUnavailable  = fmt.Errorf("remote service unavailable")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")
	ErrNoActiveDevice     = fmt.Errorf("no active device")

	// Local data errors, absorbed where they are detected
	ErrCacheCorrupt        = fmt.Errorf("cache entry corrupt")
	ErrCacheMiss           = fmt.Errorf("cache entry not found")
	ErrInvalidTrackPayload = fmt.Errorf("playlist item has no track payload")
	ErrPrivateSession      = fmt.Errorf("device is in a private session")
	ErrMissingField        = fmt.Errorf("missing required field")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidIndex    = fmt.Errorf("invalid position index")
	ErrLocalTrack      = fmt.Errorf("local tracks cannot be added to playlists")

	// Environment errors
	ErrUnsupportedPlatform = fmt.Errorf("unsupported platform")
)

// RemoteUnavailableError reports a transport or auth failure reaching the remote service.
type RemoteUnavailableError struct {
	Op  string
	Err error
}

func (e *RemoteUnavailableError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrRemoteUnavailable, e.Err)
}

func (e *RemoteUnavailableError) Unwrap() error { return e.Err }

func (e *RemoteUnavailableError) Is(target error) bool { return target == ErrRemoteUnavailable }

// NewRemoteError wraps err as a [RemoteUnavailableError] unless it is nil or already one.
func NewRemoteError(op string, err error) error {
	if err == nil {
		return nil
	}
	var rerr *RemoteUnavailableError
	if errors.As(err, &rerr) {
		return err
	}
	return &RemoteUnavailableError{Op: op, Err: err}
}

// CacheCorruptError reports a persisted snapshot that could not be decoded.
type CacheCorruptError struct {
	Key string
	Err error
}

func (e *CacheCorruptError) Error() string {
	return fmt.Sprintf("snapshot %s: %v: %v", e.Key, ErrCacheCorrupt, e.Err)
}

func (e *CacheCorruptError) Unwrap() error { return e.Err }

func (e *CacheCorruptError) Is(target error) bool { return target == ErrCacheCorrupt }

// InvalidTrackPayloadError reports a page item whose embedded track is null.
type InvalidTrackPayloadError struct {
	Offset int // zero-based offset of the item within its page
}

func (e *InvalidTrackPayloadError) Error() string {
	return fmt.Sprintf("item at offset %d: %v", e.Offset, ErrInvalidTrackPayload)
}

func (e *InvalidTrackPayloadError) Is(target error) bool { return target == ErrInvalidTrackPayload }

// MissingFieldError reports a raw record missing a field required to build a domain record.
type MissingFieldError struct {
	Record string
	Field  string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: %v: %s", e.Record, ErrMissingField, e.Field)
}

func (e *MissingFieldError) Is(target error) bool { return target == ErrMissingField }
