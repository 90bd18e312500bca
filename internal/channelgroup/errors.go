package channelgroup

import "errors"

// Custom channel group errors
var (
	// ErrNoStore indicates no persistence store is configured
	ErrNoStore = errors.New("no channel group store available")

	// ErrNoBackends indicates no backend directory is configured
	ErrNoBackends = errors.New("no backend directory available")

	// ErrPersistFailed indicates the store rejected the group
	ErrPersistFailed = errors.New("failed to persist channel group")

	// ErrNotMember indicates the channel does not belong to the group
	ErrNotMember = errors.New("channel is not a member of the group")

	// ErrUnknownChannel indicates the channel is not known to the internal group
	ErrUnknownChannel = errors.New("unknown channel")

	// ErrAlreadyMember indicates the channel already belongs to the group
	ErrAlreadyMember = errors.New("channel is already a member of the group")
)

// IsNoStore checks if the error is a missing store error
func IsNoStore(err error) bool {
	return errors.Is(err, ErrNoStore)
}

// IsNoBackends checks if the error is a missing backend directory error
func IsNoBackends(err error) bool {
	return errors.Is(err, ErrNoBackends)
}

// IsPersistFailed checks if the error is a persistence failure
func IsPersistFailed(err error) bool {
	return errors.Is(err, ErrPersistFailed)
}

// IsNotMember checks if the error is a missing membership error
func IsNotMember(err error) bool {
	return errors.Is(err, ErrNotMember)
}

// IsUnknownChannel checks if the error is an unknown channel error
func IsUnknownChannel(err error) bool {
	return errors.Is(err, ErrUnknownChannel)
}

// IsAlreadyMember checks if the error is a duplicate membership error
func IsAlreadyMember(err error) bool {
	return errors.Is(err, ErrAlreadyMember)
}
