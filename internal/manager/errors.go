package manager

import "errors"

// Manager errors
var (
	// ErrManagerStopped indicates the manager was stopped
	ErrManagerStopped = errors.New("channel group manager is stopped")

	// ErrNotStarted indicates the manager has not finished starting up
	ErrNotStarted = errors.New("channel group manager is not started")

	// ErrGroupNotFound indicates no group with the given id is loaded
	ErrGroupNotFound = errors.New("channel group not found")

	// ErrGroupExists indicates a group with the same name and kind exists
	ErrGroupExists = errors.New("channel group already exists")

	// ErrNotUserGroup indicates the operation is only allowed on user-defined groups
	ErrNotUserGroup = errors.New("channel group is not user-defined")

	// ErrInvalidGroupName indicates an empty group name
	ErrInvalidGroupName = errors.New("invalid channel group name")
)

// IsGroupNotFound checks if the error is a missing group error
func IsGroupNotFound(err error) bool {
	return errors.Is(err, ErrGroupNotFound)
}

// IsGroupExists checks if the error is a duplicate group error
func IsGroupExists(err error) bool {
	return errors.Is(err, ErrGroupExists)
}
