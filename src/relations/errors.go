package relations

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingUserID indicates an operation was called without both user ids.
	ErrMissingUserID = errors.New("user id is required")
	// ErrSelfRequest indicates an operation targeted the acting user.
	ErrSelfRequest = errors.New("you cannot add yourself as a friend")
	// ErrSelfFollow indicates a user tried to follow themselves.
	ErrSelfFollow = errors.New("you cannot follow yourself")
	// ErrUnknownOperation indicates an operation name outside the supported set.
	ErrUnknownOperation = errors.New("unknown relationship operation")
)

// PartialWriteError reports that self's document changed but the peer's did not.
// The pair is asymmetric until reconciliation repairs it, see RollsBack for which way.
type PartialWriteError struct {
	Operation Operation
	SelfID    string
	PeerID    string
	Err       error
}

func (err *PartialWriteError) Error() string {
	return fmt.Sprintf("%s %s -> %s applied to %s only: %v", err.Operation, err.SelfID, err.PeerID, err.SelfID, err.Err)
}

func (err *PartialWriteError) Unwrap() error {
	return err.Err
}

// RollsBack reports whether reconciliation undoes the saved half instead of completing the operation.
// A friendship on either side always wins, so only a half-applied remove is reverted.
func (err *PartialWriteError) RollsBack() bool {
	return err.Operation == OpRemoveFriend
}

// IsValidation reports whether err was rejected before any directory call.
func IsValidation(err error) bool {
	return errors.Is(err, ErrMissingUserID) || errors.Is(err, ErrSelfRequest) || errors.Is(err, ErrSelfFollow) ||
		errors.Is(err, ErrUnknownOperation)
}
