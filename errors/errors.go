package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	ErrConfiguration = stderrors.New("royalty: invalid configuration")
	// ErrLengthMismatch is a configuration error raised by batch operations.
	ErrLengthMismatch = fmt.Errorf("%w: mismatch length", ErrConfiguration)
	// ErrCyclicEdge is raised when a primary edge would close a cycle in the graph.
	ErrCyclicEdge = fmt.Errorf("%w: edge closes a cycle", ErrConfiguration)

	ErrDuplicate     = stderrors.New("royalty: duplicate accounts")
	ErrDuplicateEdge = fmt.Errorf("%w: duplicate primary edge", ErrDuplicate)

	ErrTokenNotApproved      = stderrors.New("royalty: not approved token")
	ErrBelowMinimum          = stderrors.New("royalty: less than min incoming amount")
	ErrInsufficientBalance   = stderrors.New("royalty: insufficient balance")
	ErrInsufficientAllowance = stderrors.New("royalty: insufficient allowance")
	ErrNoIncomingAmount      = stderrors.New("royalty: no more incoming amount exists")
	ErrNoAdditionalAmount    = stderrors.New("royalty: no additional amount")
	ErrUnauthorized          = stderrors.New("royalty: caller is not authorized")
	ErrNoPendingRequest      = stderrors.New("royalty: no pending request")
	ErrLockInterval          = stderrors.New("royalty: lock interval not elapsed")
	ErrNotFound              = stderrors.New("royalty: not found")
)
