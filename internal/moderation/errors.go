package moderation

import (
	"context"

	"github.com/pkg/errors"
)

// Policy rejections, capability gaps and platform failures surfaced by the Coordinator.
var (
	ErrHierarchyViolation     = errors.New("target is an administrator or owner")
	ErrInsufficientCapability = errors.New("bot lacks the required chat rights")
	ErrInvalidDurationFormat  = errors.New("invalid duration format")
	ErrTargetNotFound         = errors.New("target not found")
	ErrTransientPlatform      = errors.New("transient platform error")
	ErrPlatformRejected       = errors.New("platform rejected the request")
	ErrUnknownLockKind        = errors.New("unknown lock kind")
	ErrInvalidArgument        = errors.New("invalid argument")

	// ErrAlreadyInState is never returned by the Coordinator; adapters report it when the
	// platform refuses a mutation because the target already has the requested status.
	ErrAlreadyInState = errors.New("target already in requested state")
)

type PlatformErrorKind int

const (
	PlatformRejected PlatformErrorKind = iota
	PlatformTransient
	PlatformAlreadyInState
	PlatformNotFound
)

func (k PlatformErrorKind) String() string {
	switch k {
	case PlatformTransient:
		return "transient"
	case PlatformAlreadyInState:
		return "already_in_state"
	case PlatformNotFound:
		return "not_found"
	default:
		return "rejected"
	}
}

// PlatformError is the structured failure a MembershipService returns, so the core never
// has to inspect platform error text.
type PlatformError struct {
	Kind PlatformErrorKind
	Op   string
	Err  error
}

func NewPlatformError(kind PlatformErrorKind, op string, err error) *PlatformError {
	return &PlatformError{Kind: kind, Op: op, Err: err}
}

func (e *PlatformError) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.String()
	}
	return e.Op + ": " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *PlatformError) Unwrap() error {
	return e.Err
}

func (e *PlatformError) Is(target error) bool {
	switch target {
	case ErrTransientPlatform:
		return e.Kind == PlatformTransient
	case ErrPlatformRejected:
		return e.Kind == PlatformRejected
	case ErrAlreadyInState:
		return e.Kind == PlatformAlreadyInState
	case ErrTargetNotFound:
		return e.Kind == PlatformNotFound
	}
	return false
}

// classifyPlatformError normalizes whatever a MembershipService returned into the
// Coordinator's failure taxonomy.
func classifyPlatformError(op string, err error) error {
	if err == nil {
		return nil
	}
	var perr *PlatformError
	if errors.As(err, &perr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NewPlatformError(PlatformTransient, op, err)
	}
	return NewPlatformError(PlatformRejected, op, err)
}

func isAlreadyInState(err error) bool {
	return errors.Is(err, ErrAlreadyInState)
}
