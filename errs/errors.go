// Package errs holds the typed errors returned by the bridge core.
//
// Every error belongs to one Kind. Operations check Authorization first, then
// Precondition, and only then evaluate state-machine and economic rules. A
// failed invocation leaves no state behind.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error.
type Kind uint8

const (
	KindUnknown Kind = iota
	// Authorization: the caller is not allowed to act as claimed.
	Authorization
	// Precondition: missing entity, duplicate entity or malformed input.
	Precondition
	// StateMachine: valid call against an entity in the wrong lifecycle state.
	StateMachine
	// Economic: guards stake and reward pool solvency, never bypassable.
	Economic
	// Replay: persisted duplicate detection.
	Replay
)

func (k Kind) String() string {
	switch k {
	case Authorization:
		return "authorization"
	case Precondition:
		return "precondition"
	case StateMachine:
		return "state-machine"
	case Economic:
		return "economic"
	case Replay:
		return "replay"
	default:
		return "unknown"
	}
}

// Error is a classified error with a stable numeric code.
type Error struct {
	kind Kind
	code uint16
	msg  string
}

func (e *Error) Error() string { return e.msg }

// Kind returns the error class.
func (e *Error) Kind() Kind { return e.kind }

// Code returns the stable numeric code.
func (e *Error) Code() uint16 { return e.code }

func newError(kind Kind, code uint16, msg string) *Error {
	return &Error{kind: kind, code: code, msg: msg}
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindUnknown
}

// CodeOf returns the code of the first *Error in err's chain, 0 otherwise.
func CodeOf(err error) uint16 {
	var e *Error
	if errors.As(err, &e) {
		return e.code
	}
	return 0
}

// Wrap annotates err with formatted context, keeping it matchable by errors.Is.
func Wrap(err *Error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", err, fmt.Sprintf(format, args...))
}

// Authorization errors.
var (
	ErrUnauthorized       = newError(Authorization, 1, "unauthorized")
	ErrValidatorNotActive = newError(Authorization, 2, "validator not active")
)

// Precondition errors.
var (
	ErrNotInitialized             = newError(Precondition, 10, "not initialized")
	ErrAlreadyInitialized         = newError(Precondition, 11, "already initialized")
	ErrInvalidInput               = newError(Precondition, 12, "invalid input")
	ErrAmountMustBePositive       = newError(Precondition, 13, "amount must be positive")
	ErrValidatorNotFound          = newError(Precondition, 14, "validator not found")
	ErrValidatorAlreadyRegistered = newError(Precondition, 15, "validator already registered")
	ErrTooManyValidators          = newError(Precondition, 16, "validator limit reached")
	ErrProposalNotFound           = newError(Precondition, 17, "proposal not found")
	ErrSwapNotFound               = newError(Precondition, 18, "swap not found")
	ErrTransactionNotFound        = newError(Precondition, 19, "bridge transaction not found")
	ErrCircuitBreakerNotFound     = newError(Precondition, 20, "circuit breaker not found")
	ErrCircuitBreakerExists       = newError(Precondition, 21, "circuit breaker already initialized")
	ErrUnsupportedChain           = newError(Precondition, 22, "unsupported chain")
	ErrInvalidHashlock            = newError(Precondition, 23, "invalid hashlock")
	ErrInvalidTimelock            = newError(Precondition, 24, "invalid timelock")
	ErrInvalidPreimage            = newError(Precondition, 25, "invalid preimage")
	ErrInvalidToken               = newError(Precondition, 26, "invalid token")
	ErrInsufficientSignatures     = newError(Precondition, 27, "insufficient validator signatures")
	ErrInvalidSignature           = newError(Precondition, 28, "invalid validator signature")
	ErrDuplicateSigner            = newError(Precondition, 29, "duplicate validator signature")
)

// State machine errors.
var (
	ErrProposalAlreadyVoted    = newError(StateMachine, 40, "proposal already voted")
	ErrProposalExpired         = newError(StateMachine, 41, "proposal expired")
	ErrProposalNotApproved     = newError(StateMachine, 42, "proposal not approved")
	ErrSwapAlreadyCompleted    = newError(StateMachine, 43, "swap already completed")
	ErrSwapAlreadyRefunded     = newError(StateMachine, 44, "swap already refunded")
	ErrTimelockExpired         = newError(StateMachine, 45, "timelock expired")
	ErrTimeoutNotReached       = newError(StateMachine, 46, "timeout not reached")
	ErrCircuitBreakerTriggered = newError(StateMachine, 47, "circuit breaker triggered")
	ErrBridgePaused            = newError(StateMachine, 48, "bridge paused")
	ErrChainPaused             = newError(StateMachine, 49, "chain paused")
)

// Economic errors.
var (
	ErrInsufficientStake       = newError(Economic, 60, "insufficient stake")
	ErrInsufficientBalance     = newError(Economic, 61, "insufficient balance")
	ErrCannotSlashSelf         = newError(Economic, 62, "cannot slash self")
	ErrInvalidSlashingEvidence = newError(Economic, 63, "invalid slashing evidence")
)

// Replay errors.
var (
	ErrDuplicateNonce = newError(Replay, 80, "duplicate nonce")
)
