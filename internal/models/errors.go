package models

import "errors"

// Domain errors that can be returned by repositories
var (
	// ErrDuplicateTransaction indicates a transaction with the same gateway kind and reference already exists
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrNotFound indicates the requested entity was not found
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict indicates the stored version moved on since the transaction was read
	ErrVersionConflict = errors.New("version conflict")

	// ErrDuplicateEvent indicates an event with the same dedup key is already recorded on the transaction
	ErrDuplicateEvent = errors.New("duplicate event")
)

// State machine errors
var (
	// ErrTerminalState indicates the transaction is Completed or Failed and accepts no transition
	ErrTerminalState = errors.New("transaction is in a terminal state")

	// ErrTransitionNotAllowed indicates the outcome has no transition from the current state
	ErrTransitionNotAllowed = errors.New("transition not allowed")
)
