package contractflow

import "errors"

// Typed error taxonomy for the contract lifecycle. Callers branch on
// these with errors.Is; every operation wraps them with contract and
// step context via fmt.Errorf("...: %w", ...). Token errors live with
// the signing package.
var (
	// ErrInvalidTransition: the requested status change is not legal from
	// the current status.
	ErrInvalidTransition = errors.New("invalid contract status transition")

	// ErrContractLocked: attempted mutation of a frozen field after the
	// contract was signed.
	ErrContractLocked = errors.New("contract is locked after signing")

	// ErrAmountMismatch: gateway-reported amount differs from the
	// recomputed expectation by more than the tolerance. Indicates
	// tampering or a pricing bug; nothing is marked paid.
	ErrAmountMismatch = errors.New("payment amount does not match expected amount")

	// ErrNothingToPay: remaining balance is already zero.
	ErrNothingToPay = errors.New("contract has no outstanding balance")

	// ErrPreconditionFailed: finalization invoked before signature and
	// payment are both satisfied.
	ErrPreconditionFailed = errors.New("finalization preconditions not met")

	// ErrNotFound: contract, party or template missing.
	ErrNotFound = errors.New("record not found")
)
