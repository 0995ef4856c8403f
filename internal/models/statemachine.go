package models

// InitialStatus is the status a transaction is created with once the gateway
// returns a reference. Push payments are already waiting on the payer, so
// they skip CREATED.
func InitialStatus(kind GatewayKind) TransactionStatus {
	if kind == GatewayKindPushPayment {
		return TransactionStatusPending
	}
	return TransactionStatusCreated
}

// NextStatus returns the status reached by applying outcome to a transaction
// of the given kind in state from.
//
//	CREATED/PENDING           + APPROVED -> APPROVED_BY_USER (order-capture only)
//	PENDING/APPROVED_BY_USER  + SUCCESS  -> COMPLETED
//	CREATED/PENDING/APPROVED  + FAILURE  -> FAILED
//
// Terminal states return ErrTerminalState; any other pair returns ErrTransitionNotAllowed.
func NextStatus(kind GatewayKind, from TransactionStatus, outcome Outcome) (TransactionStatus, error) {
	if from.IsTerminal() {
		return from, ErrTerminalState
	}

	switch outcome {
	case OutcomeApproved:
		if kind != GatewayKindOrderCapture {
			return from, ErrTransitionNotAllowed
		}
		if from == TransactionStatusCreated || from == TransactionStatusPending {
			return TransactionStatusApprovedByUser, nil
		}
	case OutcomeSuccess:
		if from == TransactionStatusPending || from == TransactionStatusApprovedByUser {
			return TransactionStatusCompleted, nil
		}
	case OutcomeFailure:
		switch from {
		case TransactionStatusCreated, TransactionStatusPending, TransactionStatusApprovedByUser:
			return TransactionStatusFailed, nil
		}
	}

	return from, ErrTransitionNotAllowed
}
