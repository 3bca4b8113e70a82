package webhook

import "github.com/parallax/parallax-api/internal/domain/ledger"

// Acknowledgement messages for events that change nothing.
const (
	MsgAlreadyProcessed = "Already processed"
	MsgNothingToRefund  = "Nothing to refund"
	MsgAcknowledged     = "Acknowledged"
	MsgUnknownEvent     = "Unknown event ignored"
)

// Decide returns the transition an event causes on a transaction in status,
// and the acknowledgement message when it causes none.
//
//	CREDIT  PENDING   -> credit
//	FAIL    PENDING   -> fail
//	REFUND  COMPLETED -> refund
//
// Every other combination is a no-op.
func Decide(ev Event, status ledger.TxStatus) (ledger.Decision, string) {
	switch ev.Class {
	case ClassCredit:
		if status == ledger.TxPending {
			return ledger.Decision{Transition: ledger.TransitionCredit}, ""
		}
		return ledger.Decision{}, MsgAlreadyProcessed

	case ClassFail:
		if status == ledger.TxPending {
			return ledger.Decision{Transition: ledger.TransitionFail, FailureReason: failureReason(ev.Type)}, ""
		}
		return ledger.Decision{}, MsgAlreadyProcessed

	case ClassRefund:
		if status == ledger.TxCompleted {
			return ledger.Decision{Transition: ledger.TransitionRefund, FailureReason: failureReason(ev.Type)}, ""
		}
		return ledger.Decision{}, MsgNothingToRefund

	case ClassInfo:
		return ledger.Decision{}, MsgAcknowledged
	}
	return ledger.Decision{}, MsgUnknownEvent
}

func failureReason(eventType string) string {
	switch eventType {
	case "fraud":
		return "Payment flagged as fraudulent"
	case "refunded":
		return "Payment refunded"
	case "disputed":
		return "Payment disputed"
	}
	return ""
}
