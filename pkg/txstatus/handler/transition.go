package handler

import (
	"github.com/code-payments/txstatus-server/pkg/txstatus/data/order"
	"github.com/code-payments/txstatus-server/pkg/txstatus/notification"
)

// statusForTxAction returns the order status implied by a transaction action.
// Actions that don't affect the order's status return false.
func statusForTxAction(txAction string) (order.Status, bool) {
	switch txAction {
	case notification.TxActionAppointed:
		return order.StatusProcessing, true
	case notification.TxActionCapture, notification.TxActionPaid:
		return order.StatusPaid, true
	case notification.TxActionUnderpaid:
		return order.StatusUnderpaid, true
	case notification.TxActionFailed, notification.TxActionCancelation:
		return order.StatusPaymentFailed, true
	case notification.TxActionRefund:
		return order.StatusRefunded, true
	}
	return order.StatusUnknown, false
}

var allowedTransitions = map[order.Status][]order.Status{
	order.StatusPending: {
		order.StatusProcessing,
		order.StatusPaid,
		order.StatusUnderpaid,
		order.StatusPaymentFailed,
	},
	order.StatusProcessing: {
		order.StatusPaid,
		order.StatusUnderpaid,
		order.StatusPaymentFailed,
	},
	order.StatusUnderpaid: {
		order.StatusPaid,
		order.StatusPaymentFailed,
		order.StatusRefunded,
	},
	order.StatusPaymentFailed: {
		order.StatusProcessing,
		order.StatusPaid,
	},
	order.StatusPaid: {
		order.StatusPaymentFailed,
		order.StatusRefunded,
	},
}

// canTransition reports whether an order may move between the two statuses.
// Canceled orders never transition.
func canTransition(from, to order.Status) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
