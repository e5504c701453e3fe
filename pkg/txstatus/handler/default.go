package handler

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/txstatus-server/pkg/lock"
	"github.com/code-payments/txstatus-server/pkg/metrics"
	"github.com/code-payments/txstatus-server/pkg/pointer"
	"github.com/code-payments/txstatus-server/pkg/txstatus/data"
	"github.com/code-payments/txstatus-server/pkg/txstatus/data/order"
	"github.com/code-payments/txstatus-server/pkg/txstatus/notification"
)

const (
	metricsStructName = "handler.DefaultHandler"
)

// DefaultHandler maps transaction actions onto order statuses. Notifications
// with a sequence number that isn't newer than the last applied one are
// ignored, which makes provider redeliveries no-ops.
type DefaultHandler struct {
	log   *logrus.Entry
	data  data.Provider
	locks lock.Manager
}

func NewDefaultHandler(data data.Provider, locks lock.Manager) StatusHandler {
	return &DefaultHandler{
		log:   logrus.StandardLogger().WithField("type", "handler/DefaultHandler"),
		data:  data,
		locks: locks,
	}
}

// Handle implements StatusHandler.Handle
func (h *DefaultHandler) Handle(ctx context.Context, record *order.Record, n notification.Notification) error {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Handle")
	defer tracer.End()

	log := h.log.WithFields(logrus.Fields{
		"method":   "Handle",
		"order":    record.OrderRef,
		"txid":     n.TxId(),
		"txaction": n.TxAction(),
	})

	err := h.handle(ctx, log, record.OrderRef, n)
	if err != nil {
		tracer.OnError(err)
	}
	return err
}

func (h *DefaultHandler) handle(ctx context.Context, log *logrus.Entry, orderRef string, n notification.Notification) error {
	orderLock, err := h.locks.Create(ctx, "order/"+orderRef)
	if err != nil {
		return errors.Wrap(err, "error creating order lock")
	}

	if _, err := orderLock.Acquire(ctx); err != nil {
		return errors.Wrap(err, "error acquiring order lock")
	}
	defer func() {
		if err := orderLock.Unlock(context.Background()); err != nil {
			log.WithError(err).Warn("failure releasing order lock")
		}
	}()

	latest, err := h.data.GetOrder(ctx, orderRef)
	if err != nil {
		return errors.Wrap(err, "error getting order")
	}

	if latest.IsCanceled() {
		log.Info("ignoring notification for canceled order")
		return nil
	}

	sequenceNumber, hasSequenceNumber := n.SequenceNumber()
	if hasSequenceNumber {
		log = log.WithField("sequence_number", sequenceNumber)

		if latest.SequenceNumber != nil && sequenceNumber <= *latest.SequenceNumber {
			log.Debug("ignoring notification that was already applied")
			return nil
		}

		latest.SequenceNumber = pointer.Of(sequenceNumber)
	}

	latest.LastTxAction = pointer.String(n.TxAction())

	if status, ok := statusForTxAction(n.TxAction()); ok && status != latest.Status {
		if canTransition(latest.Status, status) {
			log.WithFields(logrus.Fields{
				"from": latest.Status.String(),
				"to":   status.String(),
			}).Info("order status updated")
			latest.Status = status
		} else {
			log.WithFields(logrus.Fields{
				"from": latest.Status.String(),
				"to":   status.String(),
			}).Warn("ignoring invalid order status transition")
		}
	}

	if err := h.data.UpdateOrder(ctx, latest); err != nil {
		return errors.Wrap(err, "error updating order")
	}
	return nil
}
