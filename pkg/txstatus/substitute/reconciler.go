package substitute

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/txstatus-server/pkg/lock"
	"github.com/code-payments/txstatus-server/pkg/metrics"
	"github.com/code-payments/txstatus-server/pkg/txstatus/data"
	"github.com/code-payments/txstatus-server/pkg/txstatus/data/order"
	"github.com/code-payments/txstatus-server/pkg/txstatus/notification"
)

const (
	metricsStructName = "substitute.Reconciler"
)

// Reconciler replaces canceled orders whose payment was reserved after the
// customer abandoned checkout.
type Reconciler struct {
	log   *logrus.Entry
	conf  *conf
	data  data.Provider
	locks lock.Manager
}

func NewReconciler(data data.Provider, locks lock.Manager, configProvider ConfigProvider) *Reconciler {
	return &Reconciler{
		log:   logrus.StandardLogger().WithField("type", "substitute/Reconciler"),
		conf:  configProvider(),
		data:  data,
		locks: locks,
	}
}

// ShouldReconcile reports whether record must be replaced by a substitute
// before the notification is handled.
func ShouldReconcile(record *order.Record, n notification.Notification) bool {
	return n.TxAction() == notification.TxActionAppointed && record.IsCanceled()
}

// MaybeReconcile returns the order that the rest of the callback must operate
// on. When the reconciliation condition is met, that is a non-interactive
// substitute of record, otherwise it is record itself.
func (r *Reconciler) MaybeReconcile(ctx context.Context, record *order.Record, n notification.Notification) (*order.Record, error) {
	if !ShouldReconcile(record, n) {
		return record, nil
	}

	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "MaybeReconcile")
	defer tracer.End()

	log := r.log.WithFields(logrus.Fields{
		"method":   "MaybeReconcile",
		"order":    record.OrderRef,
		"txid":     record.TxId,
		"txaction": n.TxAction(),
	})

	substitute, err := r.createSubstitute(ctx, record)
	if err != nil {
		tracer.OnError(err)
		return nil, err
	}

	log.WithField("substitute", substitute.OrderRef).Info("canceled order substituted")
	return substitute, nil
}

func (r *Reconciler) createSubstitute(ctx context.Context, canceled *order.Record) (*order.Record, error) {
	orderLock, err := r.locks.Create(ctx, "order/"+canceled.OrderRef)
	if err != nil {
		return nil, errors.Wrap(err, "error creating order lock")
	}

	lockCtx, cancel := context.WithTimeout(ctx, r.conf.lockTimeout.Get(ctx))
	defer cancel()

	if _, err := orderLock.Acquire(lockCtx); err != nil {
		return nil, errors.Wrap(err, "error acquiring order lock")
	}
	defer func() {
		if err := orderLock.Unlock(context.Background()); err != nil {
			r.log.WithError(err).WithField("order", canceled.OrderRef).Warn("failure releasing order lock")
		}
	}()

	substitute, err := r.data.CreateSubstituteOrder(ctx, canceled, false)
	if err == order.ErrAlreadySubstituted {
		return r.getExistingSubstitute(ctx, canceled.OrderRef)
	} else if err != nil {
		return nil, errors.Wrap(err, "error creating substitute order")
	}
	return substitute, nil
}

func (r *Reconciler) getExistingSubstitute(ctx context.Context, orderRef string) (*order.Record, error) {
	latest, err := r.data.GetOrder(ctx, orderRef)
	if err != nil {
		return nil, errors.Wrap(err, "error getting substituted order")
	}

	if latest.SubstitutedBy == nil {
		return nil, errors.New("substituted order missing substitute reference")
	}

	substitute, err := r.data.GetOrder(ctx, *latest.SubstitutedBy)
	if err != nil {
		return nil, errors.Wrap(err, "error getting existing substitute order")
	}
	return substitute, nil
}
