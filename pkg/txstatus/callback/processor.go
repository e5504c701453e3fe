package callback

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/txstatus-server/pkg/metrics"
	"github.com/code-payments/txstatus-server/pkg/txstatus/auth"
	"github.com/code-payments/txstatus-server/pkg/txstatus/data/order"
	"github.com/code-payments/txstatus-server/pkg/txstatus/handler"
	"github.com/code-payments/txstatus-server/pkg/txstatus/notification"
	"github.com/code-payments/txstatus-server/pkg/txstatus/resolver"
)

const (
	metricsStructName = "callback.Processor"

	callbackEventName = "TransactionStatusCallback"
)

// Ack is the plain text acknowledgment returned to the provider.
type Ack string

const (
	AckAccessDenied  Ack = "Access denied"
	AckInvalidKey    Ack = "Key wrong or missing!"
	AckOrderNotFound Ack = "Order not found"
	AckOK            Ack = "TSOK"

	// AckNone withholds the acknowledgment so the provider redelivers the
	// notification later.
	AckNone Ack = ""
)

// Result is the outcome of processing a single callback.
type Result struct {
	Ack Ack

	// Order is the order the notification was handled for, if any. It is the
	// substitute when a canceled order was reconciled.
	Order *order.Record

	// Substituted is set when a substitute order was created or reused.
	Substituted bool

	// Err is nil on success, and otherwise matches one of ErrAuthentication,
	// ErrResolution, ErrReconciliation or ErrHandler.
	Err error
}

type Authenticator interface {
	Authenticate(ctx context.Context, remoteAddress, presentedKey string) error
}

type OrderResolver interface {
	Resolve(ctx context.Context, txId string) (*order.Record, error)
}

type Reconciler interface {
	MaybeReconcile(ctx context.Context, record *order.Record, n notification.Notification) (*order.Record, error)
}

type AuditLogger interface {
	Record(ctx context.Context, record *order.Record, n notification.Notification, remoteAddress string, willBeHandled bool)
}

// Processor runs a provider callback through authentication, order
// resolution, substitute reconciliation, auditing and status handling, in
// that order.
type Processor struct {
	log           *logrus.Entry
	authenticator Authenticator
	resolver      OrderResolver
	reconciler    Reconciler
	audit         AuditLogger
	handler       handler.StatusHandler
}

func NewProcessor(
	authenticator Authenticator,
	resolver OrderResolver,
	reconciler Reconciler,
	audit AuditLogger,
	handler handler.StatusHandler,
) *Processor {
	return &Processor{
		log:           logrus.StandardLogger().WithField("type", "callback/Processor"),
		authenticator: authenticator,
		resolver:      resolver,
		reconciler:    reconciler,
		audit:         audit,
		handler:       handler,
	}
}

// Process handles a single provider callback. It never retries internally.
func (p *Processor) Process(ctx context.Context, remoteAddress string, n notification.Notification) *Result {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Process")
	defer tracer.End()

	log := p.log.WithFields(logrus.Fields{
		"method":         "Process",
		"remote_address": remoteAddress,
		"txid":           n.TxId(),
		"txaction":       n.TxAction(),
	})

	result := p.process(ctx, log, remoteAddress, n)

	tracer.AddAttribute("ack", string(result.Ack))
	if result.Err != nil && !errors.Is(result.Err, ErrAuthentication) {
		tracer.OnError(result.Err)
	}

	eventAttributes := map[string]interface{}{
		"ack":         string(result.Ack),
		"failure":     failureClass(result.Err),
		"txaction":    n.TxAction(),
		"substituted": result.Substituted,
	}
	if result.Order != nil {
		eventAttributes["order"] = result.Order.OrderRef
	}
	metrics.RecordEvent(ctx, callbackEventName, eventAttributes)

	return result
}

func (p *Processor) process(ctx context.Context, log *logrus.Entry, remoteAddress string, n notification.Notification) *Result {
	if err := p.authenticator.Authenticate(ctx, remoteAddress, n.Key()); err != nil {
		log.WithError(err).Debug("callback not authenticated")

		ack := AckAccessDenied
		if err == auth.ErrInvalidKey {
			ack = AckInvalidKey
		}
		return &Result{
			Ack: ack,
			Err: newFailure(ErrAuthentication, err),
		}
	}

	record, err := p.resolver.Resolve(ctx, n.TxId())
	if err == resolver.ErrOrderNotFound {
		log.Info("order not found for callback")

		p.audit.Record(ctx, nil, n, remoteAddress, false)
		return &Result{
			Ack: AckOrderNotFound,
			Err: newFailure(ErrResolution, err),
		}
	} else if err != nil {
		log.WithError(err).Warn("failure resolving order for callback")

		p.audit.Record(ctx, nil, n, remoteAddress, false)
		return &Result{
			Ack: AckNone,
			Err: newFailure(ErrResolution, err),
		}
	}

	log = log.WithField("order", record.OrderRef)

	reconciled, err := p.reconciler.MaybeReconcile(ctx, record, n)
	if err != nil {
		log.WithError(err).Error("failure reconciling canceled order")

		p.audit.Record(ctx, record, n, remoteAddress, false)
		return &Result{
			Ack:   AckNone,
			Order: record,
			Err:   newFailure(ErrReconciliation, err),
		}
	}

	substituted := reconciled.OrderRef != record.OrderRef
	if substituted {
		log = log.WithField("substitute", reconciled.OrderRef)
	}

	p.audit.Record(ctx, reconciled, n, remoteAddress, true)

	if err := p.handler.Handle(ctx, reconciled, n); err != nil {
		log.WithError(err).Warn("failure handling callback")

		return &Result{
			Ack:         AckNone,
			Order:       reconciled,
			Substituted: substituted,
			Err:         newFailure(ErrHandler, err),
		}
	}

	log.Debug("callback handled")

	return &Result{
		Ack:         AckOK,
		Order:       reconciled,
		Substituted: substituted,
	}
}
