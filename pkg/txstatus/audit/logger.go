package audit

import (
	"context"

	"github.com/oschwald/maxminddb-golang"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/txstatus-server/pkg/cache"
	"github.com/code-payments/txstatus-server/pkg/metrics"
	"github.com/code-payments/txstatus-server/pkg/netutil"
	"github.com/code-payments/txstatus-server/pkg/pointer"
	"github.com/code-payments/txstatus-server/pkg/txstatus/data"
	"github.com/code-payments/txstatus-server/pkg/txstatus/data/order"
	"github.com/code-payments/txstatus-server/pkg/txstatus/data/transactionstatus"
	"github.com/code-payments/txstatus-server/pkg/txstatus/notification"
)

const (
	metricsStructName = "audit.Logger"

	ipMetadataCacheSize = 1024
)

// Logger durably records every authenticated provider callback.
type Logger struct {
	log  *logrus.Entry
	data data.Provider
	geo  *maxminddb.Reader

	// Callbacks arrive from a handful of provider addresses
	ipMetadataCache cache.Cache[*netutil.IpMetadata]
}

// NewLogger returns a new Logger. geo is optional and enables country and city
// enrichment of the caller's remote address.
func NewLogger(data data.Provider, geo *maxminddb.Reader) *Logger {
	return &Logger{
		log:  logrus.StandardLogger().WithField("type", "audit/Logger"),
		data: data,
		geo:  geo,

		ipMetadataCache: cache.NewCache[*netutil.IpMetadata]("audit/ip_metadata", ipMetadataCacheSize),
	}
}

// Record appends an audit entry for n, attributed to record when the order
// could be resolved. Failures are logged and never propagated.
func (l *Logger) Record(ctx context.Context, record *order.Record, n notification.Notification, remoteAddress string, willBeHandled bool) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Record")
	defer tracer.End()

	log := l.log.WithFields(logrus.Fields{
		"method":          "Record",
		"txid":            n.TxId(),
		"txaction":        n.TxAction(),
		"remote_address":  remoteAddress,
		"will_be_handled": willBeHandled,
	})

	entry := &transactionstatus.Record{
		TxId:          n.TxId(),
		TxAction:      n.TxAction(),
		WillBeHandled: willBeHandled,
		Payload:       n.Redacted(),
		RemoteAddress: remoteAddress,
	}

	if sequenceNumber, ok := n.SequenceNumber(); ok {
		entry.SequenceNumber = pointer.Of(sequenceNumber)
	}

	if record != nil {
		entry.OrderRef = pointer.String(record.OrderRef)
		log = log.WithField("order", record.OrderRef)
	}

	ipMetadata, err := l.getIpMetadata(ctx, remoteAddress)
	if err != nil {
		log.WithError(err).Debug("failure getting ip metadata")
	} else {
		entry.Country = ipMetadata.Country
		entry.City = ipMetadata.City
	}

	if err := l.data.SaveTransactionStatus(ctx, entry); err != nil {
		tracer.OnError(err)
		log.WithError(err).Warn("failure saving transaction status audit entry")
		return
	}

	log.WithField("audit_entry", entry.Id).Debug("transaction status recorded")
}

func (l *Logger) getIpMetadata(ctx context.Context, remoteAddress string) (*netutil.IpMetadata, error) {
	if cached, ok := l.ipMetadataCache.Retrieve(remoteAddress); ok {
		return cached, nil
	}

	ipMetadata, err := netutil.GetIpMetadata(ctx, l.geo, remoteAddress)
	if err != nil {
		return nil, err
	}

	if l.geo != nil {
		if err := l.ipMetadataCache.Insert(remoteAddress, ipMetadata, 1); err != nil {
			l.log.WithError(err).Debug("failure caching ip metadata")
		}
	}
	return ipMetadata, nil
}
