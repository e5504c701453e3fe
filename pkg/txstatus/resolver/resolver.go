package resolver

import (
	"context"

	"github.com/pkg/errors"

	"github.com/code-payments/txstatus-server/pkg/metrics"
	"github.com/code-payments/txstatus-server/pkg/txstatus/data"
	"github.com/code-payments/txstatus-server/pkg/txstatus/data/order"
)

const (
	metricsStructName = "resolver.OrderResolver"
)

var (
	// ErrOrderNotFound is expected when a callback races the checkout that
	// creates the order.
	ErrOrderNotFound = errors.New("order not found")
)

// OrderResolver maps provider transaction IDs to locally known orders.
type OrderResolver struct {
	data data.Provider
}

func NewOrderResolver(data data.Provider) *OrderResolver {
	return &OrderResolver{
		data: data,
	}
}

// Resolve returns the live order for txId. Once a canceled order has been
// substituted, the substitute is returned.
func (r *OrderResolver) Resolve(ctx context.Context, txId string) (*order.Record, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Resolve")
	defer tracer.End()

	if len(txId) == 0 {
		return nil, ErrOrderNotFound
	}

	record, err := r.data.GetOrderByTxId(ctx, txId)
	if err == order.ErrNotFound {
		return nil, ErrOrderNotFound
	} else if err != nil {
		tracer.OnError(err)
		return nil, errors.Wrap(err, "error getting order by transaction id")
	}
	return record, nil
}
