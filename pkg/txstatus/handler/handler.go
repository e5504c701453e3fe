package handler

import (
	"context"

	"github.com/code-payments/txstatus-server/pkg/txstatus/data/order"
	"github.com/code-payments/txstatus-server/pkg/txstatus/notification"
)

// StatusHandler applies the business rules for a provider notification to the
// order it was resolved to. Implementations must tolerate the provider
// redelivering the same notification.
type StatusHandler interface {
	Handle(ctx context.Context, record *order.Record, n notification.Notification) error
}
