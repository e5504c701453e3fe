package transactionstatus

import (
	"time"

	"github.com/pkg/errors"

	"github.com/code-payments/txstatus-server/pkg/pointer"
	"github.com/code-payments/txstatus-server/pkg/txstatus/notification"
)

// Record is an audit entry for a single authenticated provider callback.
type Record struct {
	Id uint64

	TxId           string
	TxAction       string
	SequenceNumber *uint64

	// OrderRef is the order the callback was attributed to, if any
	OrderRef      *string
	WillBeHandled bool

	// Payload is the notification with secrets redacted
	Payload notification.Notification

	RemoteAddress string
	Country       *string
	City          *string

	CreatedAt time.Time
}

func (r *Record) Validate() error {
	if r.Payload == nil {
		return errors.New("payload is required")
	}

	if !r.Payload.IsRedacted() {
		return errors.New("payload must be redacted")
	}

	if len(r.RemoteAddress) == 0 {
		return errors.New("remote address is required")
	}

	if r.OrderRef != nil && len(*r.OrderRef) == 0 {
		return errors.New("order reference cannot be empty when set")
	}

	if r.WillBeHandled && r.OrderRef == nil {
		return errors.New("order reference is required when the callback will be handled")
	}

	return nil
}

func (r *Record) Clone() Record {
	return Record{
		Id: r.Id,

		TxId:           r.TxId,
		TxAction:       r.TxAction,
		SequenceNumber: pointer.Copy(r.SequenceNumber),

		OrderRef:      pointer.StringCopy(r.OrderRef),
		WillBeHandled: r.WillBeHandled,

		Payload: r.Payload.Clone(),

		RemoteAddress: r.RemoteAddress,
		Country:       pointer.StringCopy(r.Country),
		City:          pointer.StringCopy(r.City),

		CreatedAt: r.CreatedAt,
	}
}

func (r *Record) CopyTo(dst *Record) {
	dst.Id = r.Id

	dst.TxId = r.TxId
	dst.TxAction = r.TxAction
	dst.SequenceNumber = pointer.Copy(r.SequenceNumber)

	dst.OrderRef = pointer.StringCopy(r.OrderRef)
	dst.WillBeHandled = r.WillBeHandled

	dst.Payload = r.Payload.Clone()

	dst.RemoteAddress = r.RemoteAddress
	dst.Country = pointer.StringCopy(r.Country)
	dst.City = pointer.StringCopy(r.City)

	dst.CreatedAt = r.CreatedAt
}
