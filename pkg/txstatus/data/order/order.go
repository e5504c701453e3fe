package order

import (
	"time"

	"github.com/pkg/errors"

	"github.com/code-payments/txstatus-server/pkg/pointer"
)

type Status uint8

const (
	StatusUnknown Status = iota
	StatusPending
	StatusProcessing
	StatusPaid
	StatusUnderpaid
	StatusPaymentFailed
	StatusCanceled
	StatusRefunded
)

type Record struct {
	Id uint64

	OrderRef string
	TxId     string
	Status   Status

	// Interactive is false for orders created without the customer present,
	// such as substitutes created while processing a provider callback.
	Interactive bool

	CustomerId  string
	Currency    string
	AmountTotal int64

	// Last provider notification applied to the order
	SequenceNumber *uint64
	LastTxAction   *string

	SubstituteFor *string
	SubstitutedBy *string

	CreatedAt time.Time
}

func (r *Record) Validate() error {
	if len(r.OrderRef) == 0 {
		return errors.New("order reference is required")
	}

	if len(r.TxId) == 0 {
		return errors.New("transaction id is required")
	}

	if r.Status == StatusUnknown {
		return errors.New("status is required")
	}

	if len(r.Currency) == 0 {
		return errors.New("currency is required")
	}

	if r.AmountTotal < 0 {
		return errors.New("amount total cannot be negative")
	}

	if r.SubstituteFor != nil && *r.SubstituteFor == r.OrderRef {
		return errors.New("order cannot substitute itself")
	}

	if r.SubstitutedBy != nil {
		if r.Status != StatusCanceled {
			return errors.New("only canceled orders can be substituted")
		}

		if *r.SubstitutedBy == r.OrderRef {
			return errors.New("order cannot be substituted by itself")
		}
	}

	return nil
}

func (r *Record) Clone() Record {
	return Record{
		Id: r.Id,

		OrderRef: r.OrderRef,
		TxId:     r.TxId,
		Status:   r.Status,

		Interactive: r.Interactive,

		CustomerId:  r.CustomerId,
		Currency:    r.Currency,
		AmountTotal: r.AmountTotal,

		SequenceNumber: pointer.Copy(r.SequenceNumber),
		LastTxAction:   pointer.StringCopy(r.LastTxAction),

		SubstituteFor: pointer.StringCopy(r.SubstituteFor),
		SubstitutedBy: pointer.StringCopy(r.SubstitutedBy),

		CreatedAt: r.CreatedAt,
	}
}

func (r *Record) CopyTo(dst *Record) {
	dst.Id = r.Id

	dst.OrderRef = r.OrderRef
	dst.TxId = r.TxId
	dst.Status = r.Status

	dst.Interactive = r.Interactive

	dst.CustomerId = r.CustomerId
	dst.Currency = r.Currency
	dst.AmountTotal = r.AmountTotal

	dst.SequenceNumber = pointer.Copy(r.SequenceNumber)
	dst.LastTxAction = pointer.StringCopy(r.LastTxAction)

	dst.SubstituteFor = pointer.StringCopy(r.SubstituteFor)
	dst.SubstitutedBy = pointer.StringCopy(r.SubstitutedBy)

	dst.CreatedAt = r.CreatedAt
}

// IsCanceled reports whether the order was abandoned before payment completed.
func (r *Record) IsCanceled() bool {
	return r.Status == StatusCanceled
}

func (s Status) String() string {
	switch s {
	case StatusUnknown:
		return "unknown"
	case StatusPending:
		return "pending"
	case StatusProcessing:
		return "processing"
	case StatusPaid:
		return "paid"
	case StatusUnderpaid:
		return "underpaid"
	case StatusPaymentFailed:
		return "payment_failed"
	case StatusCanceled:
		return "canceled"
	case StatusRefunded:
		return "refunded"
	}
	return "unknown"
}
