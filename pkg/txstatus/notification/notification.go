package notification

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"

	"github.com/pkg/errors"
)

// Well-known notification fields
const (
	FieldKey            = "key"
	FieldTxId           = "txid"
	FieldTxAction       = "txaction"
	FieldSequenceNumber = "sequencenumber"
	FieldPortalId       = "portalid"
	FieldAccountId      = "aid"
	FieldMode           = "mode"
	FieldClearingType   = "clearingtype"
	FieldReference      = "reference"
	FieldCurrency       = "currency"
	FieldPrice          = "price"
	FieldBalance        = "balance"
	FieldReceivable     = "receivable"
	FieldTxTime         = "txtime"
	FieldStatus         = "transaction_status"
	FieldFailedCause    = "failedcause"
)

// Transaction actions reported by the provider
const (
	TxActionAppointed      = "appointed"
	TxActionCapture        = "capture"
	TxActionPaid           = "paid"
	TxActionUnderpaid      = "underpaid"
	TxActionCancelation    = "cancelation"
	TxActionRefund         = "refund"
	TxActionDebit          = "debit"
	TxActionTransfer       = "transfer"
	TxActionReminder       = "reminder"
	TxActionVAuthorization = "vauthorization"
	TxActionVSettlement    = "vsettlement"
	TxActionInvoice        = "invoice"
	TxActionFailed         = "failed"
)

const redactedValue = "<redacted>"

// Notification is the set of fields the provider posted for a single status
// callback. It is never modified after being parsed.
type Notification map[string]string

// FromRequest parses the form encoded body of r. Query parameters are only
// considered when acceptQueryParameters is set, and never override a value
// present in the body. For repeated fields, the first value wins.
func FromRequest(r *http.Request, acceptQueryParameters bool) (Notification, error) {
	if err := r.ParseForm(); err != nil {
		return nil, errors.Wrap(err, "error parsing form")
	}

	n := make(Notification)
	for field, values := range r.PostForm {
		if len(values) > 0 {
			n[field] = values[0]
		}
	}

	if acceptQueryParameters {
		for field, values := range r.URL.Query() {
			if _, ok := n[field]; ok || len(values) == 0 {
				continue
			}
			n[field] = values[0]
		}
	}

	return n, nil
}

// Get returns the value of field, or an empty string when it is absent.
func (n Notification) Get(field string) string {
	return n[field]
}

func (n Notification) Key() string {
	return n[FieldKey]
}

func (n Notification) TxId() string {
	return n[FieldTxId]
}

func (n Notification) TxAction() string {
	return n[FieldTxAction]
}

// SequenceNumber returns the provider sequence number, if present and valid.
func (n Notification) SequenceNumber() (uint64, bool) {
	raw, ok := n[FieldSequenceNumber]
	if !ok {
		return 0, false
	}

	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// Clone returns a deep copy of the notification.
func (n Notification) Clone() Notification {
	cloned := make(Notification, len(n))
	for field, value := range n {
		cloned[field] = value
	}
	return cloned
}

// Redacted returns a copy of the notification with secrets masked. It is what
// gets logged and persisted.
func (n Notification) Redacted() Notification {
	cloned := n.Clone()
	if _, ok := cloned[FieldKey]; ok {
		cloned[FieldKey] = redactedValue
	}
	return cloned
}

// IsRedacted reports whether the notification carries no secrets.
func (n Notification) IsRedacted() bool {
	key, ok := n[FieldKey]
	return !ok || key == redactedValue
}

// Fields returns the notification's field names in sorted order.
func (n Notification) Fields() []string {
	fields := make([]string, 0, len(n))
	for field := range n {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// MarshalRedacted encodes the redacted notification as JSON.
func (n Notification) MarshalRedacted() ([]byte, error) {
	return json.Marshal(map[string]string(n.Redacted()))
}

// Unmarshal decodes a notification previously encoded with MarshalRedacted.
func Unmarshal(data []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, errors.Wrap(err, "error decoding notification")
	}
	if n == nil {
		n = make(Notification)
	}
	return n, nil
}
