package audit

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/txstatus-server/pkg/testutil"
	"github.com/code-payments/txstatus-server/pkg/txstatus/data"
	"github.com/code-payments/txstatus-server/pkg/txstatus/data/order"
	"github.com/code-payments/txstatus-server/pkg/txstatus/data/transactionstatus"
	"github.com/code-payments/txstatus-server/pkg/txstatus/notification"
)

func newNotification(txId string) notification.Notification {
	return notification.Notification{
		notification.FieldKey:            "0123456789abcdef0123456789abcdef",
		notification.FieldTxId:           txId,
		notification.FieldTxAction:       notification.TxActionAppointed,
		notification.FieldSequenceNumber: "4",
	}
}

func TestRecord_WithOrder(t *testing.T) {
	ctx := context.Background()
	dp := data.NewTestDatabaseProvider()
	l := NewLogger(dp, nil)

	record := &order.Record{OrderRef: "ref_ORDER42", TxId: "ORDER42", Status: order.StatusPending, Currency: "EUR"}
	l.Record(ctx, record, newNotification("ORDER42"), "185.60.20.1", true)

	entries, err := dp.GetAllTransactionStatusesByTxId(ctx, "ORDER42")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, "ORDER42", entry.TxId)
	assert.Equal(t, notification.TxActionAppointed, entry.TxAction)
	require.NotNil(t, entry.SequenceNumber)
	assert.EqualValues(t, 4, *entry.SequenceNumber)
	require.NotNil(t, entry.OrderRef)
	assert.Equal(t, "ref_ORDER42", *entry.OrderRef)
	assert.True(t, entry.WillBeHandled)
	assert.Equal(t, "185.60.20.1", entry.RemoteAddress)
	assert.Nil(t, entry.Country)
	assert.Nil(t, entry.City)

	// The presented key is never persisted
	assert.True(t, entry.Payload.IsRedacted())
	assert.NotEqual(t, "0123456789abcdef0123456789abcdef", entry.Payload.Key())

	count, err := dp.CountTransactionStatusesByOrder(ctx, "ref_ORDER42")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestRecord_WithoutOrder(t *testing.T) {
	ctx := context.Background()
	dp := data.NewTestDatabaseProvider()
	l := NewLogger(dp, nil)

	n := newNotification("UNKNOWN123")
	delete(n, notification.FieldSequenceNumber)
	l.Record(ctx, nil, n, "185.60.20.1", false)

	entries, err := dp.GetAllTransactionStatusesByTxId(ctx, "UNKNOWN123")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].OrderRef)
	assert.Nil(t, entries[0].SequenceNumber)
	assert.False(t, entries[0].WillBeHandled)
}

type failingProvider struct {
	data.Provider
}

func (p *failingProvider) SaveTransactionStatus(context.Context, *transactionstatus.Record) error {
	return errors.New("database unavailable")
}

func TestRecord_PersistenceFailureIsIsolated(t *testing.T) {
	reset := testutil.DisableLogging()
	defer reset()

	dp := &failingProvider{Provider: data.NewTestDatabaseProvider()}
	l := NewLogger(dp, nil)

	assert.NotPanics(t, func() {
		l.Record(context.Background(), nil, newNotification("ORDER42"), "185.60.20.1", false)
	})
}
