package data

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/txstatus-server/pkg/pointer"
	"github.com/code-payments/txstatus-server/pkg/txstatus/data/order"
)

func newCanceledOrder(t *testing.T, dp Provider) *order.Record {
	record := &order.Record{
		OrderRef:       "ref_ORDER42",
		TxId:           "ORDER42",
		Status:         order.StatusCanceled,
		Interactive:    true,
		CustomerId:     "customer_1",
		Currency:       "EUR",
		AmountTotal:    4200,
		SequenceNumber: pointer.Of[uint64](1),
		LastTxAction:   pointer.String("cancelation"),
	}
	require.NoError(t, dp.CreateOrder(context.Background(), record))
	return record
}

func TestCreateSubstituteOrder_HappyPath(t *testing.T) {
	ctx := context.Background()
	dp := NewTestDatabaseProvider()
	canceled := newCanceledOrder(t, dp)

	substitute, err := dp.CreateSubstituteOrder(ctx, canceled, false)
	require.NoError(t, err)

	assert.NotEqual(t, canceled.OrderRef, substitute.OrderRef)
	assert.NotEqual(t, canceled.Id, substitute.Id)
	assert.Equal(t, canceled.TxId, substitute.TxId)
	assert.Equal(t, order.StatusPending, substitute.Status)
	assert.False(t, substitute.Interactive)
	assert.Equal(t, canceled.CustomerId, substitute.CustomerId)
	assert.Equal(t, canceled.Currency, substitute.Currency)
	assert.Equal(t, canceled.AmountTotal, substitute.AmountTotal)
	assert.Nil(t, substitute.SequenceNumber)
	assert.Nil(t, substitute.LastTxAction)
	assert.Nil(t, substitute.SubstitutedBy)
	require.NotNil(t, substitute.SubstituteFor)
	assert.Equal(t, canceled.OrderRef, *substitute.SubstituteFor)

	// The canceled order stays canceled and references its substitute
	updated, err := dp.GetOrder(ctx, canceled.OrderRef)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCanceled, updated.Status)
	require.NotNil(t, updated.SubstitutedBy)
	assert.Equal(t, substitute.OrderRef, *updated.SubstitutedBy)

	// Resolution now prefers the substitute
	resolved, err := dp.GetOrderByTxId(ctx, canceled.TxId)
	require.NoError(t, err)
	assert.Equal(t, substitute.OrderRef, resolved.OrderRef)

	all, err := dp.GetAllOrdersByTxId(ctx, canceled.TxId)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCreateSubstituteOrder_AlreadySubstituted(t *testing.T) {
	ctx := context.Background()
	dp := NewTestDatabaseProvider()
	canceled := newCanceledOrder(t, dp)

	_, err := dp.CreateSubstituteOrder(ctx, canceled, false)
	require.NoError(t, err)

	// A stale copy of the canceled order must not create a second substitute
	_, err = dp.CreateSubstituteOrder(ctx, canceled, false)
	assert.Equal(t, order.ErrAlreadySubstituted, err)

	all, err := dp.GetAllOrdersByTxId(ctx, canceled.TxId)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCreateSubstituteOrder_NotCanceled(t *testing.T) {
	ctx := context.Background()
	dp := NewTestDatabaseProvider()

	record := &order.Record{
		OrderRef:    "ref_ORDER42",
		TxId:        "ORDER42",
		Status:      order.StatusPending,
		Currency:    "EUR",
		AmountTotal: 4200,
	}
	require.NoError(t, dp.CreateOrder(ctx, record))

	_, err := dp.CreateSubstituteOrder(ctx, record, false)
	assert.Equal(t, ErrOrderNotCanceled, err)
}

func TestCreateSubstituteOrder_NotFound(t *testing.T) {
	dp := NewTestDatabaseProvider()

	_, err := dp.CreateSubstituteOrder(context.Background(), &order.Record{OrderRef: "ref_missing"}, false)
	assert.Equal(t, order.ErrNotFound, err)
}
