package tests

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/txstatus-server/pkg/pointer"
	"github.com/code-payments/txstatus-server/pkg/txstatus/data/order"
)

func RunTests(t *testing.T, s order.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s order.Store){
		testHappyPath,
		testGetByTxIdPrefersLatest,
		testSubstitution,
		testValidation,
	} {
		tf(t, s)
		teardown()
	}
}

func testHappyPath(t *testing.T, s order.Store) {
	t.Run("testHappyPath", func(t *testing.T) {
		ctx := context.Background()
		start := time.Now()
		time.Sleep(time.Millisecond)

		record := &order.Record{
			OrderRef: "ref_ORDER42",
			TxId:     "ORDER42",
			Status:   order.StatusPending,

			Interactive: true,

			CustomerId:  "customer_1",
			Currency:    "EUR",
			AmountTotal: 4200,
		}
		cloned := record.Clone()

		_, err := s.Get(ctx, record.OrderRef)
		assert.Equal(t, order.ErrNotFound, err)
		_, err = s.GetByTxId(ctx, record.TxId)
		assert.Equal(t, order.ErrNotFound, err)
		_, err = s.GetAllByTxId(ctx, record.TxId)
		assert.Equal(t, order.ErrNotFound, err)
		assert.Equal(t, order.ErrNotFound, s.Update(ctx, record))

		require.NoError(t, s.Put(ctx, record))
		assert.True(t, record.Id > 0)
		assert.True(t, record.CreatedAt.After(start))
		assert.Equal(t, order.ErrAlreadyExists, s.Put(ctx, record))

		actual, err := s.Get(ctx, record.OrderRef)
		require.NoError(t, err)
		assert.Equal(t, record.Id, actual.Id)
		assertEquivalentRecords(t, &cloned, actual)

		actual, err = s.GetByTxId(ctx, record.TxId)
		require.NoError(t, err)
		assertEquivalentRecords(t, &cloned, actual)

		record.Status = order.StatusPaid
		record.SequenceNumber = pointer.Of[uint64](2)
		record.LastTxAction = pointer.String("paid")

		// Immutable fields are ignored on update
		record.AmountTotal = 1
		record.CustomerId = "someone_else"

		require.NoError(t, s.Update(ctx, record))
		assert.EqualValues(t, 4200, record.AmountTotal)
		assert.Equal(t, "customer_1", record.CustomerId)

		actual, err = s.Get(ctx, record.OrderRef)
		require.NoError(t, err)
		assert.Equal(t, order.StatusPaid, actual.Status)
		require.NotNil(t, actual.SequenceNumber)
		assert.EqualValues(t, 2, *actual.SequenceNumber)
		require.NotNil(t, actual.LastTxAction)
		assert.Equal(t, "paid", *actual.LastTxAction)
		assert.EqualValues(t, 4200, actual.AmountTotal)
		assert.Equal(t, "customer_1", actual.CustomerId)
	})
}

func testGetByTxIdPrefersLatest(t *testing.T, s order.Store) {
	t.Run("testGetByTxIdPrefersLatest", func(t *testing.T) {
		ctx := context.Background()

		var refs []string
		for i := 0; i < 3; i++ {
			record := &order.Record{
				OrderRef:    fmt.Sprintf("ref_%d", i),
				TxId:        "ORDER42",
				Status:      order.StatusPending,
				Currency:    "EUR",
				AmountTotal: 100,
			}
			require.NoError(t, s.Put(ctx, record))
			refs = append(refs, record.OrderRef)
			time.Sleep(time.Millisecond)
		}

		require.NoError(t, s.Put(ctx, &order.Record{
			OrderRef:    "ref_other",
			TxId:        "ORDER43",
			Status:      order.StatusPending,
			Currency:    "EUR",
			AmountTotal: 100,
		}))

		actual, err := s.GetByTxId(ctx, "ORDER42")
		require.NoError(t, err)
		assert.Equal(t, refs[2], actual.OrderRef)

		all, err := s.GetAllByTxId(ctx, "ORDER42")
		require.NoError(t, err)
		require.Len(t, all, 3)
		for i, record := range all {
			assert.Equal(t, refs[i], record.OrderRef)
		}

		actual, err = s.GetByTxId(ctx, "ORDER43")
		require.NoError(t, err)
		assert.Equal(t, "ref_other", actual.OrderRef)
	})
}

func testSubstitution(t *testing.T, s order.Store) {
	t.Run("testSubstitution", func(t *testing.T) {
		ctx := context.Background()

		canceled := &order.Record{
			OrderRef:    "ref_canceled",
			TxId:        "ORDER42",
			Status:      order.StatusCanceled,
			Interactive: true,
			Currency:    "EUR",
			AmountTotal: 4200,
		}
		require.NoError(t, s.Put(ctx, canceled))
		time.Sleep(time.Millisecond)

		substitute := canceled.Clone()
		substitute.Id = 0
		substitute.OrderRef = "ref_substitute"
		substitute.Status = order.StatusPending
		substitute.Interactive = false
		substitute.SubstituteFor = pointer.String(canceled.OrderRef)
		substitute.CreatedAt = time.Time{}
		require.NoError(t, s.Put(ctx, &substitute))

		// At most one substitute per canceled order
		duplicate := substitute.Clone()
		duplicate.Id = 0
		duplicate.OrderRef = "ref_duplicate"
		assert.Equal(t, order.ErrAlreadyExists, s.Put(ctx, &duplicate))

		canceled.SubstitutedBy = pointer.String(substitute.OrderRef)
		require.NoError(t, s.Update(ctx, canceled))

		actual, err := s.Get(ctx, canceled.OrderRef)
		require.NoError(t, err)
		assert.Equal(t, order.StatusCanceled, actual.Status)
		require.NotNil(t, actual.SubstitutedBy)
		assert.Equal(t, substitute.OrderRef, *actual.SubstitutedBy)

		actual, err = s.GetByTxId(ctx, "ORDER42")
		require.NoError(t, err)
		assert.Equal(t, substitute.OrderRef, actual.OrderRef)
		assert.False(t, actual.Interactive)
		require.NotNil(t, actual.SubstituteFor)
		assert.Equal(t, canceled.OrderRef, *actual.SubstituteFor)
	})
}

func testValidation(t *testing.T, s order.Store) {
	t.Run("testValidation", func(t *testing.T) {
		ctx := context.Background()

		for _, invalid := range []*order.Record{
			{TxId: "ORDER42", Status: order.StatusPending, Currency: "EUR"},
			{OrderRef: "ref", Status: order.StatusPending, Currency: "EUR"},
			{OrderRef: "ref", TxId: "ORDER42", Currency: "EUR"},
			{OrderRef: "ref", TxId: "ORDER42", Status: order.StatusPending},
			{OrderRef: "ref", TxId: "ORDER42", Status: order.StatusPending, Currency: "EUR", AmountTotal: -1},
			{OrderRef: "ref", TxId: "ORDER42", Status: order.StatusPending, Currency: "EUR", SubstitutedBy: pointer.String("other")},
			{OrderRef: "ref", TxId: "ORDER42", Status: order.StatusCanceled, Currency: "EUR", SubstitutedBy: pointer.String("ref")},
			{OrderRef: "ref", TxId: "ORDER42", Status: order.StatusPending, Currency: "EUR", SubstituteFor: pointer.String("ref")},
		} {
			assert.Error(t, s.Put(ctx, invalid))
		}
	})
}

func assertEquivalentRecords(t *testing.T, obj1, obj2 *order.Record) {
	assert.Equal(t, obj1.OrderRef, obj2.OrderRef)
	assert.Equal(t, obj1.TxId, obj2.TxId)
	assert.Equal(t, obj1.Status, obj2.Status)
	assert.Equal(t, obj1.Interactive, obj2.Interactive)
	assert.Equal(t, obj1.CustomerId, obj2.CustomerId)
	assert.Equal(t, obj1.Currency, obj2.Currency)
	assert.Equal(t, obj1.AmountTotal, obj2.AmountTotal)
	assert.EqualValues(t, obj1.SequenceNumber, obj2.SequenceNumber)
	assert.EqualValues(t, obj1.LastTxAction, obj2.LastTxAction)
	assert.EqualValues(t, obj1.SubstituteFor, obj2.SubstituteFor)
	assert.EqualValues(t, obj1.SubstitutedBy, obj2.SubstitutedBy)
}
