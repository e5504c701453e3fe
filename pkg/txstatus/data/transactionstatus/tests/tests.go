package tests

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/txstatus-server/pkg/pointer"
	"github.com/code-payments/txstatus-server/pkg/txstatus/data/transactionstatus"
	"github.com/code-payments/txstatus-server/pkg/txstatus/notification"
)

func RunTests(t *testing.T, s transactionstatus.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s transactionstatus.Store){
		testHappyPath,
		testAppendOnly,
		testCountByOrder,
		testValidation,
	} {
		tf(t, s)
		teardown()
	}
}

func testHappyPath(t *testing.T, s transactionstatus.Store) {
	t.Run("testHappyPath", func(t *testing.T) {
		ctx := context.Background()
		start := time.Now()
		time.Sleep(time.Millisecond)

		payload := notification.Notification{
			notification.FieldKey:            "0123456789abcdef0123456789abcdef",
			notification.FieldTxId:           "ORDER42",
			notification.FieldTxAction:       notification.TxActionAppointed,
			notification.FieldSequenceNumber: "0",
		}

		record := &transactionstatus.Record{
			TxId:           "ORDER42",
			TxAction:       notification.TxActionAppointed,
			SequenceNumber: pointer.Of[uint64](0),

			OrderRef:      pointer.String("ref_ORDER42"),
			WillBeHandled: true,

			Payload: payload.Redacted(),

			RemoteAddress: "185.60.20.1",
			Country:       pointer.String("DE"),
			City:          pointer.String("Kiel"),
		}
		cloned := record.Clone()

		_, err := s.GetAllByTxId(ctx, record.TxId)
		assert.Equal(t, transactionstatus.ErrNotFound, err)

		require.NoError(t, s.Put(ctx, record))
		assert.True(t, record.Id > 0)
		assert.True(t, record.CreatedAt.After(start))

		actual, err := s.GetAllByTxId(ctx, record.TxId)
		require.NoError(t, err)
		require.Len(t, actual, 1)
		assert.Equal(t, record.Id, actual[0].Id)
		assertEquivalentRecords(t, &cloned, actual[0])
	})
}

func testAppendOnly(t *testing.T, s transactionstatus.Store) {
	t.Run("testAppendOnly", func(t *testing.T) {
		ctx := context.Background()

		payload := notification.Notification{
			notification.FieldKey:      "<redacted>",
			notification.FieldTxId:     "UNKNOWN123",
			notification.FieldTxAction: notification.TxActionPaid,
		}

		// Identical replays are each recorded
		var ids []uint64
		for i := 0; i < 3; i++ {
			record := &transactionstatus.Record{
				TxId:          "UNKNOWN123",
				TxAction:      notification.TxActionPaid,
				Payload:       payload,
				RemoteAddress: "185.60.20.1",
			}
			require.NoError(t, s.Put(ctx, record))
			ids = append(ids, record.Id)
			time.Sleep(time.Millisecond)
		}

		actual, err := s.GetAllByTxId(ctx, "UNKNOWN123")
		require.NoError(t, err)
		require.Len(t, actual, 3)
		for i, record := range actual {
			assert.Equal(t, ids[i], record.Id)
			assert.Nil(t, record.OrderRef)
			assert.False(t, record.WillBeHandled)
			assert.Nil(t, record.SequenceNumber)
			assert.Nil(t, record.Country)
			assert.Nil(t, record.City)
			assert.Equal(t, payload, record.Payload)
		}
	})
}

func testCountByOrder(t *testing.T, s transactionstatus.Store) {
	t.Run("testCountByOrder", func(t *testing.T) {
		ctx := context.Background()

		count, err := s.CountByOrder(ctx, "ref_ORDER42")
		require.NoError(t, err)
		assert.EqualValues(t, 0, count)

		for _, orderRef := range []*string{
			pointer.String("ref_ORDER42"),
			pointer.String("ref_ORDER42"),
			pointer.String("ref_substitute"),
			nil,
		} {
			require.NoError(t, s.Put(ctx, &transactionstatus.Record{
				TxId:          "ORDER42",
				TxAction:      notification.TxActionAppointed,
				OrderRef:      orderRef,
				Payload:       notification.Notification{notification.FieldTxId: "ORDER42"},
				RemoteAddress: "185.60.20.1",
			}))
		}

		count, err = s.CountByOrder(ctx, "ref_ORDER42")
		require.NoError(t, err)
		assert.EqualValues(t, 2, count)

		count, err = s.CountByOrder(ctx, "ref_substitute")
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)

		all, err := s.GetAllByTxId(ctx, "ORDER42")
		require.NoError(t, err)
		assert.Len(t, all, 4)
	})
}

func testValidation(t *testing.T, s transactionstatus.Store) {
	t.Run("testValidation", func(t *testing.T) {
		ctx := context.Background()

		for _, invalid := range []*transactionstatus.Record{
			{TxId: "ORDER42", RemoteAddress: "185.60.20.1"},
			{TxId: "ORDER42", Payload: notification.Notification{notification.FieldKey: "secret"}, RemoteAddress: "185.60.20.1"},
			{TxId: "ORDER42", Payload: notification.Notification{}},
			{TxId: "ORDER42", Payload: notification.Notification{}, RemoteAddress: "185.60.20.1", WillBeHandled: true},
			{TxId: "ORDER42", Payload: notification.Notification{}, RemoteAddress: "185.60.20.1", OrderRef: pointer.String("")},
		} {
			assert.Error(t, s.Put(ctx, invalid))
		}

		_, err := s.GetAllByTxId(ctx, "ORDER42")
		assert.Equal(t, transactionstatus.ErrNotFound, err)
	})
}

func assertEquivalentRecords(t *testing.T, obj1, obj2 *transactionstatus.Record) {
	assert.Equal(t, obj1.TxId, obj2.TxId)
	assert.Equal(t, obj1.TxAction, obj2.TxAction)
	assert.EqualValues(t, obj1.SequenceNumber, obj2.SequenceNumber)
	assert.EqualValues(t, obj1.OrderRef, obj2.OrderRef)
	assert.Equal(t, obj1.WillBeHandled, obj2.WillBeHandled)
	assert.Equal(t, obj1.Payload, obj2.Payload)
	assert.Equal(t, obj1.RemoteAddress, obj2.RemoteAddress)
	assert.EqualValues(t, obj1.Country, obj2.Country)
	assert.EqualValues(t, obj1.City, obj2.City)
}
