package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	pgutil "github.com/code-payments/txstatus-server/pkg/database/postgres"
	"github.com/code-payments/txstatus-server/pkg/pointer"
	"github.com/code-payments/txstatus-server/pkg/txstatus/data/transactionstatus"
	"github.com/code-payments/txstatus-server/pkg/txstatus/notification"
)

const (
	tableName = "txstatus__core_transactionstatus"

	allColumns = `id, tx_id, tx_action, sequence_number, order_ref, will_be_handled, payload, remote_address, country, city, created_at`
)

type model struct {
	Id sql.NullInt64 `db:"id"`

	TxId           string        `db:"tx_id"`
	TxAction       string        `db:"tx_action"`
	SequenceNumber sql.NullInt64 `db:"sequence_number"`

	OrderRef      sql.NullString `db:"order_ref"`
	WillBeHandled bool           `db:"will_be_handled"`

	Payload string `db:"payload"`

	RemoteAddress string         `db:"remote_address"`
	Country       sql.NullString `db:"country"`
	City          sql.NullString `db:"city"`

	CreatedAt time.Time `db:"created_at"`
}

func toModel(obj *transactionstatus.Record) (*model, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	payload, err := obj.Payload.MarshalRedacted()
	if err != nil {
		return nil, err
	}

	return &model{
		TxId:     obj.TxId,
		TxAction: obj.TxAction,
		SequenceNumber: sql.NullInt64{
			Valid: obj.SequenceNumber != nil,
			Int64: int64(pointer.ValueOrDefault(obj.SequenceNumber, 0)),
		},

		OrderRef:      toNullString(obj.OrderRef),
		WillBeHandled: obj.WillBeHandled,

		Payload: string(payload),

		RemoteAddress: obj.RemoteAddress,
		Country:       toNullString(obj.Country),
		City:          toNullString(obj.City),

		CreatedAt: obj.CreatedAt,
	}, nil
}

func fromModel(obj *model) (*transactionstatus.Record, error) {
	payload, err := notification.Unmarshal([]byte(obj.Payload))
	if err != nil {
		return nil, err
	}

	return &transactionstatus.Record{
		Id: uint64(obj.Id.Int64),

		TxId:           obj.TxId,
		TxAction:       obj.TxAction,
		SequenceNumber: pointer.IfValid(obj.SequenceNumber.Valid, uint64(obj.SequenceNumber.Int64)),

		OrderRef:      pointer.StringIfValid(obj.OrderRef.Valid, obj.OrderRef.String),
		WillBeHandled: obj.WillBeHandled,

		Payload: payload,

		RemoteAddress: obj.RemoteAddress,
		Country:       pointer.StringIfValid(obj.Country.Valid, obj.Country.String),
		City:          pointer.StringIfValid(obj.City.Valid, obj.City.String),

		CreatedAt: obj.CreatedAt,
	}, nil
}

func (m *model) dbPut(ctx context.Context, db *sqlx.DB) error {
	return pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `INSERT INTO ` + tableName + `
			(tx_id, tx_action, sequence_number, order_ref, will_be_handled, payload, remote_address, country, city, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING ` + allColumns

		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now()
		}

		return tx.QueryRowxContext(
			ctx,
			query,
			m.TxId,
			m.TxAction,
			m.SequenceNumber,
			m.OrderRef,
			m.WillBeHandled,
			m.Payload,
			m.RemoteAddress,
			m.Country,
			m.City,
			m.CreatedAt,
		).StructScan(m)
	})
}

func dbGetAllByTxId(ctx context.Context, db *sqlx.DB, txId string) ([]*model, error) {
	res := []*model{}

	query := `SELECT ` + allColumns + ` FROM ` + tableName + `
		WHERE tx_id = $1
		ORDER BY id ASC
	`

	err := db.SelectContext(ctx, &res, query, txId)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, transactionstatus.ErrNotFound)
	} else if len(res) == 0 {
		return nil, transactionstatus.ErrNotFound
	}
	return res, nil
}

func dbCountByOrder(ctx context.Context, db *sqlx.DB, orderRef string) (uint64, error) {
	var res uint64

	query := `SELECT COUNT(*) FROM ` + tableName + `
		WHERE order_ref = $1
	`

	err := db.GetContext(ctx, &res, query, orderRef)
	if err != nil {
		return 0, err
	}
	return res, nil
}

func toNullString(value *string) sql.NullString {
	return sql.NullString{
		Valid:  value != nil,
		String: pointer.ValueOrDefault(value, ""),
	}
}
