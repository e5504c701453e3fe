package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	pgutil "github.com/code-payments/txstatus-server/pkg/database/postgres"
	"github.com/code-payments/txstatus-server/pkg/pointer"
	"github.com/code-payments/txstatus-server/pkg/txstatus/data/order"
)

const (
	tableName = "txstatus__core_order"

	allColumns = `id, order_ref, tx_id, status, is_interactive, customer_id, currency, amount_total, sequence_number, last_tx_action, substitute_for, substituted_by, created_at`
)

type model struct {
	Id sql.NullInt64 `db:"id"`

	OrderRef string `db:"order_ref"`
	TxId     string `db:"tx_id"`
	Status   uint8  `db:"status"`

	IsInteractive bool `db:"is_interactive"`

	CustomerId  string `db:"customer_id"`
	Currency    string `db:"currency"`
	AmountTotal int64  `db:"amount_total"`

	SequenceNumber sql.NullInt64  `db:"sequence_number"`
	LastTxAction   sql.NullString `db:"last_tx_action"`

	SubstituteFor sql.NullString `db:"substitute_for"`
	SubstitutedBy sql.NullString `db:"substituted_by"`

	CreatedAt time.Time `db:"created_at"`
}

func toModel(obj *order.Record) (*model, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	return &model{
		OrderRef: obj.OrderRef,
		TxId:     obj.TxId,
		Status:   uint8(obj.Status),

		IsInteractive: obj.Interactive,

		CustomerId:  obj.CustomerId,
		Currency:    obj.Currency,
		AmountTotal: obj.AmountTotal,

		SequenceNumber: sql.NullInt64{
			Valid: obj.SequenceNumber != nil,
			Int64: int64(pointer.ValueOrDefault(obj.SequenceNumber, 0)),
		},
		LastTxAction: toNullString(obj.LastTxAction),

		SubstituteFor: toNullString(obj.SubstituteFor),
		SubstitutedBy: toNullString(obj.SubstitutedBy),

		CreatedAt: obj.CreatedAt,
	}, nil
}

func fromModel(obj *model) *order.Record {
	return &order.Record{
		Id: uint64(obj.Id.Int64),

		OrderRef: obj.OrderRef,
		TxId:     obj.TxId,
		Status:   order.Status(obj.Status),

		Interactive: obj.IsInteractive,

		CustomerId:  obj.CustomerId,
		Currency:    obj.Currency,
		AmountTotal: obj.AmountTotal,

		SequenceNumber: pointer.IfValid(obj.SequenceNumber.Valid, uint64(obj.SequenceNumber.Int64)),
		LastTxAction:   pointer.StringIfValid(obj.LastTxAction.Valid, obj.LastTxAction.String),

		SubstituteFor: pointer.StringIfValid(obj.SubstituteFor.Valid, obj.SubstituteFor.String),
		SubstitutedBy: pointer.StringIfValid(obj.SubstitutedBy.Valid, obj.SubstitutedBy.String),

		CreatedAt: obj.CreatedAt,
	}
}

func (m *model) dbPut(ctx context.Context, db *sqlx.DB) error {
	err := pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `INSERT INTO ` + tableName + `
			(order_ref, tx_id, status, is_interactive, customer_id, currency, amount_total, sequence_number, last_tx_action, substitute_for, substituted_by, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING ` + allColumns

		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now()
		}

		return tx.QueryRowxContext(
			ctx,
			query,
			m.OrderRef,
			m.TxId,
			m.Status,
			m.IsInteractive,
			m.CustomerId,
			m.Currency,
			m.AmountTotal,
			m.SequenceNumber,
			m.LastTxAction,
			m.SubstituteFor,
			m.SubstitutedBy,
			m.CreatedAt,
		).StructScan(m)
	})
	return pgutil.CheckUniqueViolation(err, order.ErrAlreadyExists)
}

func (m *model) dbUpdate(ctx context.Context, db *sqlx.DB) error {
	err := pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `UPDATE ` + tableName + `
			SET status = $2, sequence_number = $3, last_tx_action = $4, substituted_by = $5
			WHERE order_ref = $1
			RETURNING ` + allColumns

		return tx.QueryRowxContext(
			ctx,
			query,
			m.OrderRef,
			m.Status,
			m.SequenceNumber,
			m.LastTxAction,
			m.SubstitutedBy,
		).StructScan(m)
	})
	return pgutil.CheckNoRows(err, order.ErrNotFound)
}

func dbGetByOrderRef(ctx context.Context, db *sqlx.DB, orderRef string) (*model, error) {
	res := &model{}

	err := pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `SELECT ` + allColumns + ` FROM ` + tableName + `
			WHERE order_ref = $1
		`

		return tx.GetContext(ctx, res, query, orderRef)
	})
	if err != nil {
		return nil, pgutil.CheckNoRows(err, order.ErrNotFound)
	}
	return res, nil
}

func dbGetLatestByTxId(ctx context.Context, db *sqlx.DB, txId string) (*model, error) {
	res := &model{}

	err := pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `SELECT ` + allColumns + ` FROM ` + tableName + `
			WHERE tx_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		`

		return tx.GetContext(ctx, res, query, txId)
	})
	if err != nil {
		return nil, pgutil.CheckNoRows(err, order.ErrNotFound)
	}
	return res, nil
}

func dbGetAllByTxId(ctx context.Context, db *sqlx.DB, txId string) ([]*model, error) {
	res := []*model{}

	query := `SELECT ` + allColumns + ` FROM ` + tableName + `
		WHERE tx_id = $1
		ORDER BY created_at ASC, id ASC
	`

	err := db.SelectContext(ctx, &res, query, txId)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, order.ErrNotFound)
	} else if len(res) == 0 {
		return nil, order.ErrNotFound
	}
	return res, nil
}

func toNullString(value *string) sql.NullString {
	return sql.NullString{
		Valid:  value != nil,
		String: pointer.ValueOrDefault(value, ""),
	}
}
