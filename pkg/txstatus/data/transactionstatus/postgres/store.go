package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/code-payments/txstatus-server/pkg/txstatus/data/transactionstatus"
)

type store struct {
	db *sqlx.DB
}

// New returns a new postgres-backed transactionstatus.Store
func New(db *sql.DB) transactionstatus.Store {
	return &store{
		db: sqlx.NewDb(db, "pgx"),
	}
}

// Put implements transactionstatus.Store.Put
func (s *store) Put(ctx context.Context, record *transactionstatus.Record) error {
	obj, err := toModel(record)
	if err != nil {
		return err
	}

	err = obj.dbPut(ctx, s.db)
	if err != nil {
		return err
	}

	res, err := fromModel(obj)
	if err != nil {
		return err
	}
	res.CopyTo(record)

	return nil
}

// GetAllByTxId implements transactionstatus.Store.GetAllByTxId
func (s *store) GetAllByTxId(ctx context.Context, txId string) ([]*transactionstatus.Record, error) {
	models, err := dbGetAllByTxId(ctx, s.db, txId)
	if err != nil {
		return nil, err
	}

	res := make([]*transactionstatus.Record, len(models))
	for i, model := range models {
		res[i], err = fromModel(model)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

// CountByOrder implements transactionstatus.Store.CountByOrder
func (s *store) CountByOrder(ctx context.Context, orderRef string) (uint64, error) {
	return dbCountByOrder(ctx, s.db, orderRef)
}
