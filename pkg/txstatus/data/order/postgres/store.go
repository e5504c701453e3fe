package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/code-payments/txstatus-server/pkg/txstatus/data/order"
)

type store struct {
	db *sqlx.DB
}

// New returns a new postgres-backed order.Store
func New(db *sql.DB) order.Store {
	return &store{
		db: sqlx.NewDb(db, "pgx"),
	}
}

// Put implements order.Store.Put
func (s *store) Put(ctx context.Context, record *order.Record) error {
	obj, err := toModel(record)
	if err != nil {
		return err
	}

	err = obj.dbPut(ctx, s.db)
	if err != nil {
		return err
	}

	res := fromModel(obj)
	res.CopyTo(record)

	return nil
}

// Update implements order.Store.Update
func (s *store) Update(ctx context.Context, record *order.Record) error {
	obj, err := toModel(record)
	if err != nil {
		return err
	}

	err = obj.dbUpdate(ctx, s.db)
	if err != nil {
		return err
	}

	res := fromModel(obj)
	res.CopyTo(record)

	return nil
}

// Get implements order.Store.Get
func (s *store) Get(ctx context.Context, orderRef string) (*order.Record, error) {
	model, err := dbGetByOrderRef(ctx, s.db, orderRef)
	if err != nil {
		return nil, err
	}

	return fromModel(model), nil
}

// GetByTxId implements order.Store.GetByTxId
func (s *store) GetByTxId(ctx context.Context, txId string) (*order.Record, error) {
	model, err := dbGetLatestByTxId(ctx, s.db, txId)
	if err != nil {
		return nil, err
	}

	return fromModel(model), nil
}

// GetAllByTxId implements order.Store.GetAllByTxId
func (s *store) GetAllByTxId(ctx context.Context, txId string) ([]*order.Record, error) {
	models, err := dbGetAllByTxId(ctx, s.db, txId)
	if err != nil {
		return nil, err
	}

	res := make([]*order.Record, len(models))
	for i, model := range models {
		res[i] = fromModel(model)
	}
	return res, nil
}
