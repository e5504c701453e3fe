package data

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	pg "github.com/code-payments/txstatus-server/pkg/database/postgres"
	"github.com/code-payments/txstatus-server/pkg/pointer"
	"github.com/code-payments/txstatus-server/pkg/txstatus/data/order"
	"github.com/code-payments/txstatus-server/pkg/txstatus/data/transactionstatus"

	order_memory_client "github.com/code-payments/txstatus-server/pkg/txstatus/data/order/memory"
	order_postgres_client "github.com/code-payments/txstatus-server/pkg/txstatus/data/order/postgres"
	transactionstatus_memory_client "github.com/code-payments/txstatus-server/pkg/txstatus/data/transactionstatus/memory"
	transactionstatus_postgres_client "github.com/code-payments/txstatus-server/pkg/txstatus/data/transactionstatus/postgres"
)

var (
	ErrOrderNotCanceled = errors.New("order is not canceled")
)

type Provider interface {
	// Orders
	// --------------------------------------------------------------------------------
	CreateOrder(ctx context.Context, record *order.Record) error
	UpdateOrder(ctx context.Context, record *order.Record) error
	GetOrder(ctx context.Context, orderRef string) (*order.Record, error)
	GetOrderByTxId(ctx context.Context, txId string) (*order.Record, error)
	GetAllOrdersByTxId(ctx context.Context, txId string) ([]*order.Record, error)

	// CreateSubstituteOrder creates a new order cloned from a canceled one. The
	// canceled order is never modified other than to reference its substitute.
	//
	// Returns order.ErrAlreadySubstituted if a substitute already exists, and
	// ErrOrderNotCanceled if the order isn't canceled.
	CreateSubstituteOrder(ctx context.Context, canceled *order.Record, interactive bool) (*order.Record, error)

	// Transaction Status
	// --------------------------------------------------------------------------------
	SaveTransactionStatus(ctx context.Context, record *transactionstatus.Record) error
	GetAllTransactionStatusesByTxId(ctx context.Context, txId string) ([]*transactionstatus.Record, error)
	CountTransactionStatusesByOrder(ctx context.Context, orderRef string) (uint64, error)

	// ExecuteInTx executes fn with a single DB transaction that is scoped to the call.
	// This enables more complex transactions that can span many calls across the provider.
	ExecuteInTx(ctx context.Context, isolation sql.IsolationLevel, fn func(ctx context.Context) error) error
}

type DatabaseProvider struct {
	orders              order.Store
	transactionStatuses transactionstatus.Store

	db *sqlx.DB
}

func NewDatabaseProvider(dbConfig *pg.Config) (Provider, error) {
	db, err := pg.New(dbConfig)
	if err != nil {
		return nil, err
	}

	db.SetConnMaxIdleTime(time.Hour)
	db.SetConnMaxLifetime(time.Hour)

	return NewDatabaseProviderFromDB(db), nil
}

func NewDatabaseProviderFromDB(db *sql.DB) Provider {
	return &DatabaseProvider{
		orders:              order_postgres_client.New(db),
		transactionStatuses: transactionstatus_postgres_client.New(db),

		db: sqlx.NewDb(db, "pgx"),
	}
}

func NewTestDatabaseProvider() Provider {
	return &DatabaseProvider{
		orders:              order_memory_client.New(),
		transactionStatuses: transactionstatus_memory_client.New(),
	}
}

func (dp *DatabaseProvider) ExecuteInTx(ctx context.Context, isolation sql.IsolationLevel, fn func(ctx context.Context) error) error {
	if dp.db == nil {
		return fn(ctx)
	}

	return pg.ExecuteTxWithinCtx(ctx, dp.db, isolation, fn)
}

// Orders
// --------------------------------------------------------------------------------
func (dp *DatabaseProvider) CreateOrder(ctx context.Context, record *order.Record) error {
	return dp.orders.Put(ctx, record)
}
func (dp *DatabaseProvider) UpdateOrder(ctx context.Context, record *order.Record) error {
	return dp.orders.Update(ctx, record)
}
func (dp *DatabaseProvider) GetOrder(ctx context.Context, orderRef string) (*order.Record, error) {
	return dp.orders.Get(ctx, orderRef)
}
func (dp *DatabaseProvider) GetOrderByTxId(ctx context.Context, txId string) (*order.Record, error) {
	return dp.orders.GetByTxId(ctx, txId)
}
func (dp *DatabaseProvider) GetAllOrdersByTxId(ctx context.Context, txId string) ([]*order.Record, error) {
	return dp.orders.GetAllByTxId(ctx, txId)
}
func (dp *DatabaseProvider) CreateSubstituteOrder(ctx context.Context, canceled *order.Record, interactive bool) (*order.Record, error) {
	var substitute *order.Record
	err := dp.ExecuteInTx(ctx, sql.LevelDefault, func(ctx context.Context) error {
		latest, err := dp.orders.Get(ctx, canceled.OrderRef)
		if err != nil {
			return err
		}

		if !latest.IsCanceled() {
			return ErrOrderNotCanceled
		}

		if latest.SubstitutedBy != nil {
			return order.ErrAlreadySubstituted
		}

		cloned := latest.Clone()
		cloned.Id = 0
		cloned.OrderRef = uuid.NewString()
		cloned.Status = order.StatusPending
		cloned.Interactive = interactive
		cloned.SequenceNumber = nil
		cloned.LastTxAction = nil
		cloned.SubstituteFor = pointer.String(latest.OrderRef)
		cloned.SubstitutedBy = nil
		cloned.CreatedAt = time.Time{}

		err = dp.orders.Put(ctx, &cloned)
		if err == order.ErrAlreadyExists {
			// Lost a race with another substitution for the same order
			return order.ErrAlreadySubstituted
		} else if err != nil {
			return err
		}

		latest.SubstitutedBy = pointer.String(cloned.OrderRef)
		if err := dp.orders.Update(ctx, latest); err != nil {
			return err
		}

		substitute = &cloned
		return nil
	})
	if err != nil {
		return nil, err
	}
	return substitute, nil
}

// Transaction Status
// --------------------------------------------------------------------------------
func (dp *DatabaseProvider) SaveTransactionStatus(ctx context.Context, record *transactionstatus.Record) error {
	return dp.transactionStatuses.Put(ctx, record)
}
func (dp *DatabaseProvider) GetAllTransactionStatusesByTxId(ctx context.Context, txId string) ([]*transactionstatus.Record, error) {
	return dp.transactionStatuses.GetAllByTxId(ctx, txId)
}
func (dp *DatabaseProvider) CountTransactionStatusesByOrder(ctx context.Context, orderRef string) (uint64, error) {
	return dp.transactionStatuses.CountByOrder(ctx, orderRef)
}
