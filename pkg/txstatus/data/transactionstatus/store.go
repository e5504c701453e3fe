package transactionstatus

import (
	"context"

	"github.com/pkg/errors"
)

var (
	ErrNotFound = errors.New("transaction status record not found")
)

// Store is an append-only log of provider callbacks.
type Store interface {
	// Put appends a transaction status record
	Put(ctx context.Context, record *Record) error

	// GetAllByTxId gets all transaction status records for a provider
	// transaction ID, in the order they were received
	//
	// Returns ErrNotFound if no records are found.
	GetAllByTxId(ctx context.Context, txId string) ([]*Record, error)

	// CountByOrder counts the transaction status records attributed to an order
	CountByOrder(ctx context.Context, orderRef string) (uint64, error)
}
