package order

import (
	"context"

	"github.com/pkg/errors"
)

var (
	ErrNotFound           = errors.New("order record not found")
	ErrAlreadyExists      = errors.New("order record already exists")
	ErrAlreadySubstituted = errors.New("order has already been substituted")
)

type Store interface {
	// Put creates an order record
	//
	// Returns ErrAlreadyExists if a record with the same order reference exists.
	Put(ctx context.Context, record *Record) error

	// Update updates the mutable state of an order record, which is its status,
	// the last applied notification and the substitute reference.
	//
	// Returns ErrNotFound if no record exists.
	Update(ctx context.Context, record *Record) error

	// Get gets an order record by its order reference
	//
	// Returns ErrNotFound if no record is found.
	Get(ctx context.Context, orderRef string) (*Record, error)

	// GetByTxId gets the most recently created order record for a provider
	// transaction ID
	//
	// Returns ErrNotFound if no record is found.
	GetByTxId(ctx context.Context, txId string) (*Record, error)

	// GetAllByTxId gets all order records for a provider transaction ID, in
	// creation order
	//
	// Returns ErrNotFound if no records are found.
	GetAllByTxId(ctx context.Context, txId string) ([]*Record, error)
}
