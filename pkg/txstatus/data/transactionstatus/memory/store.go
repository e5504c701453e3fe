package memory

import (
	"context"
	"sync"
	"time"

	"github.com/code-payments/txstatus-server/pkg/txstatus/data/transactionstatus"
)

type store struct {
	mu      sync.Mutex
	last    uint64
	records []*transactionstatus.Record
}

// New returns a new in memory transactionstatus.Store
func New() transactionstatus.Store {
	return &store{}
}

// Put implements transactionstatus.Store.Put
func (s *store) Put(_ context.Context, data *transactionstatus.Record) error {
	if err := data.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.last++
	data.Id = s.last
	if data.CreatedAt.IsZero() {
		data.CreatedAt = time.Now()
	}

	cloned := data.Clone()
	s.records = append(s.records, &cloned)

	return nil
}

// GetAllByTxId implements transactionstatus.Store.GetAllByTxId
func (s *store) GetAllByTxId(_ context.Context, txId string) ([]*transactionstatus.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res []*transactionstatus.Record
	for _, item := range s.records {
		if item.TxId == txId {
			cloned := item.Clone()
			res = append(res, &cloned)
		}
	}

	if len(res) == 0 {
		return nil, transactionstatus.ErrNotFound
	}
	return res, nil
}

// CountByOrder implements transactionstatus.Store.CountByOrder
func (s *store) CountByOrder(_ context.Context, orderRef string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count uint64
	for _, item := range s.records {
		if item.OrderRef != nil && *item.OrderRef == orderRef {
			count++
		}
	}
	return count, nil
}

func (s *store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = 0
	s.records = nil
}
