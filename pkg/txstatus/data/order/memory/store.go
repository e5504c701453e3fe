package memory

import (
	"context"
	"sync"
	"time"

	"github.com/code-payments/txstatus-server/pkg/pointer"
	"github.com/code-payments/txstatus-server/pkg/txstatus/data/order"
)

type store struct {
	mu      sync.Mutex
	last    uint64
	records []*order.Record
}

// New returns a new in memory order.Store
func New() order.Store {
	return &store{}
}

// Put implements order.Store.Put
func (s *store) Put(_ context.Context, data *order.Record) error {
	if err := data.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if item := s.findByOrderRef(data.OrderRef); item != nil {
		return order.ErrAlreadyExists
	}
	if data.SubstituteFor != nil && s.findBySubstituteFor(*data.SubstituteFor) != nil {
		return order.ErrAlreadyExists
	}

	s.last++
	data.Id = s.last
	if data.CreatedAt.IsZero() {
		data.CreatedAt = time.Now()
	}

	cloned := data.Clone()
	s.records = append(s.records, &cloned)

	return nil
}

// Update implements order.Store.Update
func (s *store) Update(_ context.Context, data *order.Record) error {
	if err := data.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.findByOrderRef(data.OrderRef)
	if item == nil {
		return order.ErrNotFound
	}

	item.Status = data.Status
	item.SequenceNumber = pointer.Copy(data.SequenceNumber)
	item.LastTxAction = pointer.StringCopy(data.LastTxAction)
	item.SubstitutedBy = pointer.StringCopy(data.SubstitutedBy)

	item.CopyTo(data)

	return nil
}

// Get implements order.Store.Get
func (s *store) Get(_ context.Context, orderRef string) (*order.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.findByOrderRef(orderRef)
	if item == nil {
		return nil, order.ErrNotFound
	}

	cloned := item.Clone()
	return &cloned, nil
}

// GetByTxId implements order.Store.GetByTxId
func (s *store) GetByTxId(_ context.Context, txId string) (*order.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.findByTxId(txId)
	if len(items) == 0 {
		return nil, order.ErrNotFound
	}

	latest := items[0]
	for _, item := range items[1:] {
		if isNewer(item, latest) {
			latest = item
		}
	}

	cloned := latest.Clone()
	return &cloned, nil
}

// GetAllByTxId implements order.Store.GetAllByTxId
func (s *store) GetAllByTxId(_ context.Context, txId string) ([]*order.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.findByTxId(txId)
	if len(items) == 0 {
		return nil, order.ErrNotFound
	}
	return cloneSlice(items), nil
}

func (s *store) findByOrderRef(orderRef string) *order.Record {
	for _, item := range s.records {
		if item.OrderRef == orderRef {
			return item
		}
	}

	return nil
}

func (s *store) findBySubstituteFor(orderRef string) *order.Record {
	for _, item := range s.records {
		if item.SubstituteFor != nil && *item.SubstituteFor == orderRef {
			return item
		}
	}

	return nil
}

func (s *store) findByTxId(txId string) []*order.Record {
	var res []*order.Record

	for _, item := range s.records {
		if item.TxId == txId {
			res = append(res, item)
		}
	}

	return res
}

func (s *store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = 0
	s.records = nil
}

func isNewer(a, b *order.Record) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.Id > b.Id
}

func cloneSlice(items []*order.Record) []*order.Record {
	var res []*order.Record
	for _, item := range items {
		cloned := item.Clone()
		res = append(res, &cloned)
	}
	return res
}
