// Package memstore is an in-memory order store for tests and local runs
// without a database.
package memstore

import (
	"context"
	"sync"

	"github.com/iurnickita/cardverify/internal/model"
	"github.com/iurnickita/cardverify/internal/store"
)

// MemStore keeps sale records in insertion order.
type MemStore struct {
	mu    sync.RWMutex
	sales []model.SaleRecord
	err   error
}

var _ store.Store = (*MemStore)(nil)

func NewMemStore(sales ...model.SaleRecord) *MemStore {
	return &MemStore{sales: append([]model.SaleRecord(nil), sales...)}
}

// WithError makes every subsequent call fail with err.
func (m *MemStore) WithError(err error) *MemStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// Put adds a sale the way the fulfillment system would.
func (m *MemStore) Put(sale model.SaleRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sales = append(m.sales, sale)
}

func (m *MemStore) SaleGetEligible(ctx context.Context, cardKey string, statuses []string) (model.SaleRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.err != nil {
		return model.SaleRecord{}, m.err
	}
	if err := ctx.Err(); err != nil {
		return model.SaleRecord{}, err
	}

	for _, sale := range m.sales {
		if sale.Data.CardKey != cardKey {
			continue
		}
		for _, status := range statuses {
			if sale.Data.Status == status {
				return sale, nil
			}
		}
	}
	return model.SaleRecord{}, store.ErrNoRows
}

func (m *MemStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.err
}

func (m *MemStore) Close() error {
	return nil
}
