package repository

import (
	"context"
	"sort"
	"sync"

	"tablebook/internal/models"
)

// MemoryPendingRegistry хранит ожидающие check-in записи в памяти процесса.
// Authoritative store when redis is unavailable or disabled.
type MemoryPendingRegistry struct {
	entries sync.Map // table number -> *models.PendingCheckin
}

func NewMemoryPendingRegistry() *MemoryPendingRegistry {
	return &MemoryPendingRegistry{}
}

func (r *MemoryPendingRegistry) Put(ctx context.Context, pending *models.PendingCheckin) error {
	r.entries.Store(pending.TableNumber, pending)
	return nil
}

func (r *MemoryPendingRegistry) Get(ctx context.Context, tableNumber int64) (*models.PendingCheckin, error) {
	val, ok := r.entries.Load(tableNumber)
	if !ok {
		return nil, nil
	}
	return val.(*models.PendingCheckin), nil
}

func (r *MemoryPendingRegistry) Delete(ctx context.Context, tableNumber int64) error {
	r.entries.Delete(tableNumber)
	return nil
}

func (r *MemoryPendingRegistry) List(ctx context.Context) ([]*models.PendingCheckin, error) {
	var pendings []*models.PendingCheckin
	r.entries.Range(func(_, val interface{}) bool {
		pendings = append(pendings, val.(*models.PendingCheckin))
		return true
	})
	sort.Slice(pendings, func(i, j int) bool {
		return pendings[i].TableNumber < pendings[j].TableNumber
	})
	return pendings, nil
}
