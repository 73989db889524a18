package repository

import (
	"context"
	"sync"
	"time"

	m "wisefido-threshold/internal/models"
)

// MemoryContextRepo 数据库未启用时的患者上下文存储（进程内，重启丢失）
type MemoryContextRepo struct {
	mu       sync.RWMutex
	contexts map[string]m.PatientContext
}

func NewMemoryContextRepo() *MemoryContextRepo {
	return &MemoryContextRepo{
		contexts: map[string]m.PatientContext{},
	}
}

func (r *MemoryContextRepo) GetContext(_ context.Context, patientID string) (*m.PatientContext, error) {
	if patientID == "" {
		return nil, m.ErrPatientRequired
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	pc, ok := r.contexts[patientID]
	if !ok {
		return m.EmptyContext(patientID), nil
	}
	return &pc, nil
}

func (r *MemoryContextRepo) SetContext(_ context.Context, pc *m.PatientContext) error {
	if pc == nil || pc.PatientID == "" {
		return m.ErrPatientRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	next := *pc
	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = time.Now().UTC()
	}
	if next.BedNumber == nil {
		if prev, ok := r.contexts[pc.PatientID]; ok {
			next.BedNumber = prev.BedNumber
		}
	}
	r.contexts[pc.PatientID] = next
	return nil
}
