package products

import (
	"context"
	"slices"
	"sync"
)

// MemStore keeps products in process memory. Ids come from a counter
// and are never handed out twice, even after a delete.
type MemStore struct {
	mu     sync.RWMutex
	m      map[int64]Product
	order  []int64
	nextID int64
}

func NewMemStore(seed ...NewProduct) *MemStore {
	s := &MemStore{
		m:      make(map[int64]Product, len(seed)),
		nextID: 1,
	}
	for _, in := range seed {
		s.insert(in)
	}
	return s
}

func NewStore() Store {
	return NewMemStore(DefaultSeed()...)
}

func (s *MemStore) Ping(ctx context.Context) error { return nil }

func (s *MemStore) List(ctx context.Context) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Product, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, clone(s.m[id]))
	}
	return out, nil
}

func (s *MemStore) Get(ctx context.Context, id int64) (Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.m[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return clone(p), nil
}

func (s *MemStore) Create(ctx context.Context, in NewProduct) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return clone(s.insert(in)), nil
}

func (s *MemStore) Update(ctx context.Context, id int64, patch Patch) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.m[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	patch.apply(&p)
	s.m[id] = p
	return clone(p), nil
}

func (s *MemStore) Remove(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.m[id]; !ok {
		return ErrNotFound
	}
	delete(s.m, id)
	if i := slices.Index(s.order, id); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
	return nil
}

// insert requires s.mu held for writing.
func (s *MemStore) insert(in NewProduct) Product {
	p := Product{ID: s.nextID, Name: in.Name}
	if in.Price != nil {
		p.Price = ptr(*in.Price)
	}
	if in.Description != nil {
		p.Description = ptr(*in.Description)
	}
	s.nextID++

	s.m[p.ID] = p
	s.order = append(s.order, p.ID)
	return p
}
