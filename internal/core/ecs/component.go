package ecs

import "sort"

// Removable is implemented by anything that keeps per-entity data, so the
// Registry can drop an entity from every owner in one pass.
type Removable interface {
	Remove(id EntityID)
}

// PtrComponentStore is a generic typed map store for per-entity records.
// Records are held by pointer so callers mutate them in place.
// Not synchronized; owners guard it with their own lock.
type PtrComponentStore[T any] struct {
	data map[EntityID]*T
}

func NewPtrComponentStore[T any]() *PtrComponentStore[T] {
	return &PtrComponentStore[T]{
		data: make(map[EntityID]*T, 256),
	}
}

func (s *PtrComponentStore[T]) Set(id EntityID, c *T) {
	s.data[id] = c
}

func (s *PtrComponentStore[T]) Get(id EntityID) (*T, bool) {
	c, ok := s.data[id]
	return c, ok
}

// Remove deletes the record and returns it (nil if absent).
func (s *PtrComponentStore[T]) Remove(id EntityID) *T {
	c := s.data[id]
	delete(s.data, id)
	return c
}

func (s *PtrComponentStore[T]) Has(id EntityID) bool {
	_, ok := s.data[id]
	return ok
}

func (s *PtrComponentStore[T]) Len() int {
	return len(s.data)
}

// IDs returns all ids in ascending order.
func (s *PtrComponentStore[T]) IDs() []EntityID {
	ids := make([]EntityID, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Each visits records in ascending id order.
func (s *PtrComponentStore[T]) Each(fn func(EntityID, *T)) {
	for _, id := range s.IDs() {
		fn(id, s.data[id])
	}
}
