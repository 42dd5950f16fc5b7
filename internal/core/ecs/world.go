package ecs

import "sync"

// World owns the entity pool, the owner registry, and a deferred destruction
// queue flushed by CleanupSystem each tick. Create and MarkForDestruction
// may be called from connection goroutines.
type World struct {
	mu           sync.Mutex
	pool         *EntityPool
	registry     *Registry
	destroyQueue []EntityID
}

func NewWorld() *World {
	return &World{
		pool:         NewEntityPool(),
		registry:     NewRegistry(),
		destroyQueue: make([]EntityID, 0, 64),
	}
}

func (w *World) Registry() *Registry { return w.registry }

func (w *World) CreateEntity() EntityID {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pool.Create()
}

func (w *World) Alive(id EntityID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pool.Alive(id)
}

// MarkForDestruction queues an entity for end-of-tick cleanup.
// Queuing the same id twice is harmless.
func (w *World) MarkForDestruction(id EntityID) {
	w.mu.Lock()
	w.destroyQueue = append(w.destroyQueue, id)
	w.mu.Unlock()
}

// FlushDestroyQueue removes every queued entity from all registered owners
// and retires its id. Returns the ids actually destroyed.
func (w *World) FlushDestroyQueue() []EntityID {
	w.mu.Lock()
	queued := w.destroyQueue
	w.destroyQueue = make([]EntityID, 0, cap(queued))
	w.mu.Unlock()

	var destroyed []EntityID
	for _, id := range queued {
		w.mu.Lock()
		ok := w.pool.Destroy(id)
		w.mu.Unlock()
		if !ok {
			continue
		}
		// Owners may take their own locks; never hold w.mu here.
		w.registry.RemoveAll(id)
		destroyed = append(destroyed, id)
	}
	return destroyed
}
