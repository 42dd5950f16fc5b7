package ecs

// Registry tracks every per-entity owner for bulk cleanup on destroy.
type Registry struct {
	owners []Removable
}

func NewRegistry() *Registry {
	return &Registry{
		owners: make([]Removable, 0, 8),
	}
}

// Register adds owners; RemoveAll visits them in registration order.
func (r *Registry) Register(owners ...Removable) {
	r.owners = append(r.owners, owners...)
}

// RemoveAll clears the given entity from every registered owner.
func (r *Registry) RemoveAll(id EntityID) {
	for _, o := range r.owners {
		o.Remove(id)
	}
}

func (r *Registry) Len() int { return len(r.owners) }
