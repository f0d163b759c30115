package ui

// Retained returns the number of recorded sites without pruning them.
func (r *Refreshable[A]) Retained() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sites)
}
