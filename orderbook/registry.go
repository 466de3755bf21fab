package orderbook

import (
	"sort"
	"sync"

	"github.com/samber/lo"
)

// Registry maps product ids to their books. Books are created on first
// access and never removed.
type Registry struct {
	mu    sync.RWMutex
	books map[string]*OrderBook
}

func NewRegistry() *Registry {
	return &Registry{books: make(map[string]*OrderBook)}
}

func (r *Registry) GetOrCreate(productID string) *OrderBook {
	r.mu.RLock()
	book, ok := r.books[productID]
	r.mu.RUnlock()
	if ok {
		return book
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if book, ok = r.books[productID]; ok {
		return book
	}
	book = New(productID)
	r.books[productID] = book
	return book
}

// Get returns the book of productID without creating it.
func (r *Registry) Get(productID string) (Repo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	book, ok := r.books[productID]
	if !ok {
		return nil, false
	}
	return book, true
}

// Dispatch routes m to the book of its product, creating the book if needed.
func (r *Registry) Dispatch(m Message) bool {
	if m.Product() == "" {
		return false
	}
	return r.GetOrCreate(m.Product()).Route(m)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.books)
}

func (r *Registry) ProductIDs() []string {
	r.mu.RLock()
	ids := lo.Keys(r.books)
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}
