package account

import (
	"fmt"
	"sort"
	"sync"

	"papertrade/internal/cost"
)

// Registry holds all simulated accounts, keyed by account ID. It replaces
// any notion of a global default account: callers construct one registry
// and pass it by reference, so tests can run independent account sets.
type Registry struct {
	mu       sync.RWMutex
	accounts map[string]*Account
	calc     *cost.Calculator
}

// NewRegistry creates an empty Registry whose accounts share the given fee
// calculator.
func NewRegistry(calc *cost.Calculator) *Registry {
	return &Registry{
		accounts: make(map[string]*Account),
		calc:     calc,
	}
}

// Create adds a new account. It fails if the ID is already taken or the
// starting balance is not positive.
func (r *Registry) Create(id string, initialBalance float64) (*Account, error) {
	if initialBalance <= 0 {
		return nil, fmt.Errorf("creating account %q: initial balance must be positive", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.accounts[id]; exists {
		return nil, fmt.Errorf("creating account %q: already exists", id)
	}
	acct := New(id, initialBalance, r.calc)
	r.accounts[id] = acct
	return acct, nil
}

// Get returns the account with the given ID, or nil if unknown.
func (r *Registry) Get(id string) *Account {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.accounts[id]
}

// List returns account IDs in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.accounts))
	for id := range r.accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Remove deletes an account. Returns false if the ID is unknown.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[id]; !ok {
		return false
	}
	delete(r.accounts, id)
	return true
}
