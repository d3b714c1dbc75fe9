package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"ideamint/pkg/domain"
)

// MemoryStore keeps all rows in-process. It backs tests and local runs
// without Postgres. The mutex is the serialization point for version
// assignment, mirroring the unique-constraint guarantee of GormStore.
type MemoryStore struct {
	mu        sync.RWMutex
	drafts    map[string]domain.Draft
	products  map[string]domain.Product
	mints     map[string]domain.MintRequest
	purchases map[string]domain.Purchase
	order     []string // purchase insertion order
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		drafts:    make(map[string]domain.Draft),
		products:  make(map[string]domain.Product),
		mints:     make(map[string]domain.MintRequest),
		purchases: make(map[string]domain.Purchase),
	}
}

// SaveDraft assigns max(version)+1 for the owner under the lock and inserts.
func (m *MemoryStore) SaveDraft(d domain.Draft) (domain.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	max := 0
	for _, existing := range m.drafts {
		if existing.OwnerID == d.OwnerID && existing.Version > max {
			max = existing.Version
		}
	}
	d.Version = max + 1
	m.drafts[d.ID] = d
	return d, nil
}

// ListDrafts returns an owner's drafts ordered by version descending.
func (m *MemoryStore) ListDrafts(ownerID string) ([]domain.Draft, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Draft, 0)
	for _, d := range m.drafts {
		if d.OwnerID == ownerID {
			res = append(res, d)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Version > res[j].Version })
	return res, nil
}

// GetDraft retrieves a draft by ID.
func (m *MemoryStore) GetDraft(id string) (domain.Draft, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drafts[id]
	return d, ok, nil
}

// DeleteDraft removes one draft by ID.
func (m *MemoryStore) DeleteDraft(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.drafts[id]; !ok {
		return ErrNotFound
	}
	delete(m.drafts, id)
	return nil
}

// SaveProduct stores or replaces a product.
func (m *MemoryStore) SaveProduct(p domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
	return nil
}

// GetProduct retrieves a product by ID.
func (m *MemoryStore) GetProduct(id string) (domain.Product, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	return p, ok, nil
}

// ListProductsByOwner returns a creator's products, newest first.
func (m *MemoryStore) ListProductsByOwner(ownerID string) ([]domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Product, 0)
	for _, p := range m.products {
		if p.OwnerID == ownerID {
			res = append(res, p)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

// DeactivateProduct withdraws a product from sale.
func (m *MemoryStore) DeactivateProduct(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return ErrNotFound
	}
	p.IsActive = false
	p.UpdatedAt = time.Now().UTC()
	m.products[id] = p
	return nil
}

// ActiveTitleMatches finds active products whose title equals or starts with
// the candidate, case-insensitively.
func (m *MemoryStore) ActiveTitleMatches(candidate string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	prefix := strings.ToLower(strings.TrimSpace(candidate))
	var titles []string
	for _, p := range m.products {
		if p.IsActive && strings.HasPrefix(strings.ToLower(p.Title), prefix) {
			titles = append(titles, p.Title)
		}
	}
	return titles, nil
}

// CreateMintRequest inserts a new request.
func (m *MemoryStore) CreateMintRequest(r domain.MintRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mints[r.ID] = r
	return nil
}

// GetMintRequest retrieves a mint request by ID.
func (m *MemoryStore) GetMintRequest(id string) (domain.MintRequest, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.mints[id]
	return r, ok, nil
}

// ListMintRequestsByOwner returns an owner's mint requests, newest first.
func (m *MemoryStore) ListMintRequestsByOwner(ownerID string) ([]domain.MintRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.MintRequest, 0)
	for _, r := range m.mints {
		if r.OwnerID == ownerID {
			res = append(res, r)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

// CountPendingMintRequests counts pending requests for a product.
func (m *MemoryStore) CountPendingMintRequests(productID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, r := range m.mints {
		if r.ProductID == productID && r.Status == domain.MintPending {
			count++
		}
	}
	return count, nil
}

// CompleteMintRequest transitions a pending request to a terminal status.
func (m *MemoryStore) CompleteMintRequest(id string, status domain.MintStatus, txnHash, metadataURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.mints[id]
	if !ok {
		return ErrNotFound
	}
	if r.Status != domain.MintPending {
		return ErrConflict
	}
	r.Status = status
	r.TxnHash = txnHash
	r.MetadataURL = metadataURL
	r.UpdatedAt = time.Now().UTC()
	m.mints[id] = r
	return nil
}

// CreatePurchase inserts a purchase row.
func (m *MemoryStore) CreatePurchase(p domain.Purchase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purchases[p.ID] = p
	m.order = append(m.order, p.ID)
	return nil
}

// ListPurchasesByBuyer returns a buyer's purchases, newest first.
func (m *MemoryStore) ListPurchasesByBuyer(buyerID string) ([]domain.Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Purchase, 0)
	for i := len(m.order) - 1; i >= 0; i-- {
		if p, ok := m.purchases[m.order[i]]; ok && p.BuyerID == buyerID {
			res = append(res, p)
		}
	}
	return res, nil
}
