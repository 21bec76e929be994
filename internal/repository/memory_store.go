package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/campus-marketplace/internal/model"
)

type requestKey struct {
	listingID string
	buyerID   string
}

type memState struct {
	listings map[string]model.Listing
	requests map[requestKey]model.ReservationRequest
}

func (st *memState) clone() *memState {
	out := &memState{
		listings: make(map[string]model.Listing, len(st.listings)),
		requests: make(map[requestKey]model.ReservationRequest, len(st.requests)),
	}
	for id, l := range st.listings {
		out.listings[id] = l.Clone()
	}
	for k, r := range st.requests {
		out.requests[k] = r
	}
	return out
}

// MemoryStore implements Store in process memory.  Transactions hold the
// write lock for their whole duration and work on a copy of the state that
// replaces the live state only on commit, so concurrent transactions
// serialize exactly like row-locked SQL transactions do.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memState
	now   func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: &memState{
			listings: map[string]model.Listing{},
			requests: map[requestKey]model.ReservationRequest{},
		},
		now: utcNow,
	}
}

// SetClock overrides the time source; tests use it to get distinct,
// ordered timestamps.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.state.clone()
	if err := fn(&memTx{state: work, now: m.now}); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (m *MemoryStore) CreateListing(ctx context.Context, l *model.Listing) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := prepareNewListing(l, m.now()); err != nil {
		return "", err
	}
	m.state.listings[l.ID] = l.Clone()
	return l.ID, nil
}

func (m *MemoryStore) GetListing(_ context.Context, id string) (*model.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.state.listings[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := l.Clone()
	return &out, nil
}

func (m *MemoryStore) ListByOwner(_ context.Context, sellerID string) ([]model.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.filter(func(l *model.Listing) bool { return l.SellerID == sellerID })
	sortListings(out, SortNewest)
	return out, nil
}

func (m *MemoryStore) Recent(_ context.Context, limit int, category model.Category) ([]model.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.filter(func(l *model.Listing) bool { return category == "" || l.Category == category })
	sortListings(out, SortNewest)
	if limit = ClampRecent(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) PopularTags(_ context.Context, limit int) ([]model.TagCount, error) {
	m.mu.RLock()
	counts := map[string]int{}
	for _, l := range m.state.listings {
		for _, t := range l.Tags {
			counts[t]++
		}
	}
	m.mu.RUnlock()

	out := make([]model.TagCount, 0, len(counts))
	for tag, n := range counts {
		out = append(out, model.TagCount{Tag: tag, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	if limit = ClampTags(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) Search(_ context.Context, f SearchFilter) ([]model.Listing, int64, error) {
	f = f.Normalize()
	q := strings.ToLower(f.Query)

	m.mu.RLock()
	matched := m.filter(func(l *model.Listing) bool {
		if q != "" && !strings.Contains(strings.ToLower(l.Title), q) &&
			!strings.Contains(strings.ToLower(l.Description), q) {
			return false
		}
		if f.Category != "" && l.Category != f.Category {
			return false
		}
		if f.Condition != "" && l.Condition != f.Condition {
			return false
		}
		if f.Status != "" && l.Status != f.Status {
			return false
		}
		if f.MinPrice != nil && l.Price < *f.MinPrice {
			return false
		}
		if f.MaxPrice != nil && l.Price > *f.MaxPrice {
			return false
		}
		return true
	})
	m.mu.RUnlock()

	sortListings(matched, f.Sort)
	total := int64(len(matched))
	start := f.Offset()
	if start >= len(matched) {
		return []model.Listing{}, total, nil
	}
	end := start + f.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (m *MemoryStore) RequestsByListing(_ context.Context, listingID string) ([]model.ReservationRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []model.ReservationRequest{}
	for k, r := range m.state.requests {
		if k.listingID == listingID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].RequestedAt.Before(out[j].RequestedAt)
		}
		return out[i].BuyerID < out[j].BuyerID
	})
	return out, nil
}

func (m *MemoryStore) RequestByBuyerAndListing(_ context.Context, buyerID, listingID string) (*model.ReservationRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.state.requests[requestKey{listingID, buyerID}]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *MemoryStore) RequestsByBuyer(_ context.Context, buyerID string) ([]model.BuyerRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []model.BuyerRequest{}
	for k, r := range m.state.requests {
		if k.buyerID != buyerID {
			continue
		}
		l, ok := m.state.listings[k.listingID]
		if !ok {
			continue
		}
		out = append(out, model.BuyerRequest{Request: r, Listing: l.Clone()})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Request, out[j].Request
		if !a.RequestedAt.Equal(b.RequestedAt) {
			return a.RequestedAt.After(b.RequestedAt)
		}
		return a.ListingID < b.ListingID
	})
	return out, nil
}

func (m *MemoryStore) RequestCounts(_ context.Context, listingIDs []string) (map[string]RequestCount, error) {
	want := make(map[string]struct{}, len(listingIDs))
	for _, id := range listingIDs {
		want[id] = struct{}{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]RequestCount, len(listingIDs))
	for k, r := range m.state.requests {
		if _, ok := want[k.listingID]; !ok {
			continue
		}
		c := out[k.listingID]
		c.Total++
		if r.Status == model.ReservationPending {
			c.Pending++
		}
		out[k.listingID] = c
	}
	return out, nil
}

// filter must be called with mu held.
func (m *MemoryStore) filter(keep func(*model.Listing) bool) []model.Listing {
	out := []model.Listing{}
	for _, l := range m.state.listings {
		if keep(&l) {
			out = append(out, l.Clone())
		}
	}
	return out
}

func sortListings(ls []model.Listing, order string) {
	sort.Slice(ls, func(i, j int) bool {
		a, b := ls[i], ls[j]
		switch order {
		case SortPriceAsc:
			if a.Price != b.Price {
				return a.Price < b.Price
			}
		case SortPriceDesc:
			if a.Price != b.Price {
				return a.Price > b.Price
			}
		case SortOldest:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.ID < b.ID
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// memTx mutates a private copy of the state; MemoryStore.WithinTx swaps it
// in on success.
type memTx struct {
	state *memState
	now   func() time.Time
}

func (t *memTx) LockListing(_ context.Context, id string) (*model.Listing, error) {
	l, ok := t.state.listings[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := l.Clone()
	return &out, nil
}

func (t *memTx) SetListingStatus(_ context.Context, id string, status model.ListingStatus) error {
	l, ok := t.state.listings[id]
	if !ok {
		return ErrNotFound
	}
	l.Status = status
	l.UpdatedAt = t.now()
	t.state.listings[id] = l
	return nil
}

func (t *memTx) UpdateListing(_ context.Context, l *model.Listing) error {
	cur, ok := t.state.listings[l.ID]
	if !ok {
		return ErrNotFound
	}
	if err := prepareUpdatedListing(l, t.now()); err != nil {
		return err
	}
	next := l.Clone()
	next.Status = cur.Status
	next.SellerID = cur.SellerID
	next.CreatedAt = cur.CreatedAt
	t.state.listings[l.ID] = next
	return nil
}

func (t *memTx) DeleteListing(_ context.Context, id string) error {
	if _, ok := t.state.listings[id]; !ok {
		return ErrNotFound
	}
	delete(t.state.listings, id)
	for k := range t.state.requests {
		if k.listingID == id {
			delete(t.state.requests, k)
		}
	}
	return nil
}

func (t *memTx) LockRequest(_ context.Context, listingID, buyerID string) (*model.ReservationRequest, error) {
	r, ok := t.state.requests[requestKey{listingID, buyerID}]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (t *memTx) CreateRequest(_ context.Context, listingID, buyerID string) (*model.ReservationRequest, error) {
	l, ok := t.state.listings[listingID]
	if !ok {
		return nil, ErrNotFound
	}
	if l.Status != model.ListingAvailable {
		return nil, ErrInvalidState
	}
	key := requestKey{listingID, buyerID}
	if _, dup := t.state.requests[key]; dup {
		return nil, ErrDuplicateRequest
	}
	r := model.ReservationRequest{
		ListingID:   listingID,
		BuyerID:     buyerID,
		Status:      model.ReservationPending,
		RequestedAt: t.now(),
	}
	t.state.requests[key] = r
	return &r, nil
}

func (t *memTx) ConfirmedRequest(_ context.Context, listingID string) (*model.ReservationRequest, error) {
	for k, r := range t.state.requests {
		if k.listingID == listingID && r.Status == model.ReservationConfirmed {
			return &r, nil
		}
	}
	return nil, nil
}

func (t *memTx) PromoteRequest(ctx context.Context, listingID, buyerID string) error {
	existing, _ := t.ConfirmedRequest(ctx, listingID)
	if existing != nil && existing.BuyerID != buyerID {
		return ErrConflict
	}
	key := requestKey{listingID, buyerID}
	r, ok := t.state.requests[key]
	if !ok {
		return ErrNotFound
	}
	if r.Status != model.ReservationPending {
		return ErrInvalidState
	}
	r.Status = model.ReservationConfirmed
	t.state.requests[key] = r
	return nil
}

func (t *memTx) RemoveRequest(_ context.Context, listingID, buyerID string) error {
	key := requestKey{listingID, buyerID}
	if _, ok := t.state.requests[key]; !ok {
		return ErrNotFound
	}
	delete(t.state.requests, key)
	return nil
}

func (t *memTx) RemovePendingRequests(_ context.Context, listingID string) (int64, error) {
	var n int64
	for k, r := range t.state.requests {
		if k.listingID == listingID && r.Status == model.ReservationPending {
			delete(t.state.requests, k)
			n++
		}
	}
	return n, nil
}

func (t *memTx) RemoveRequests(_ context.Context, listingID string) (int64, error) {
	var n int64
	for k := range t.state.requests {
		if k.listingID == listingID {
			delete(t.state.requests, k)
			n++
		}
	}
	return n, nil
}
