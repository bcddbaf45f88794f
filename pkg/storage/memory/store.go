package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/platinummonkey/basekeeper/pkg/billing"
	"github.com/platinummonkey/basekeeper/pkg/members"
)

// Store keeps subscriptions, payments and members in process memory.
// Writes made inside InTenantTx are staged and applied together on commit.
type Store struct {
	mu       sync.RWMutex
	subs     map[string]*billing.Subscription
	payments map[string]*billing.Payment
	members  map[string][]*members.Member

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewStore creates an empty Store
func NewStore() *Store {
	return &Store{
		subs:     make(map[string]*billing.Subscription),
		payments: make(map[string]*billing.Payment),
		members:  make(map[string][]*members.Member),
		locks:    make(map[string]*sync.Mutex),
	}
}

// Subscriptions returns the committed subscription repository
func (s *Store) Subscriptions() billing.SubscriptionRepository { return subscriptionRepo{view{store: s}} }

// Payments returns the committed payment repository
func (s *Store) Payments() billing.PaymentRepository { return paymentRepo{view{store: s}} }

// Members returns the committed member repository
func (s *Store) Members() members.Repository { return memberRepo{view{store: s}} }

// HealthCheck always succeeds
func (s *Store) HealthCheck(ctx context.Context) error { return nil }

// InTenantTx runs fn while holding the tenant's lock. Nothing fn writes is
// visible to other callers until it returns nil.
func (s *Store) InTenantTx(ctx context.Context, tenantID string, fn func(ctx context.Context, repos billing.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	lock := s.tenantLock(tenantID)
	lock.Lock()
	defer lock.Unlock()

	tx := &txn{
		store:    s,
		subs:     make(map[string]*billing.Subscription),
		payments: make(map[string]*billing.Payment),
		deleted:  make(map[string]bool),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (s *Store) tenantLock(tenantID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	lock, ok := s.locks[tenantID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[tenantID] = lock
	}
	return lock
}

// txn holds the writes staged by one InTenantTx call
type txn struct {
	store    *Store
	subs     map[string]*billing.Subscription
	payments map[string]*billing.Payment
	deleted  map[string]bool
	inserted []*members.Member
}

func (t *txn) Subscriptions() billing.SubscriptionRepository {
	return subscriptionRepo{view{store: t.store, tx: t}}
}
func (t *txn) Payments() billing.PaymentRepository { return paymentRepo{view{store: t.store, tx: t}} }
func (t *txn) Members() members.Repository         { return memberRepo{view{store: t.store, tx: t}} }

func (t *txn) commit() {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sub := range t.subs {
		s.subs[id] = sub
	}
	for id := range t.deleted {
		delete(s.payments, id)
	}
	for id, p := range t.payments {
		s.payments[id] = p
	}
	for _, m := range t.inserted {
		s.members[m.TenantID] = append(s.members[m.TenantID], m)
	}
}

// view reads committed state overlaid with the staged writes of tx, if any.
// Without tx every write is applied immediately.
type view struct {
	store *Store
	tx    *txn
}

func (v view) subscription(tenantID string) (*billing.Subscription, bool) {
	if v.tx != nil {
		if sub, ok := v.tx.subs[tenantID]; ok {
			return sub, true
		}
	}
	v.store.mu.RLock()
	defer v.store.mu.RUnlock()
	sub, ok := v.store.subs[tenantID]
	return sub, ok
}

func (v view) payment(id string) (*billing.Payment, bool) {
	if v.tx != nil {
		if v.tx.deleted[id] {
			return nil, false
		}
		if p, ok := v.tx.payments[id]; ok {
			return p, true
		}
	}
	v.store.mu.RLock()
	defer v.store.mu.RUnlock()
	p, ok := v.store.payments[id]
	return p, ok
}

type subscriptionRepo struct{ view }

func (r subscriptionRepo) GetSubscription(ctx context.Context, tenantID string) (*billing.Subscription, error) {
	sub, ok := r.subscription(tenantID)
	if !ok {
		return nil, billing.ErrSubscriptionNotFound
	}
	return sub.Clone(), nil
}

func (r subscriptionRepo) SaveSubscription(ctx context.Context, sub *billing.Subscription) error {
	if err := sub.Validate(); err != nil {
		return err
	}
	c := sub.Clone()
	if r.tx != nil {
		r.tx.subs[c.TenantID] = c
		return nil
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.subs[c.TenantID] = c
	return nil
}

func (r subscriptionRepo) ListSubscriptions(ctx context.Context) ([]*billing.Subscription, error) {
	r.store.mu.RLock()
	merged := make(map[string]*billing.Subscription, len(r.store.subs))
	for id, sub := range r.store.subs {
		merged[id] = sub
	}
	r.store.mu.RUnlock()

	if r.tx != nil {
		for id, sub := range r.tx.subs {
			merged[id] = sub
		}
	}

	out := make([]*billing.Subscription, 0, len(merged))
	for _, sub := range merged {
		out = append(out, sub.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TenantID < out[j].TenantID })
	return out, nil
}

type paymentRepo struct{ view }

func (r paymentRepo) CreatePayment(ctx context.Context, p *billing.Payment) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if _, exists := r.payment(p.ID); exists {
		return fmt.Errorf("payment %s already exists", p.ID)
	}
	return r.put(p.Clone())
}

func (r paymentRepo) GetPayment(ctx context.Context, id string) (*billing.Payment, error) {
	p, ok := r.payment(id)
	if !ok {
		return nil, billing.ErrNotFound
	}
	return p.Clone(), nil
}

func (r paymentRepo) UpdatePayment(ctx context.Context, p *billing.Payment) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if _, ok := r.payment(p.ID); !ok {
		return billing.ErrNotFound
	}
	return r.put(p.Clone())
}

func (r paymentRepo) put(p *billing.Payment) error {
	if r.tx != nil {
		delete(r.tx.deleted, p.ID)
		r.tx.payments[p.ID] = p
		return nil
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.payments[p.ID] = p
	return nil
}

func (r paymentRepo) DeletePayment(ctx context.Context, id string) error {
	if _, ok := r.payment(id); !ok {
		return billing.ErrNotFound
	}
	if r.tx != nil {
		delete(r.tx.payments, id)
		r.tx.deleted[id] = true
		return nil
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.payments, id)
	return nil
}

func (r paymentRepo) ListPayments(ctx context.Context, filter billing.PaymentFilter) ([]*billing.Payment, error) {
	r.store.mu.RLock()
	merged := make(map[string]*billing.Payment, len(r.store.payments))
	for id, p := range r.store.payments {
		merged[id] = p
	}
	r.store.mu.RUnlock()

	if r.tx != nil {
		for id := range r.tx.deleted {
			delete(merged, id)
		}
		for id, p := range r.tx.payments {
			merged[id] = p
		}
	}

	out := make([]*billing.Payment, 0)
	for _, p := range merged {
		if filter.TenantID != "" && p.TenantID != filter.TenantID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

type memberRepo struct{ view }

func (r memberRepo) CountApprovedMembers(ctx context.Context, tenantID string) (int, error) {
	all, err := r.ListMembers(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, m := range all {
		if m.Status == members.StatusApproved {
			n++
		}
	}
	return n, nil
}

func (r memberRepo) InsertMember(ctx context.Context, m *members.Member) error {
	if err := m.Validate(); err != nil {
		return err
	}
	c := *m
	if r.tx != nil {
		r.tx.inserted = append(r.tx.inserted, &c)
		return nil
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.members[c.TenantID] = append(r.store.members[c.TenantID], &c)
	return nil
}

func (r memberRepo) ListMembers(ctx context.Context, tenantID string) ([]*members.Member, error) {
	r.store.mu.RLock()
	out := make([]*members.Member, 0, len(r.store.members[tenantID]))
	for _, m := range r.store.members[tenantID] {
		c := *m
		out = append(out, &c)
	}
	r.store.mu.RUnlock()

	if r.tx != nil {
		for _, m := range r.tx.inserted {
			if m.TenantID == tenantID {
				c := *m
				out = append(out, &c)
			}
		}
	}
	return out, nil
}

var (
	_ billing.Store        = (*Store)(nil)
	_ billing.Repositories = (*txn)(nil)
)
