package billing

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/platinummonkey/basekeeper/pkg/members"
	"github.com/platinummonkey/basekeeper/pkg/observability"
)

// fakeStore is an in-memory Store for engine tests. Transactions are
// serialized globally and rolled back from a snapshot when fn fails.
type fakeStore struct {
	txMu sync.Mutex

	mu       sync.Mutex
	subs     map[string]*Subscription
	payments map[string]*Payment
	members  map[string][]*members.Member

	saveSubscriptionErr error
	deletePaymentErr    error
	countMembersErr     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		subs:     make(map[string]*Subscription),
		payments: make(map[string]*Payment),
		members:  make(map[string][]*members.Member),
	}
}

func (s *fakeStore) Subscriptions() SubscriptionRepository { return fakeSubscriptions{s} }
func (s *fakeStore) Payments() PaymentRepository           { return fakePayments{s} }
func (s *fakeStore) Members() members.Repository           { return fakeMembers{s} }

func (s *fakeStore) InTenantTx(ctx context.Context, tenantID string, fn func(ctx context.Context, repos Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	subs := make(map[string]*Subscription, len(s.subs))
	for k, v := range s.subs {
		subs[k] = v.Clone()
	}
	payments := make(map[string]*Payment, len(s.payments))
	for k, v := range s.payments {
		payments[k] = v.Clone()
	}
	mems := make(map[string][]*members.Member, len(s.members))
	for k, v := range s.members {
		mems[k] = append([]*members.Member(nil), v...)
	}
	s.mu.Unlock()

	if err := fn(ctx, s); err != nil {
		s.mu.Lock()
		s.subs, s.payments, s.members = subs, payments, mems
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *fakeStore) putSubscription(sub *Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[sub.TenantID] = sub.Clone()
}

func (s *fakeStore) subscription(tenantID string) *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subs[tenantID].Clone()
}

func (s *fakeStore) payment(id string) *Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payments[id].Clone()
}

func (s *fakeStore) addApprovedMembers(tenantID string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; i++ {
		s.members[tenantID] = append(s.members[tenantID], &members.Member{
			ID:       fmt.Sprintf("%s-seed-%d", tenantID, i),
			TenantID: tenantID,
			Name:     "seed",
			Status:   members.StatusApproved,
		})
	}
}

type fakeSubscriptions struct{ s *fakeStore }

func (r fakeSubscriptions) GetSubscription(ctx context.Context, tenantID string) (*Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub, ok := r.s.subs[tenantID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return sub.Clone(), nil
}

func (r fakeSubscriptions) SaveSubscription(ctx context.Context, sub *Subscription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.saveSubscriptionErr != nil {
		return r.s.saveSubscriptionErr
	}
	if err := sub.Validate(); err != nil {
		return err
	}
	r.s.subs[sub.TenantID] = sub.Clone()
	return nil
}

func (r fakeSubscriptions) ListSubscriptions(ctx context.Context) ([]*Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*Subscription, 0, len(r.s.subs))
	for _, sub := range r.s.subs {
		out = append(out, sub.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TenantID < out[j].TenantID })
	return out, nil
}

type fakePayments struct{ s *fakeStore }

func (r fakePayments) CreatePayment(ctx context.Context, p *Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.payments[p.ID] = p.Clone()
	return nil
}

func (r fakePayments) GetPayment(ctx context.Context, id string) (*Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (r fakePayments) UpdatePayment(ctx context.Context, p *Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.payments[p.ID]; !ok {
		return ErrNotFound
	}
	r.s.payments[p.ID] = p.Clone()
	return nil
}

func (r fakePayments) DeletePayment(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.deletePaymentErr != nil {
		return r.s.deletePaymentErr
	}
	if _, ok := r.s.payments[id]; !ok {
		return ErrNotFound
	}
	delete(r.s.payments, id)
	return nil
}

func (r fakePayments) ListPayments(ctx context.Context, filter PaymentFilter) ([]*Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*Payment
	for _, p := range r.s.payments {
		if filter.TenantID != "" && p.TenantID != filter.TenantID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type fakeMembers struct{ s *fakeStore }

func (r fakeMembers) CountApprovedMembers(ctx context.Context, tenantID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.countMembersErr != nil {
		return 0, r.s.countMembersErr
	}
	n := 0
	for _, m := range r.s.members[tenantID] {
		if m.Status == members.StatusApproved {
			n++
		}
	}
	return n, nil
}

func (r fakeMembers) InsertMember(ctx context.Context, m *members.Member) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *m
	r.s.members[m.TenantID] = append(r.s.members[m.TenantID], &c)
	return nil
}

func (r fakeMembers) ListMembers(ctx context.Context, tenantID string) ([]*members.Member, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]*members.Member(nil), r.s.members[tenantID]...), nil
}

func intPtr(v int) *int { return &v }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func discardLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}
