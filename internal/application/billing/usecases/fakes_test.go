package usecases

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"subsync/internal/domain/client"
	"subsync/internal/domain/subscription"
	vo "subsync/internal/domain/subscription/valueobjects"
	"subsync/internal/shared/logger"
)

func discardLogger() logger.Interface {
	return logger.NewLoggerWithSlog(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// fakeSubscriptionRepo is an in-memory SubscriptionRepository. It hands out
// the stored aggregate pointers directly, which is fine for these tests
// because every mutation goes back through Update.
type fakeSubscriptionRepo struct {
	mu   sync.Mutex
	seq  uint
	byID map[uint]*subscription.Subscription

	createCalls int
	updateCalls int
	getByIDHook func(id uint)
	updateErr   error
}

func newFakeSubscriptionRepo() *fakeSubscriptionRepo {
	return &fakeSubscriptionRepo{byID: make(map[uint]*subscription.Subscription)}
}

func (r *fakeSubscriptionRepo) Create(_ context.Context, sub *subscription.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createCalls++
	r.seq++
	if err := sub.SetID(r.seq); err != nil {
		return err
	}
	r.byID[sub.ID()] = sub
	return nil
}

func (r *fakeSubscriptionRepo) GetByID(_ context.Context, id uint) (*subscription.Subscription, error) {
	r.mu.Lock()
	hook := r.getByIDHook
	r.mu.Unlock()
	if hook != nil {
		hook(id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[id], nil
}

func (r *fakeSubscriptionRepo) GetBySID(_ context.Context, sid string) (*subscription.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sub := range r.byID {
		if sub.SID() == sid {
			return sub, nil
		}
	}
	return nil, nil
}

func (r *fakeSubscriptionRepo) GetByExternalReference(_ context.Context, ref string) (*subscription.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sub := range r.byID {
		if sub.ExternalReference() == ref {
			return sub, nil
		}
	}
	return nil, nil
}

func (r *fakeSubscriptionRepo) GetCurrentByClientID(_ context.Context, clientID uint) (*subscription.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var current *subscription.Subscription
	for _, sub := range r.byID {
		if sub.ClientID() != clientID {
			continue
		}
		if current == nil || sub.CreatedAt().After(current.CreatedAt()) {
			current = sub
		}
	}
	return current, nil
}

func (r *fakeSubscriptionRepo) Update(_ context.Context, sub *subscription.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateCalls++
	if r.updateErr != nil {
		return r.updateErr
	}
	r.byID[sub.ID()] = sub
	return nil
}

func (r *fakeSubscriptionRepo) FindOverduePage(_ context.Context, now time.Time, offset, limit int) ([]*subscription.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var overdue []*subscription.Subscription
	for _, sub := range r.byID {
		if sub.Status() == vo.StatusExpired || sub.Status() == vo.StatusPending {
			continue
		}
		if sub.IsOverdue(now) {
			overdue = append(overdue, sub)
		}
	}
	sort.Slice(overdue, func(i, j int) bool {
		ei, ej := overdue[i].EndsAt(), overdue[j].EndsAt()
		if !ei.Equal(*ej) {
			return ei.Before(*ej)
		}
		return overdue[i].ID() < overdue[j].ID()
	})
	if offset >= len(overdue) {
		return nil, nil
	}
	end := offset + limit
	if end > len(overdue) {
		end = len(overdue)
	}
	return overdue[offset:end], nil
}

func (r *fakeSubscriptionRepo) List(_ context.Context, filter subscription.SubscriptionFilter) ([]*subscription.Subscription, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*subscription.Subscription
	for _, sub := range r.byID {
		if filter.Status != nil && sub.Status().String() != *filter.Status {
			continue
		}
		if filter.ClientID != nil && sub.ClientID() != *filter.ClientID {
			continue
		}
		out = append(out, sub)
	}
	return out, int64(len(out)), nil
}

func (r *fakeSubscriptionRepo) CountByStatus(_ context.Context, status vo.SubscriptionStatus) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, sub := range r.byID {
		if sub.Status() == status {
			n++
		}
	}
	return n, nil
}

type fakeClientRepo struct {
	mu      sync.Mutex
	seq     uint
	byEmail map[string]*client.Client

	createCalls int
}

func newFakeClientRepo() *fakeClientRepo {
	return &fakeClientRepo{byEmail: make(map[string]*client.Client)}
}

func (r *fakeClientRepo) Create(_ context.Context, c *client.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createCalls++
	r.seq++
	if err := c.SetID(r.seq); err != nil {
		return err
	}
	r.byEmail[c.Email()] = c
	return nil
}

func (r *fakeClientRepo) GetByID(_ context.Context, id uint) (*client.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.byEmail {
		if c.ID() == id {
			return c, nil
		}
	}
	return nil, nil
}

func (r *fakeClientRepo) GetBySID(_ context.Context, sid string) (*client.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.byEmail {
		if c.SID() == sid {
			return c, nil
		}
	}
	return nil, nil
}

func (r *fakeClientRepo) GetByEmail(_ context.Context, email string) (*client.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byEmail[email], nil
}

func (r *fakeClientRepo) Update(_ context.Context, c *client.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byEmail[c.Email()] = c
	return nil
}

type fakePlanRepo struct {
	byProductID map[string]*subscription.Plan
}

func newFakePlanRepo() *fakePlanRepo {
	return &fakePlanRepo{byProductID: make(map[string]*subscription.Plan)}
}

func (r *fakePlanRepo) Create(_ context.Context, p *subscription.Plan) error { return nil }

func (r *fakePlanRepo) GetByID(_ context.Context, id uint) (*subscription.Plan, error) {
	for _, p := range r.byProductID {
		if p.ID() == id {
			return p, nil
		}
	}
	return nil, nil
}

func (r *fakePlanRepo) GetBySlug(_ context.Context, slug string) (*subscription.Plan, error) {
	for _, p := range r.byProductID {
		if p.Slug() == slug {
			return p, nil
		}
	}
	return nil, nil
}

func (r *fakePlanRepo) GetByExternalProductID(_ context.Context, productID string) (*subscription.Plan, error) {
	return r.byProductID[productID], nil
}

func (r *fakePlanRepo) GetAllActive(_ context.Context) ([]*subscription.Plan, error) {
	var out []*subscription.Plan
	for _, p := range r.byProductID {
		out = append(out, p)
	}
	return out, nil
}

type fakeFetcher struct {
	update *subscription.Update
	err    error
	calls  int
}

func (f *fakeFetcher) FetchSubscriptionUpdate(_ context.Context, ref string) (*subscription.Update, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.update, nil
}

type fakeStatusCache struct {
	mu          sync.Mutex
	entries     map[string]string
	invalidated []string
	setCalls    int
}

func newFakeStatusCache() *fakeStatusCache {
	return &fakeStatusCache{entries: make(map[string]string)}
}

func (c *fakeStatusCache) GetStatus(_ context.Context, sid string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	status, ok := c.entries[sid]
	return status, ok, nil
}

func (c *fakeStatusCache) SetStatus(_ context.Context, sid, status string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setCalls++
	c.entries[sid] = status
	return nil
}

func (c *fakeStatusCache) Invalidate(_ context.Context, sid string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, sid)
	c.invalidated = append(c.invalidated, sid)
	return nil
}
