package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"budgetapp/chatsync/internal/cache"
	"budgetapp/chatsync/internal/config"
	"budgetapp/chatsync/internal/model"
	"budgetapp/chatsync/internal/realtime"
	"budgetapp/chatsync/internal/repository"
)

var errBackendDown = errors.New("backend down")

func newTestCache(t *testing.T) *cache.Manager {
	t.Helper()
	m, err := cache.New(nil, cache.Options{DefaultTTL: time.Minute})
	require.NoError(t, err)
	return m
}

func newTestBreaker() *gobreaker.CircuitBreaker {
	return NewBreaker("test", config.BreakerConfig{
		MaxRequests:         1,
		Timeout:             time.Minute,
		ConsecutiveFailures: 3,
	}, zap.NewNop())
}

// fakePosts is an in-memory PostRepository counting calls per method.
type fakePosts struct {
	mu    sync.Mutex
	posts map[int64]model.Post
	next  int64
	calls map[string]int
	err   error
}

func newFakePosts() *fakePosts {
	return &fakePosts{posts: make(map[int64]model.Post), calls: make(map[string]int)}
}

func (f *fakePosts) hit(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	return f.err
}

func (f *fakePosts) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakePosts) sorted() []model.Post {
	out := make([]model.Post, 0, len(f.posts))
	for _, p := range f.posts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (f *fakePosts) List(_ context.Context, limit, offset int) ([]model.Post, error) {
	if err := f.hit("List"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.sorted()
	if offset >= len(all) {
		return []model.Post{}, nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], nil
}

func (f *fakePosts) GetByID(_ context.Context, id int64) (*model.Post, error) {
	if err := f.hit("GetByID"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (f *fakePosts) ListByAuthor(_ context.Context, authorID uuid.UUID) ([]model.Post, error) {
	if err := f.hit("ListByAuthor"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Post
	for _, p := range f.sorted() {
		if p.AuthorID == authorID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePosts) Create(_ context.Context, post *model.Post) error {
	if err := f.hit("Create"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	post.ID = f.next
	post.CreatedAt = time.Now()
	f.posts[post.ID] = *post
	return nil
}

func (f *fakePosts) Delete(_ context.Context, id int64) error {
	if err := f.hit("Delete"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.posts[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.posts, id)
	return nil
}

type fakeMessages struct {
	mu    sync.Mutex
	msgs  []model.Message
	lists int
}

func (f *fakeMessages) ListByRoom(_ context.Context, roomID uuid.UUID, limit int) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	var out []model.Message
	for _, m := range f.msgs {
		if m.RoomID == roomID {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakeMessages) Create(_ context.Context, msg *model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg.ID = uuid.New()
	msg.CreatedAt = time.Now()
	msg.UpdatedAt = msg.CreatedAt
	f.msgs = append(f.msgs, *msg)
	return nil
}

func (f *fakeMessages) listCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists
}

type fakeExpenses struct {
	mu       sync.Mutex
	expenses []model.Expense
	calls    int
}

func (f *fakeExpenses) ListByUser(_ context.Context, userID uuid.UUID) ([]model.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	var out []model.Expense
	for _, e := range f.expenses {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeExpenses) ListByUserBetween(_ context.Context, userID uuid.UUID, from, to time.Time) ([]model.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	var out []model.Expense
	for _, e := range f.expenses {
		if e.UserID == userID && !e.SpentAt.Before(from) && e.SpentAt.Before(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeExpenses) Create(_ context.Context, e *model.Expense) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.ID = uuid.New()
	f.expenses = append(f.expenses, *e)
	return nil
}

func (f *fakeExpenses) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// liveTransport is an always-connected transport whose channels join at
// once and forward whatever is pushed to them.
type liveTransport struct {
	mu       sync.Mutex
	channels []*liveChannel
}

func (t *liveTransport) Connect(context.Context) error { return nil }

func (t *liveTransport) State() realtime.ConnectionState { return realtime.StateConnected() }

func (t *liveTransport) Channel(name string, filter realtime.ChangeFilter) (realtime.Channel, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := &liveChannel{name: name, filter: filter, events: make(chan realtime.RawChangeEvent, 16)}
	t.channels = append(t.channels, ch)
	return ch, nil
}

func (t *liveTransport) channel(i int) *liveChannel {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.channels[i]
}

type liveChannel struct {
	name   string
	filter realtime.ChangeFilter
	events chan realtime.RawChangeEvent

	mu     sync.Mutex
	status realtime.ChannelStatus
}

func (c *liveChannel) Subscribe(context.Context) error {
	c.mu.Lock()
	c.status = realtime.ChannelJoined
	c.mu.Unlock()
	return nil
}

func (c *liveChannel) Status() realtime.ChannelStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *liveChannel) Events() <-chan realtime.RawChangeEvent { return c.events }

func (c *liveChannel) Unsubscribe(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = realtime.ChannelClosed
	return nil
}
