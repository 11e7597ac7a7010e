package phoenix

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetapp/chatsync/internal/realtime"
)

// fakeServer is a minimal Realtime endpoint. It answers joins with
// joinStatus and records every frame it receives.
type fakeServer struct {
	t          *testing.T
	srv        *httptest.Server
	joinStatus string

	mu       sync.Mutex
	conn     *websocket.Conn
	received []frame
	query    string
	joined   chan string
	writeMu  sync.Mutex
}

func newFakeServer(t *testing.T, joinStatus string) *fakeServer {
	fs := &fakeServer{t: t, joinStatus: joinStatus, joined: make(chan string, 4)}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	fs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		fs.mu.Lock()
		fs.conn = conn
		fs.query = r.URL.RawQuery
		fs.mu.Unlock()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg frame
			if json.Unmarshal(data, &msg) != nil {
				continue
			}
			fs.mu.Lock()
			fs.received = append(fs.received, msg)
			fs.mu.Unlock()

			if msg.Event == eventJoin {
				fs.push(msg.Topic, eventReply, map[string]any{"status": fs.joinStatus, "response": map[string]any{}}, msg.Ref)
				fs.joined <- msg.Topic
			}
		}
	}))
	t.Cleanup(fs.srv.Close)
	return fs
}

func (fs *fakeServer) url() string {
	return "ws" + strings.TrimPrefix(fs.srv.URL, "http") + "/realtime/v1/websocket"
}

func (fs *fakeServer) push(topic, event string, payload any, ref *string) {
	body, err := json.Marshal(payload)
	require.NoError(fs.t, err)
	data, err := json.Marshal(frame{Topic: topic, Event: event, Payload: body, Ref: ref})
	require.NoError(fs.t, err)

	fs.mu.Lock()
	conn := fs.conn
	fs.mu.Unlock()
	fs.writeMu.Lock()
	defer fs.writeMu.Unlock()
	require.NoError(fs.t, conn.WriteMessage(websocket.TextMessage, data))
}

func (fs *fakeServer) pushChange(topic, op string, record map[string]any) {
	fs.push(topic, eventPostgresChanges, map[string]any{
		"ids": []int64{1},
		"data": map[string]any{
			"type":             op,
			"schema":           "public",
			"table":            "messages",
			"commit_timestamp": "2026-10-15T08:30:00Z",
			"record":           record,
			"old_record":       map[string]any{},
		},
	}, nil)
}

func (fs *fakeServer) dropConnection() {
	fs.mu.Lock()
	conn := fs.conn
	fs.mu.Unlock()
	_ = conn.Close()
}

func (fs *fakeServer) events(name string) []frame {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	var out []frame
	for _, f := range fs.received {
		if f.Event == name {
			out = append(out, f)
		}
	}
	return out
}

func connect(t *testing.T, fs *fakeServer) *Transport {
	t.Helper()
	tr := New(Config{URL: fs.url(), APIKey: "anon-key", HeartbeatInterval: 20 * time.Millisecond})
	t.Cleanup(func() { _ = tr.Close() })

	require.NoError(t, tr.Connect(context.Background()))
	require.Eventually(t, func() bool {
		return tr.State().Status == realtime.Connected
	}, 2*time.Second, 5*time.Millisecond)
	return tr
}

func TestConnectSendsKeyAndVersion(t *testing.T) {
	fs := newFakeServer(t, replyOK)
	connect(t, fs)

	fs.mu.Lock()
	query := fs.query
	fs.mu.Unlock()
	assert.Contains(t, query, "apikey=anon-key")
	assert.Contains(t, query, "vsn=1.0.0")
}

func TestConnectIsIdempotentWhileConnected(t *testing.T) {
	fs := newFakeServer(t, replyOK)
	tr := connect(t, fs)

	require.NoError(t, tr.Connect(context.Background()))
	assert.Equal(t, realtime.Connected, tr.State().Status)
}

func TestDialFailureReportsError(t *testing.T) {
	fs := newFakeServer(t, replyOK)
	addr := fs.url()
	fs.srv.Close()

	tr := New(Config{URL: addr, DialTimeout: time.Second})
	require.NoError(t, tr.Connect(context.Background()))

	require.Eventually(t, func() bool {
		return tr.State().Status == realtime.ConnError
	}, 2*time.Second, 5*time.Millisecond)
	assert.NotEmpty(t, tr.State().Reason)
}

func TestJoinAndReceiveChanges(t *testing.T) {
	fs := newFakeServer(t, replyOK)
	tr := connect(t, fs)

	ch, err := tr.Channel("room:1", realtime.ChangeFilter{Table: "messages", Filter: "room_id=eq.1"})
	require.NoError(t, err)
	require.NoError(t, ch.Subscribe(context.Background()))

	topic := <-fs.joined
	assert.Equal(t, "realtime:room:1", topic)
	require.Eventually(t, func() bool {
		return ch.Status() == realtime.ChannelJoined
	}, time.Second, 5*time.Millisecond)

	joins := fs.events(eventJoin)
	require.Len(t, joins, 1)
	var payload joinPayload
	require.NoError(t, json.Unmarshal(joins[0].Payload, &payload))
	require.Len(t, payload.Config.PostgresChanges, 1)
	assert.Equal(t, changeBinding{Event: "*", Schema: "public", Table: "messages", Filter: "room_id=eq.1"},
		payload.Config.PostgresChanges[0])

	fs.pushChange(topic, "INSERT", map[string]any{"id": 7, "content": "hi"})

	select {
	case ev := <-ch.Events():
		assert.Equal(t, realtime.OpInsert, ev.Operation)
		assert.Equal(t, "messages", ev.Table)
		assert.Equal(t, "hi", ev.NewRecord["content"])
		assert.Equal(t, 2026, ev.CommitTimestamp.Year())
	case <-time.After(2 * time.Second):
		t.Fatal("no change event delivered")
	}
}

func TestJoinRejected(t *testing.T) {
	fs := newFakeServer(t, "error")
	tr := connect(t, fs)

	ch, err := tr.Channel("room:1", realtime.ChangeFilter{Table: "messages"})
	require.NoError(t, err)
	require.NoError(t, ch.Subscribe(context.Background()))

	require.Eventually(t, func() bool {
		return ch.Status() == realtime.ChannelErrored
	}, time.Second, 5*time.Millisecond)
}

func TestDuplicateChannelRejected(t *testing.T) {
	fs := newFakeServer(t, replyOK)
	tr := connect(t, fs)

	_, err := tr.Channel("room:1", realtime.ChangeFilter{})
	require.NoError(t, err)
	_, err = tr.Channel("room:1", realtime.ChangeFilter{})
	assert.ErrorIs(t, err, ErrChannelExists)
}

func TestUnsubscribeLeavesAndClosesEvents(t *testing.T) {
	fs := newFakeServer(t, replyOK)
	tr := connect(t, fs)

	ch, err := tr.Channel("room:1", realtime.ChangeFilter{Table: "messages"})
	require.NoError(t, err)
	require.NoError(t, ch.Subscribe(context.Background()))
	<-fs.joined
	require.Eventually(t, func() bool {
		return ch.Status() == realtime.ChannelJoined
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, ch.Unsubscribe(context.Background()))
	assert.Equal(t, realtime.ChannelClosed, ch.Status())
	_, open := <-ch.Events()
	assert.False(t, open)

	require.Eventually(t, func() bool {
		return len(fs.events(eventLeave)) == 1
	}, time.Second, 5*time.Millisecond)

	// the name is free again
	_, err = tr.Channel("room:1", realtime.ChangeFilter{})
	assert.NoError(t, err)
}

func TestServerCloseEndsChannel(t *testing.T) {
	fs := newFakeServer(t, replyOK)
	tr := connect(t, fs)

	ch, err := tr.Channel("room:1", realtime.ChangeFilter{Table: "messages"})
	require.NoError(t, err)
	require.NoError(t, ch.Subscribe(context.Background()))
	topic := <-fs.joined

	fs.push(topic, eventClose, map[string]any{}, nil)

	select {
	case _, open := <-ch.Events():
		assert.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("events not closed")
	}
	assert.Equal(t, realtime.ChannelClosed, ch.Status())
}

func TestConnectionLossErrorsChannels(t *testing.T) {
	fs := newFakeServer(t, replyOK)
	tr := connect(t, fs)

	ch, err := tr.Channel("room:1", realtime.ChangeFilter{Table: "messages"})
	require.NoError(t, err)
	require.NoError(t, ch.Subscribe(context.Background()))
	<-fs.joined

	fs.dropConnection()

	select {
	case _, open := <-ch.Events():
		assert.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("events not closed")
	}
	assert.Equal(t, realtime.ChannelErrored, ch.Status())
	assert.Equal(t, realtime.ConnError, tr.State().Status)
}

func TestHeartbeatSent(t *testing.T) {
	fs := newFakeServer(t, replyOK)
	connect(t, fs)

	require.Eventually(t, func() bool {
		beats := fs.events(eventHeartbeat)
		return len(beats) > 0 && beats[0].Topic == phoenixTopic
	}, time.Second, 5*time.Millisecond)
}

func TestCloseDisconnects(t *testing.T) {
	fs := newFakeServer(t, replyOK)
	tr := connect(t, fs)

	ch, err := tr.Channel("room:1", realtime.ChangeFilter{})
	require.NoError(t, err)

	require.NoError(t, tr.Close())
	assert.Equal(t, realtime.Disconnected, tr.State().Status)
	_, open := <-ch.Events()
	assert.False(t, open)
}

func TestRedialDropsSupersededConnection(t *testing.T) {
	release := make(chan struct{})
	var requests, upgraded, live atomic.Int32
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			<-release
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		live.Add(1)
		upgraded.Add(1)
		defer live.Add(-1)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	var once sync.Once
	t.Cleanup(func() { once.Do(func() { close(release) }) })

	tr := New(Config{URL: "ws" + strings.TrimPrefix(srv.URL, "http"), DialTimeout: 5 * time.Second})
	t.Cleanup(func() { _ = tr.Close() })

	require.NoError(t, tr.Connect(context.Background()))
	require.Eventually(t, func() bool { return requests.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Connect(context.Background()))
	require.Eventually(t, func() bool {
		return tr.State().Status == realtime.Connected
	}, 2*time.Second, 5*time.Millisecond)

	once.Do(func() { close(release) })
	require.Eventually(t, func() bool {
		return upgraded.Load() == 2 && live.Load() == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, realtime.Connected, tr.State().Status)
}

type message struct {
	ID      int    `json:"id"`
	Content string `json:"content"`
}

func TestSyncOverPhoenix(t *testing.T) {
	fs := newFakeServer(t, replyOK)
	tr := New(Config{URL: fs.url()})
	t.Cleanup(func() { _ = tr.Close() })

	rs := realtime.NewSync[message](tr, realtime.Options{
		PollInterval:     5 * time.Millisecond,
		ConnectTimeout:   2 * time.Second,
		SubscribeTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		topic := <-fs.joined
		// give Subscribe time to observe the join
		time.Sleep(20 * time.Millisecond)
		fs.pushChange(topic, "INSERT", map[string]any{"id": 1, "content": "a"})
		fs.pushChange(topic, "INSERT", map[string]any{"id": 1, "content": "a"})
		fs.pushChange(topic, "INSERT", map[string]any{"id": 2, "content": "b"})
	}()

	events, err := rs.Subscribe(ctx, realtime.Scope[message]{
		Name:     "room:1",
		Filter:   realtime.ChangeFilter{Table: "messages"},
		Decode:   realtime.DecodeRecord[message],
		Identity: func(m message) string { return m.Content },
		EntityID: func(m message) string { return m.Content },
	})
	require.NoError(t, err)

	var got []string
	for len(got) < 2 {
		select {
		case ev := <-events:
			require.Equal(t, realtime.EventCreated, ev.Kind)
			got = append(got, ev.ID)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out with %v", got)
		}
	}
	assert.Equal(t, []string{"a", "b"}, got)

	cancel()
	for range events {
	}
	require.Eventually(t, func() bool {
		return len(fs.events(eventLeave)) == 1
	}, time.Second, 5*time.Millisecond)
}
