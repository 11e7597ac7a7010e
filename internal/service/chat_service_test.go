package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"budgetapp/chatsync/internal/model"
	"budgetapp/chatsync/internal/realtime"
)

func newTestChatService(t *testing.T, transport realtime.Transport) (ChatService, *fakeMessages) {
	repo := &fakeMessages{}
	live := LiveConfig{
		Transport: transport,
		Options:   realtime.Options{PollInterval: time.Millisecond, SubscribeTimeout: time.Second},
	}
	return NewChatService(repo, newTestCache(t), newTestBreaker(), time.Minute, live, zap.NewNop()), repo
}

func TestHistoryIsCachedUntilSend(t *testing.T) {
	svc, repo := newTestChatService(t, nil)
	ctx := context.Background()
	room, sender := uuid.New(), uuid.New()

	_, err := svc.SendMessage(ctx, room, sender, "one")
	require.NoError(t, err)

	for range 2 {
		msgs, err := svc.History(ctx, room, 10)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
	}
	assert.Equal(t, 1, repo.listCalls())

	_, err = svc.SendMessage(ctx, room, sender, "two")
	require.NoError(t, err)

	msgs, err := svc.History(ctx, room, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "one", msgs[0].Content)
	assert.Equal(t, "two", msgs[1].Content)
	assert.Equal(t, 2, repo.listCalls())
}

func TestSendMessageValidation(t *testing.T) {
	svc, _ := newTestChatService(t, nil)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, uuid.New(), uuid.New(), "  ")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.SendMessage(ctx, uuid.Nil, uuid.New(), "hi")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestLiveWithoutTransport(t *testing.T) {
	svc, _ := newTestChatService(t, nil)
	_, err := svc.Live(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrLiveUnavailable)
}

type notConnected struct{ liveTransport }

func (*notConnected) State() realtime.ConnectionState { return realtime.StateError("refused") }

func TestLiveConnectFailure(t *testing.T) {
	svc, _ := newTestChatService(t, &notConnected{})
	_, err := svc.Live(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrLiveUnavailable)
}

func messageRecord(id, room uuid.UUID, content string, updated time.Time) realtime.Record {
	return realtime.Record{
		"id":         id.String(),
		"room_id":    room.String(),
		"sender_id":  uuid.NewString(),
		"content":    content,
		"created_at": updated.Format(time.RFC3339Nano),
		"updated_at": updated.Format(time.RFC3339Nano),
	}
}

func TestLiveStreamsRoomEventsAndInvalidatesHistory(t *testing.T) {
	transport := &liveTransport{}
	svc, repo := newTestChatService(t, transport)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	room := uuid.New()

	_, err := svc.History(ctx, room, 10)
	require.NoError(t, err)

	events, err := svc.Live(ctx, room)
	require.NoError(t, err)

	ch := transport.channel(0)
	assert.Contains(t, ch.name, "room:"+room.String())
	assert.Equal(t, "messages", ch.filter.Table)
	assert.Equal(t, "room_id=eq."+room.String(), ch.filter.Filter)

	id := uuid.New()
	now := time.Now().UTC()
	ch.events <- realtime.RawChangeEvent{Operation: realtime.OpInsert, Table: "messages", NewRecord: messageRecord(id, room, "hi", now)}
	ch.events <- realtime.RawChangeEvent{Operation: realtime.OpInsert, Table: "messages", NewRecord: messageRecord(id, room, "hi", now)}
	ch.events <- realtime.RawChangeEvent{Operation: realtime.OpInsert, Table: "messages", NewRecord: messageRecord(uuid.New(), uuid.New(), "elsewhere", now)}
	ch.events <- realtime.RawChangeEvent{Operation: realtime.OpDelete, Table: "messages", OldRecord: realtime.Record{"id": id.String()}}

	var got []realtime.Event[model.Message]
	for len(got) < 2 {
		select {
		case ev := <-events:
			got = append(got, ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d events", len(got))
		}
	}
	assert.Equal(t, realtime.EventCreated, got[0].Kind)
	assert.Equal(t, "hi", got[0].Entity.Content)
	assert.Equal(t, realtime.EventDeleted, got[1].Kind)
	assert.Equal(t, id.String(), got[1].ID)

	_, err = svc.History(ctx, room, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.listCalls())

	cancel()
	require.Eventually(t, func() bool {
		_, open := <-events
		return !open
	}, time.Second, time.Millisecond)
	assert.Equal(t, realtime.ChannelClosed, ch.Status())
}

func TestLiveSubscriptionsDedupeIndependently(t *testing.T) {
	transport := &liveTransport{}
	svc, _ := newTestChatService(t, transport)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	room := uuid.New()

	first, err := svc.Live(ctx, room)
	require.NoError(t, err)
	second, err := svc.Live(ctx, room)
	require.NoError(t, err)
	assert.NotEqual(t, transport.channel(0).name, transport.channel(1).name)

	rec := messageRecord(uuid.New(), room, "hi", time.Now().UTC())
	for i := range 2 {
		transport.channel(i).events <- realtime.RawChangeEvent{Operation: realtime.OpInsert, Table: "messages", NewRecord: rec}
	}
	for _, events := range []<-chan realtime.Event[model.Message]{first, second} {
		select {
		case ev := <-events:
			assert.Equal(t, realtime.EventCreated, ev.Kind)
		case <-time.After(2 * time.Second):
			t.Fatal("event suppressed")
		}
	}
}

func TestMessageScope(t *testing.T) {
	room := uuid.New()
	scope := MessageScope(room, "")

	assert.Equal(t, "public", scope.Filter.Schema)
	assert.True(t, scope.InScope(model.Message{RoomID: room}))
	assert.True(t, scope.InScope(model.Message{}))
	assert.False(t, scope.InScope(model.Message{RoomID: uuid.New()}))

	id := uuid.New()
	t0 := time.Now()
	v1 := model.Message{ID: id, UpdatedAt: t0}
	v2 := model.Message{ID: id, UpdatedAt: t0.Add(time.Second)}
	assert.NotEqual(t, scope.Identity(v1), scope.Identity(v2))
	assert.Equal(t, scope.EntityID(v1), scope.EntityID(v2))
}
