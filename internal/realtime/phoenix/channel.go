package phoenix

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"budgetapp/chatsync/internal/realtime"
)

type channel struct {
	t      *Transport
	topic  string
	filter realtime.ChangeFilter

	mu      sync.Mutex
	status  realtime.ChannelStatus
	joinRef string

	events chan realtime.RawChangeEvent
	done   chan struct{}
	// sendMu is held shared by deliver and exclusively by close, so events
	// is never closed under a pending send.
	sendMu sync.RWMutex
	closed atomic.Bool
}

var _ realtime.Channel = (*channel)(nil)

func newChannel(t *Transport, topic string, filter realtime.ChangeFilter, buffer int) *channel {
	return &channel{
		t:      t,
		topic:  topic,
		filter: filter,
		status: realtime.ChannelIdle,
		events: make(chan realtime.RawChangeEvent, buffer),
		done:   make(chan struct{}),
	}
}

// Subscribe sends the join request. The server's reply moves the channel to
// Joined or Errored.
func (c *channel) Subscribe(_ context.Context) error {
	if c.isClosed() {
		return errors.New("phoenix: channel closed")
	}
	ref := c.t.nextRef()

	c.mu.Lock()
	c.status = realtime.ChannelJoining
	c.joinRef = ref
	c.mu.Unlock()

	if err := c.t.send(c.topic, eventJoin, newJoinPayload(c.filter, c.t.cfg.APIKey), ref); err != nil {
		c.setStatus(realtime.ChannelErrored)
		return err
	}
	return nil
}

func (c *channel) Status() realtime.ChannelStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *channel) Events() <-chan realtime.RawChangeEvent {
	return c.events
}

// Unsubscribe leaves the topic if it was joined and closes Events. A leave
// that cannot be sent because the connection is gone is not an error.
func (c *channel) Unsubscribe(_ context.Context) error {
	if c.isClosed() {
		return nil
	}

	status := c.Status()
	var err error
	if status == realtime.ChannelJoining || status == realtime.ChannelJoined {
		err = c.t.send(c.topic, eventLeave, struct{}{}, c.t.nextRef())
		if errors.Is(err, ErrNotConnected) {
			err = nil
		}
	}
	c.t.removeChannel(c)
	c.close(realtime.ChannelClosed)
	return err
}

func (c *channel) handleReply(ref *string, reply replyPayload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ref == nil || *ref != c.joinRef || c.status != realtime.ChannelJoining {
		return
	}
	if reply.Status == replyOK {
		c.status = realtime.ChannelJoined
		return
	}
	c.status = realtime.ChannelErrored
	c.t.logger.Warn("join rejected",
		zap.String("topic", c.topic),
		zap.String("status", reply.Status),
		zap.ByteString("response", reply.Response),
	)
}

// deliver queues ev, blocking while the queue is full.
func (c *channel) deliver(ev realtime.RawChangeEvent) {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	if c.closed.Load() {
		return
	}
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *channel) close(status realtime.ChannelStatus) {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.setStatus(status)
	close(c.done)

	c.sendMu.Lock()
	close(c.events)
	c.sendMu.Unlock()
}

func (c *channel) isClosed() bool {
	return c.closed.Load()
}

func (c *channel) setStatus(s realtime.ChannelStatus) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}
