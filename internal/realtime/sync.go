// Package realtime turns a raw row-change transport into ordered,
// deduplicated domain events scoped to one topic.
package realtime

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	defaultConnectTimeout   = 15 * time.Second
	defaultSubscribeTimeout = 10 * time.Second
	defaultPollInterval     = 500 * time.Millisecond
	defaultBufferSize       = 64
	unsubscribeTimeout      = 5 * time.Second
)

type Options struct {
	ConnectTimeout   time.Duration
	SubscribeTimeout time.Duration
	PollInterval     time.Duration
	SeenCeiling      int
	BufferSize       int
	Logger           *zap.Logger
}

// Sync consumes a Transport for entities of type M. All subscriptions of one
// Sync share its seen-set; consumers that need independent dedupe windows
// need their own Sync.
type Sync[M any] struct {
	transport Transport
	seen      *SeenSet

	connectTimeout   time.Duration
	subscribeTimeout time.Duration
	pollInterval     time.Duration
	bufferSize       int
	logger           *zap.Logger
}

func NewSync[M any](transport Transport, opts Options) *Sync[M] {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}
	if opts.SubscribeTimeout <= 0 {
		opts.SubscribeTimeout = defaultSubscribeTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBufferSize
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Sync[M]{
		transport:        transport,
		seen:             NewSeenSet(opts.SeenCeiling),
		connectTimeout:   opts.ConnectTimeout,
		subscribeTimeout: opts.SubscribeTimeout,
		pollInterval:     opts.PollInterval,
		bufferSize:       opts.BufferSize,
		logger:           opts.Logger.Named("realtime"),
	}
}

// EnsureConnected returns true at once if the transport is connected.
// Otherwise it asks the transport to connect and polls its state until it
// is connected (true), reports an error (false), or the connect timeout
// elapses (false). It never retries a failed attempt.
func (s *Sync[M]) EnsureConnected(ctx context.Context) bool {
	if s.transport.State().Status == Connected {
		return true
	}

	if err := s.transport.Connect(ctx); err != nil {
		connectAttempts.WithLabelValues("connect", "error").Inc()
		s.logger.Warn("transport connect failed", zap.Error(err))
		return false
	}

	ok := poll(ctx, s.pollInterval, s.connectTimeout, func() (bool, bool) {
		st := s.transport.State()
		switch st.Status {
		case Connected:
			return true, true
		case ConnError:
			s.logger.Warn("transport reported error", zap.String("reason", st.Reason))
			return true, false
		}
		return false, false
	})
	if ok {
		connectAttempts.WithLabelValues("connect", "ok").Inc()
	} else {
		connectAttempts.WithLabelValues("connect", "failed").Inc()
		s.logger.Warn("transport not connected",
			zap.Stringer("state", s.transport.State()),
			zap.Duration("timeout", s.connectTimeout),
		)
	}
	return ok
}

// Subscribe opens a channel for scope and returns its domain events in
// delivery order. Connection and join failures are returned and end the
// call; per-event failures are delivered inline as EventError. The returned
// channel is closed, and the transport channel unsubscribed, when ctx is
// done or the transport stops delivering.
func (s *Sync[M]) Subscribe(ctx context.Context, scope Scope[M]) (<-chan Event[M], error) {
	if !s.EnsureConnected(ctx) {
		return nil, ErrNotConnected
	}

	ch, err := s.transport.Channel(scope.Name, scope.Filter)
	if err != nil {
		connectAttempts.WithLabelValues("subscribe", "error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrSubscribeFailed, err)
	}
	if err := ch.Subscribe(ctx); err != nil {
		connectAttempts.WithLabelValues("subscribe", "error").Inc()
		s.release(ch, scope.Name)
		return nil, fmt.Errorf("%w: %v", ErrSubscribeFailed, err)
	}

	joined := poll(ctx, s.pollInterval, s.subscribeTimeout, func() (bool, bool) {
		switch ch.Status() {
		case ChannelJoined:
			return true, true
		case ChannelClosed, ChannelErrored:
			return true, false
		}
		return false, false
	})
	if !joined {
		connectAttempts.WithLabelValues("subscribe", "failed").Inc()
		status := ch.Status()
		s.release(ch, scope.Name)
		if status == ChannelClosed || status == ChannelErrored {
			return nil, fmt.Errorf("%w: channel %s", ErrSubscribeFailed, status)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, ErrSubscribeTimeout
	}
	connectAttempts.WithLabelValues("subscribe", "ok").Inc()

	out := make(chan Event[M], s.bufferSize)
	go s.pump(ctx, ch, scope, out)
	return out, nil
}

// ClearDedupeState forgets every identity seen so far.
func (s *Sync[M]) ClearDedupeState() {
	s.seen.Reset()
}

func (s *Sync[M]) pump(ctx context.Context, ch Channel, scope Scope[M], out chan<- Event[M]) {
	logger := s.logger.With(zap.String("channel", scope.Name))
	defer close(out)
	defer s.release(ch, scope.Name)

	events := ch.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-events:
			if !ok {
				logger.Info("transport stopped delivering events")
				return
			}
			ev, emit := s.process(scope, raw)
			if !emit {
				continue
			}
			if ev.Kind == EventError {
				logger.Warn("event processing failed", zap.Error(ev.Err))
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

// process runs one raw event through decode, scope filter and dedupe.
// emit is false for events that are silently dropped.
func (s *Sync[M]) process(scope Scope[M], raw RawChangeEvent) (ev Event[M], emit bool) {
	defer func() {
		if r := recover(); r != nil {
			eventsProcessed.WithLabelValues("panic").Inc()
			ev = Event[M]{Kind: EventError, Err: fmt.Errorf("%w: %v", ErrEventPanic, r)}
			emit = true
		}
	}()

	if scope.Filter.Table != "" && raw.Table != "" && raw.Table != scope.Filter.Table {
		eventsProcessed.WithLabelValues("other_table").Inc()
		return ev, false
	}

	var rec Record
	switch raw.Operation {
	case OpInsert, OpUpdate:
		rec = raw.NewRecord
	case OpDelete:
		rec = raw.OldRecord
	default:
		eventsProcessed.WithLabelValues("unknown").Inc()
		return Event[M]{Kind: EventUnknown}, true
	}
	if len(rec) == 0 {
		eventsProcessed.WithLabelValues("error").Inc()
		return Event[M]{Kind: EventError, Err: ErrEmptyRecord}, true
	}

	entity, err := scope.Decode(rec)
	if err != nil {
		eventsProcessed.WithLabelValues("error").Inc()
		return Event[M]{Kind: EventError, Err: fmt.Errorf("%w: %v", ErrDecode, err)}, true
	}
	if scope.InScope != nil && !scope.InScope(entity) {
		eventsProcessed.WithLabelValues("out_of_scope").Inc()
		return ev, false
	}
	if !s.seen.Add(raw.Operation.String() + ":" + scope.Identity(entity)) {
		eventsProcessed.WithLabelValues("duplicate").Inc()
		return ev, false
	}

	eventsProcessed.WithLabelValues("emitted").Inc()
	id := scope.EntityID(entity)
	switch raw.Operation {
	case OpInsert:
		return Event[M]{Kind: EventCreated, Entity: entity, ID: id}, true
	case OpUpdate:
		return Event[M]{Kind: EventUpdated, Entity: entity, ID: id}, true
	default:
		return Event[M]{Kind: EventDeleted, ID: id}, true
	}
}

func (s *Sync[M]) release(ch Channel, name string) {
	ctx, cancel := context.WithTimeout(context.Background(), unsubscribeTimeout)
	defer cancel()
	if err := ch.Unsubscribe(ctx); err != nil {
		s.logger.Warn("channel unsubscribe failed", zap.String("channel", name), zap.Error(err))
	}
}

// poll calls check immediately and then every interval until it reports
// done, timeout elapses, or ctx is done. It returns check's ok value, or
// false on timeout and cancellation.
func poll(ctx context.Context, interval, timeout time.Duration, check func() (done, ok bool)) bool {
	if done, ok := check(); done {
		return ok
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return false
		case <-ticker.C:
			if done, ok := check(); done {
				return ok
			}
		}
	}
}
