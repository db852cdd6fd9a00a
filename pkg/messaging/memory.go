package messaging

import (
	"context"
	"errors"
	"path"
	"sync"
)

var ErrBrokerClosed = errors.New("broker closed")

type subscriber struct {
	patterns []string
	ch       chan Message
	done     <-chan struct{}
}

// MemoryBroker delivers messages in process. Used when no Redis is
// configured and in tests.
type MemoryBroker struct {
	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	closed bool
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[*subscriber]struct{})}
}

func (b *MemoryBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBrokerClosed
	}

	msg := Message{Channel: channel, Payload: append([]byte(nil), payload...)}
	for s := range b.subs {
		if !matches(s.patterns, channel) {
			continue
		}
		select {
		case s.ch <- msg:
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, patterns ...string) (<-chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBrokerClosed
	}

	s := &subscriber{patterns: patterns, ch: make(chan Message, 100), done: ctx.Done()}
	b.subs[s] = struct{}{}

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[s]; ok {
			delete(b.subs, s)
			close(s.ch)
		}
	}()
	return s.ch, nil
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for s := range b.subs {
		delete(b.subs, s)
		close(s.ch)
	}
	return nil
}

func matches(patterns []string, channel string) bool {
	for _, p := range patterns {
		if ok, _ := path.Match(p, channel); ok {
			return true
		}
	}
	return false
}
