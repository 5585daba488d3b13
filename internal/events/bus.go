// Package events provides an in-process implementation of domain.EventBus.
// It carries trade, portfolio, and market events from the core services to
// the WebSocket hub and the notifier without requiring an external broker.
package events

import (
	"context"
	"sync"

	"github.com/eguzmanz/dexdash/internal/domain"
)

// subscriber is a single subscription to one channel.
type subscriber struct {
	ch     chan []byte
	cancel <-chan struct{}
}

// Bus is a channel-based pub/sub bus. Publish never blocks: messages for
// slow subscribers are dropped once their buffer fills, mirroring the
// drop-on-full behavior of the WebSocket hub.
type Bus struct {
	mu   sync.RWMutex
	subs map[string][]*subscriber
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]*subscriber)}
}

// Publish delivers payload to every current subscriber of channel.
func (b *Bus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs[channel] {
		select {
		case <-sub.cancel:
		case sub.ch <- payload:
		default:
			// Subscriber buffer full; drop rather than block the publisher.
		}
	}
	return nil
}

// Subscribe registers a new subscription to channel. The returned channel is
// closed when ctx is cancelled.
func (b *Bus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	sub := &subscriber{
		ch:     make(chan []byte, 128),
		cancel: ctx.Done(),
	}

	b.mu.Lock()
	b.subs[channel] = append(b.subs[channel], sub)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		list := b.subs[channel]
		for i, s := range list {
			if s == sub {
				b.subs[channel] = append(list[:i], list[i+1:]...)
				break
			}
		}
		b.mu.Unlock()
		close(sub.ch)
	}()

	return sub.ch, nil
}

// Compile-time interface check.
var _ domain.EventBus = (*Bus)(nil)
