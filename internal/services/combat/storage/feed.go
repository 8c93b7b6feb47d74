package storage

import (
	"context"
	"sync"
)

const subscriberBuffer = 16

// Feed decorates a Store and broadcasts every committed snapshot to
// subscribers. Snapshots carry the whole document, so a subscriber that falls
// behind loses intermediate versions but never sees a partial one.
type Feed struct {
	Store

	mu     sync.Mutex
	nextID int
	subs   map[int]chan Snapshot
}

// NewFeed wraps store.
func NewFeed(store Store) *Feed {
	return &Feed{Store: store, subs: make(map[int]chan Snapshot)}
}

// Update commits through the wrapped store and publishes the result.
func (f *Feed) Update(ctx context.Context, scope string, fn UpdateFunc) (Snapshot, error) {
	snap, err := f.Store.Update(ctx, scope, fn)
	if err != nil {
		return snap, err
	}
	f.publish(snap)
	return snap, nil
}

// Subscribe returns a channel of committed snapshots and a cancel func that
// closes it.
func (f *Feed) Subscribe() (<-chan Snapshot, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	ch := make(chan Snapshot, subscriberBuffer)
	f.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if _, ok := f.subs[id]; !ok {
				return
			}
			delete(f.subs, id)
			close(ch)
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Close closes every subscription and the wrapped store.
func (f *Feed) Close() error {
	f.mu.Lock()
	for id, ch := range f.subs {
		delete(f.subs, id)
		close(ch)
	}
	f.mu.Unlock()
	return f.Store.Close()
}

func (f *Feed) publish(snap Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		select {
		case ch <- snap:
		default:
			// Drop the oldest pending snapshot to make room for the newest.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
