package member

import (
	"context"
	"sync"

	"policardmed/internal/member/models"
)

// broadcaster fans full snapshots out to subscribers. Each subscriber has a
// one-slot mailbox that always holds the newest undelivered snapshot.
type broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*subscriber
}

type subscriber struct {
	mailbox chan []*models.Member
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]*subscriber)}
}

// add registers a subscriber primed with initial and returns its stream. The
// stream closes when ctx is done.
func (b *broadcaster) add(ctx context.Context, initial []*models.Member) <-chan models.Snapshot {
	sub := &subscriber{mailbox: make(chan []*models.Member, 1)}
	sub.mailbox <- initial

	b.mu.Lock()
	subID := b.nextID
	b.nextID++
	b.subs[subID] = sub
	b.mu.Unlock()

	out := make(chan models.Snapshot)
	go func() {
		defer close(out)
		defer b.remove(subID)
		for {
			select {
			case <-ctx.Done():
				return
			case members := <-sub.mailbox:
				select {
				case out <- models.Snapshot{Members: members}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (b *broadcaster) remove(subID int) {
	b.mu.Lock()
	delete(b.subs, subID)
	b.mu.Unlock()
}

// publish replaces each subscriber's pending snapshot with members. Every
// subscriber receives its own deep copy.
func (b *broadcaster) publish(members []*models.Member) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		copyOf := make([]*models.Member, len(members))
		for i, m := range members {
			copyOf[i] = m.Clone()
		}
		select {
		case <-sub.mailbox:
		default:
		}
		sub.mailbox <- copyOf
	}
}

func (b *broadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
