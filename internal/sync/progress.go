package sync

import "sync"

// ProgressSink is a single-writer, many-reader broadcast of Snapshot
// values for one account. New subscribers immediately receive the latest
// published snapshot on attach (spec.md §9: "Consumers subscribe and
// receive the latest snapshot on attach").
type ProgressSink struct {
	mu       sync.Mutex
	latest   Snapshot
	hasValue bool
	subs     []chan Snapshot
}

// NewProgressSink creates an empty ProgressSink.
func NewProgressSink() *ProgressSink {
	return &ProgressSink{}
}

// Publish sends snap to every current subscriber and records it as the
// latest value for future subscribers. Sends are non-blocking: a
// subscriber that falls behind drops intermediate snapshots rather than
// stalling the publisher, since only the latest state matters to a UI.
func (s *ProgressSink) Publish(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latest = snap
	s.hasValue = true

	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
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

// Subscribe returns a channel that receives every future Publish call,
// pre-seeded with the latest snapshot if one exists. Call the returned
// function to unsubscribe and release the channel.
func (s *ProgressSink) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if s.hasValue {
		ch <- s.latest
	}

	s.subs = append(s.subs, ch)

	unsubscribe := func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		for i, c := range s.subs {
			if c == ch {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				break
			}
		}

		close(ch)
	}

	return ch, unsubscribe
}
