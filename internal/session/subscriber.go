// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import "sync"

// subscriber buffers updates for one consumer. push never blocks; a pump
// goroutine feeds out at the consumer's pace.
type subscriber struct {
	mu      sync.Mutex
	queue   []Update
	closing bool

	wake     chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
	out      chan Update
}

func newSubscriber() *subscriber {
	s := &subscriber{
		wake:   make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		out:    make(chan Update),
	}
	go s.pump()
	return s
}

// push queues u. A snapshot replaces a queued snapshot of the same
// conversation if it is the last thing in the queue.
func (s *subscriber) push(u Update) {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return
	}
	if n := len(s.queue); n > 0 && u.Kind == UpdatePartial {
		last := &s.queue[n-1]
		if last.Kind == UpdatePartial && last.ConversationID == u.ConversationID {
			*last = u
			s.mu.Unlock()
			return
		}
	}
	s.queue = append(s.queue, u)
	s.mu.Unlock()
	s.signal()
}

func (s *subscriber) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// finish delivers what is queued, then closes out.
func (s *subscriber) finish() {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.signal()
}

// stop closes out without delivering the rest of the queue.
func (s *subscriber) stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *subscriber) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			closing := s.closing
			s.mu.Unlock()
			if closing {
				return
			}
			select {
			case <-s.wake:
				continue
			case <-s.stopCh:
				return
			}
		}
		u := s.queue[0]
		s.queue[0] = Update{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- u:
		case <-s.stopCh:
			return
		}
	}
}
