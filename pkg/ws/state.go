package ws

import "sync"

// ref - ячейка с атомарными чтением и записью целого значения.
type ref[T comparable] struct {
	mu sync.RWMutex
	v  T
}

func (r *ref[T]) Load() T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.v
}

func (r *ref[T]) Store(v T) {
	r.mu.Lock()
	r.v = v
	r.mu.Unlock()
}

func (r *ref[T]) Swap(v T) T {
	r.mu.Lock()
	defer r.mu.Unlock()
	old := r.v
	r.v = v
	return old
}

func (r *ref[T]) CompareAndSwap(old, v T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.v != old {
		return false
	}

	r.v = v

	return true
}

// messageQueue - неограниченная FIFO очередь: пишет горутина транспорта, читает опрашивающий.
type messageQueue struct {
	mu    sync.Mutex
	items []Message
}

func (q *messageQueue) Push(m Message) {
	q.mu.Lock()
	q.items = append(q.items, m)
	q.mu.Unlock()
}

func (q *messageQueue) Pop() (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Message{}, false
	}

	m := q.items[0]
	q.items[0] = Message{}
	q.items = q.items[1:]

	if len(q.items) == 0 {
		q.items = nil
	}

	return m, true
}

func (q *messageQueue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	return n
}

func (q *messageQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// sessionState - единственный источник истины для Client.
// Поля независимы: каждое читается и пишется целиком.
type sessionState struct {
	session ref[Session]
	lastErr ref[error]
	pending ref[Operation]
	inbound messageQueue

	// dropped - сессия, брошенная жёстким отключением; stale - она же после
	// нового Connect, когда её запоздалое закрытие уже не относится к клиенту.
	dropped ref[Session]
	stale   ref[Session]
}

func (s *sessionState) reset() {
	s.session.Store(nil)
	s.lastErr.Store(nil)
	s.pending.Store(nil)
	s.inbound.Clear()
	s.dropped.Store(nil)
	s.stale.Store(nil)
}
