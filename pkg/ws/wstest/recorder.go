package wstest

import (
	"sync"
	"testing"
	"time"

	"github.com/LLIEPJIOK/service-mesh/wsprobe/pkg/ws"
)

const waitTimeout = 5 * time.Second

// Recorder - ws.Handlers, который складывает события в каналы для проверок в тестах.
type Recorder struct {
	openOnce sync.Once
	opened   chan struct{}

	mu      sync.Mutex
	session ws.Session
	errs    []error

	closes   chan ws.CloseReason
	errors   chan error
	messages chan ws.Message
}

func NewRecorder() *Recorder {
	return &Recorder{
		opened:   make(chan struct{}),
		closes:   make(chan ws.CloseReason, 8),
		errors:   make(chan error, 8),
		messages: make(chan ws.Message, 1024),
	}
}

func (r *Recorder) OnOpen(s ws.Session) {
	s.SetMessageHandlers(
		func(payload string) { r.messages <- ws.TextMessage(payload) },
		func(payload []byte) { r.messages <- ws.BinaryMessage(payload) },
	)

	r.mu.Lock()
	r.session = s
	r.mu.Unlock()

	r.openOnce.Do(func() { close(r.opened) })
}

func (r *Recorder) OnClose(_ ws.Session, reason ws.CloseReason) {
	select {
	case r.closes <- reason:
	default:
	}
}

func (r *Recorder) OnError(_ ws.Session, err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()

	select {
	case r.errors <- err:
	default:
	}
}

func (r *Recorder) Opened() bool {
	select {
	case <-r.opened:
		return true
	default:
		return false
	}
}

func (r *Recorder) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

func (r *Recorder) WaitOpen(t testing.TB) ws.Session {
	t.Helper()

	select {
	case <-r.opened:
	case <-time.After(waitTimeout):
		t.Fatal("session was not opened")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

func (r *Recorder) WaitClose(t testing.TB) ws.CloseReason {
	t.Helper()

	select {
	case reason := <-r.closes:
		return reason
	case <-time.After(waitTimeout):
		t.Fatal("session was not closed")
		return ws.CloseReason{}
	}
}

func (r *Recorder) WaitError(t testing.TB) error {
	t.Helper()

	select {
	case err := <-r.errors:
		return err
	case <-time.After(waitTimeout):
		t.Fatal("no error reported")
		return nil
	}
}

func (r *Recorder) WaitMessage(t testing.TB) ws.Message {
	t.Helper()

	select {
	case m := <-r.messages:
		return m
	case <-time.After(waitTimeout):
		t.Fatal("no message received")
		return ws.Message{}
	}
}

// WaitDone ждёт завершения операции и возвращает её ошибку.
func WaitDone(t testing.TB, op ws.Operation) error {
	t.Helper()

	select {
	case <-op.Done():
		return op.Err()
	case <-time.After(waitTimeout):
		t.Fatal("operation did not complete")
		return nil
	}
}
