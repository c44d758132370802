package ws

import (
	"context"
	"sync"
)

// Operation - дескриптор асинхронной операции подключения или отправки.
// Err имеет смысл только после закрытия Done.
type Operation interface {
	Done() <-chan struct{}
	Err() error
	Cancel()
}

// Future - общая реализация Operation для транспортов.
// Завершается ровно один раз: первый Complete или Cancel побеждает.
type Future struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	err    error
}

func NewFuture() *Future {
	ctx, cancel := context.WithCancel(context.Background())

	return &Future{
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// FailedOperation возвращает уже завершённую с ошибкой операцию.
func FailedOperation(err error) *Future {
	f := NewFuture()
	f.Complete(err)

	return f
}

// Context отменяется при Cancel или завершении; транспорт прерывает по нему работу.
func (f *Future) Context() context.Context {
	return f.ctx
}

// Complete фиксирует результат. Возвращает false, если результат уже был зафиксирован.
func (f *Future) Complete(err error) bool {
	completed := false

	f.once.Do(func() {
		f.err = err
		completed = true
		close(f.done)
		f.cancel()
	})

	return completed
}

func (f *Future) Cancel() {
	f.Complete(context.Canceled)
}

func (f *Future) Done() <-chan struct{} {
	return f.done
}

func (f *Future) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

// isDone: отсутствие операции считается завершённой операцией.
func isDone(op Operation) bool {
	if op == nil {
		return true
	}

	select {
	case <-op.Done():
		return true
	default:
		return false
	}
}
