package coder

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	cws "github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/LLIEPJIOK/service-mesh/wsprobe/pkg/ws"
)

type session struct {
	id     string
	conn   *cws.Conn
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	open    atomic.Bool
	closing atomic.Bool
	local   atomic.Pointer[ws.CloseReason]

	handlersMu sync.RWMutex
	onText     func(string)
	onBinary   func([]byte)

	sendMu   sync.Mutex
	lastSend ws.Operation
}

func newSession(conn *cws.Conn, logger *slog.Logger) *session {
	ctx, cancel := context.WithCancel(context.Background())

	s := &session{
		id:     uuid.NewString(),
		conn:   conn,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	s.open.Store(true)

	return s
}

func (s *session) ID() string {
	return s.id
}

func (s *session) IsOpen() bool {
	return s.open.Load()
}

func (s *session) Subprotocol() string {
	return s.conn.Subprotocol()
}

func (s *session) SetMessageHandlers(onText func(string), onBinary func([]byte)) {
	s.handlersMu.Lock()
	s.onText = onText
	s.onBinary = onBinary
	s.handlersMu.Unlock()
}

func (s *session) SendText(payload string) (ws.Operation, error) {
	return s.send(cws.MessageText, []byte(payload))
}

func (s *session) SendBinary(payload []byte) (ws.Operation, error) {
	return s.send(cws.MessageBinary, append([]byte(nil), payload...))
}

func (s *session) send(messageType cws.MessageType, data []byte) (ws.Operation, error) {
	if !s.open.Load() {
		return nil, ws.ErrConnectionClosed
	}

	op := ws.NewFuture()

	s.sendMu.Lock()
	prev := s.lastSend
	s.lastSend = op
	s.sendMu.Unlock()

	go func() {
		if prev != nil {
			<-prev.Done()
		}

		// Отмена операции прерывает запись через её контекст.
		op.Complete(s.conn.Write(op.Context(), messageType, data))
	}()

	return op, nil
}

// Close у coder/websocket ждёт завершения рукопожатия, поэтому выполняется в фоне.
func (s *session) Close(code ws.CloseCode, reason string) error {
	if !s.closing.CompareAndSwap(false, true) {
		return nil
	}

	s.open.Store(false)
	s.local.Store(&ws.CloseReason{Code: code, Text: reason})

	go func() {
		if err := s.conn.Close(cws.StatusCode(code), reason); err != nil {
			s.logger.Debug("close handshake failed", "session", s.id, "error", err)
		}
	}()

	return nil
}

func (s *session) handlers() (func(string), func([]byte)) {
	s.handlersMu.RLock()
	defer s.handlersMu.RUnlock()
	return s.onText, s.onBinary
}

func (s *session) readLoop(h ws.Handlers) {
	defer func() {
		s.open.Store(false)
		s.cancel()
	}()

	for {
		messageType, data, err := s.conn.Read(s.ctx)
		if err != nil {
			h.OnClose(s, s.closeReason(h, err))
			_ = s.conn.CloseNow()
			return
		}

		onText, onBinary := s.handlers()

		switch messageType {
		case cws.MessageText:
			if onText != nil {
				onText(string(data))
			}
		case cws.MessageBinary:
			if onBinary != nil {
				onBinary(data)
			}
		}
	}
}

func (s *session) closeReason(h ws.Handlers, err error) ws.CloseReason {
	if reason, ok := closeStatus(err); ok {
		return reason
	}

	if local := s.local.Load(); local != nil {
		return *local
	}

	h.OnError(s, err)

	return ws.CloseReason{Code: ws.CloseAbnormalClosure, Text: err.Error()}
}
