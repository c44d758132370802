package gorilla

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/LLIEPJIOK/service-mesh/wsprobe/pkg/ws"
)

const closeWriteWait = time.Second

type session struct {
	id         string
	conn       *websocket.Conn
	closeGrace time.Duration
	logger     *slog.Logger

	open    atomic.Bool
	closing atomic.Bool

	handlersMu sync.RWMutex
	onText     func(string)
	onBinary   func([]byte)

	sendMu   sync.Mutex
	lastSend ws.Operation
	writeMu  sync.Mutex
}

func newSession(conn *websocket.Conn, opts Options) *session {
	s := &session{
		id:         uuid.NewString(),
		conn:       conn,
		closeGrace: opts.CloseGrace,
		logger:     opts.Logger,
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
	return s.send(websocket.TextMessage, []byte(payload))
}

func (s *session) SendBinary(payload []byte) (ws.Operation, error) {
	return s.send(websocket.BinaryMessage, append([]byte(nil), payload...))
}

// send ставит запись в цепочку за предыдущей, чтобы кадры уходили в порядке вызовов.
func (s *session) send(messageType int, data []byte) (ws.Operation, error) {
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

		if op.Context().Err() != nil {
			op.Complete(op.Context().Err())
			return
		}

		s.writeMu.Lock()
		err := s.conn.WriteMessage(messageType, data)
		s.writeMu.Unlock()

		op.Complete(err)
	}()

	return op, nil
}

// Close отправляет close кадр и не ждёт ответа: о закрытии сообщит readLoop.
func (s *session) Close(code ws.CloseCode, reason string) error {
	if !s.closing.CompareAndSwap(false, true) {
		return nil
	}

	s.open.Store(false)

	msg := websocket.FormatCloseMessage(int(code), reason)
	if err := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteWait)); err != nil {
		_ = s.conn.Close()
		return err
	}

	time.AfterFunc(s.closeGrace, func() { _ = s.conn.Close() })

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
		_ = s.conn.Close()
	}()

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			h.OnClose(s, s.closeReason(h, err))
			return
		}

		onText, onBinary := s.handlers()

		switch messageType {
		case websocket.TextMessage:
			if onText != nil {
				onText(string(data))
			}
		case websocket.BinaryMessage:
			if onBinary != nil {
				onBinary(data)
			}
		}
	}
}

// closeReason переводит ошибку чтения в причину закрытия. Обрыв без close
// кадра становится CLOSED_ABNORMALLY и, если закрытие не инициировано нами,
// предварительно сообщается через OnError.
func (s *session) closeReason(h ws.Handlers, err error) ws.CloseReason {
	// gorilla сам синтезирует CloseError 1006 при обрыве без close кадра.
	var ce *websocket.CloseError
	if errors.As(err, &ce) && ce.Code != websocket.CloseAbnormalClosure {
		return ws.CloseReason{Code: ws.CloseCode(ce.Code), Text: ce.Text}
	}

	if s.closing.Load() {
		s.logger.Debug("peer did not answer close frame", "session", s.id)
	} else {
		h.OnError(s, err)
	}

	return ws.CloseReason{Code: ws.CloseAbnormalClosure, Text: err.Error()}
}
