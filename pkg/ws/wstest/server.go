// Package wstest - сценарный WebSocket сервер для тестов транспортов и клиента.
//
// По умолчанию сервер возвращает каждое сообщение тем же типом кадра.
// Текстовые команды управляют сценарием:
//
//	close <code> [reason]  - закрыть соединение с кодом
//	drop                   - оборвать TCP без close кадра
//	burst <n>              - отправить n текстовых сообщений "burst-<i>"
//	protocol               - ответить согласованным subprotocol
package wstest

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/LLIEPJIOK/service-mesh/wsprobe/pkg/ws"
)

type ServerConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	Subprotocols    []string
	CheckOrigin     func(r *http.Request) bool
	// Credentials - если задано, рукопожатие требует HTTP Basic с этими данными.
	Credentials *ws.Credentials
	Logger      *slog.Logger
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(r *http.Request) bool { return true },
		Logger:          slog.Default(),
	}
}

type Server struct {
	upgrader    websocket.Upgrader
	credentials *ws.Credentials
	logger      *slog.Logger

	mu       sync.Mutex
	received []ws.Message
	conns    int
}

func NewServer(cfg ServerConfig) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			Subprotocols:    cfg.Subprotocols,
			CheckOrigin:     cfg.CheckOrigin,
		},
		credentials: cfg.Credentials,
		logger:      cfg.Logger,
	}
}

// Start поднимает httptest сервер и возвращает ws:// адрес.
func Start(t testing.TB, cfg ServerConfig) (*Server, string) {
	t.Helper()

	server := NewServer(cfg)
	ts := httptest.NewServer(server)
	t.Cleanup(ts.Close)

	return server, URL(ts.URL)
}

// URL переводит http(s) адрес httptest сервера в ws(s).
func URL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

// Received возвращает копию всех принятых сервером сообщений.
func (s *Server) Received() []ws.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ws.Message(nil), s.received...)
}

func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.credentials != nil {
		login, password, ok := r.BasicAuth()
		if !ok || login != s.credentials.Login || password != s.credentials.Password {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade connection", "error", err)
		return
	}
	defer conn.Close()

	s.mu.Lock()
	s.conns++
	s.mu.Unlock()

	s.logger.Info("client connected", "remote_addr", conn.RemoteAddr())
	defer s.logger.Info("client disconnected", "remote_addr", conn.RemoteAddr())

	s.handleConnection(r.Context(), conn)
}

func (s *Server) handleConnection(ctx context.Context, conn *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseProtocolError,
			) {
				s.logger.Error("read error", "error", err)
			}

			return
		}

		if messageType == websocket.BinaryMessage {
			s.record(ws.BinaryMessage(data))

			if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				s.logger.Error("failed to write message", "error", err)
				return
			}

			continue
		}

		text := string(data)
		s.record(ws.TextMessage(text))

		if done := s.handleCommand(conn, text); done {
			return
		}
	}
}

// handleCommand возвращает true, если соединение завершено сценарием.
func (s *Server) handleCommand(conn *websocket.Conn, text string) bool {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return s.write(conn, text)
	}

	switch fields[0] {
	case "close":
		code := websocket.CloseNormalClosure
		if len(fields) > 1 {
			if n, err := strconv.Atoi(fields[1]); err == nil {
				code = n
			}
		}

		reason := ""
		if len(fields) > 2 {
			reason = strings.Join(fields[2:], " ")
		}

		msg := websocket.FormatCloseMessage(code, reason)
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))

		// Ждём ответный close кадр клиента.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return true
			}
		}

	case "drop":
		_ = conn.UnderlyingConn().Close()
		return true

	case "burst":
		n := 0
		if len(fields) > 1 {
			n, _ = strconv.Atoi(fields[1])
		}

		for i := range n {
			if s.write(conn, "burst-"+strconv.Itoa(i)) {
				return true
			}
		}

		return false

	case "protocol":
		return s.write(conn, conn.Subprotocol())

	default:
		return s.write(conn, text)
	}
}

func (s *Server) write(conn *websocket.Conn, text string) bool {
	if err := conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		s.logger.Error("failed to write message", "error", err)
		return true
	}

	return false
}

func (s *Server) record(m ws.Message) {
	s.mu.Lock()
	s.received = append(s.received, m)
	s.mu.Unlock()
}
