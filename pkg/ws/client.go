package ws

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/LLIEPJIOK/service-mesh/wsprobe/pkg/ws/proxy"
)

// Ключи настроек хоста, из которых берётся хранилище ключей,
// если оно не задано в параметрах подключения.
const (
	SettingKeyStore         = "ssl.keystore"
	SettingKeyStorePassword = "ssl.keystore.password"
	SettingKeyStoreType     = "ssl.keystore.type"

	dropReason = "drop connection test step"
)

// Settings - поиск настройки хоста с запасным значением.
type Settings interface {
	String(key, fallback string) string
}

type ClientConfig struct {
	Connection *ConnectionConfig
	Transport  Transport
	Settings   Settings
	Logger     *slog.Logger
}

func DefaultClientConfig(conn *ConnectionConfig, transport Transport) ClientConfig {
	return ClientConfig{
		Connection: conn,
		Transport:  transport,
		Logger:     slog.Default(),
	}
}

// Client управляет одной исходящей сессией. Все методы возвращаются сразу:
// исход асинхронных операций вызывающий узнаёт опросом IsConnected, IsFaulty,
// IsAvailable и NextMessage.
type Client struct {
	cfg       ClientConfig
	transport Transport
	tlsConfig *tls.Config
	state     sessionState
	guard     proxy.Guard
	logger    *slog.Logger
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Connection == nil {
		return nil, ErrNoConnection
	}

	if cfg.Transport == nil {
		return nil, ErrNoTransport
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	c := &Client{
		cfg:       cfg,
		transport: cfg.Transport,
		logger:    cfg.Logger,
	}

	if ks, ok := c.resolveKeyStore(); ok {
		tlsConfig, err := ks.TLSConfig()
		if err != nil {
			c.logger.Warn("error validating keystore configuration",
				slog.String("keystore", ks.Path), slog.Any("error", err))
		} else {
			c.tlsConfig = tlsConfig
		}
	}

	return c, nil
}

// resolveKeyStore: сначала параметры подключения, затем настройки хоста.
func (c *Client) resolveKeyStore() (KeyStore, bool) {
	if ks, ok := c.cfg.Connection.KeyStore(); ok {
		return ks, true
	}

	if c.cfg.Settings == nil {
		return KeyStore{}, false
	}

	path := c.cfg.Settings.String(SettingKeyStore, "")
	if path == "" {
		return KeyStore{}, false
	}

	return KeyStore{
		Path:     path,
		Password: c.cfg.Settings.String(SettingKeyStorePassword, ""),
		Type:     ParseKeyStoreType(c.cfg.Settings.String(SettingKeyStoreType, "")),
	}, true
}

func (c *Client) Connect() {
	if c.IsConnected() {
		return
	}

	c.guard.Acquire()

	if dropped := c.state.dropped.Swap(nil); dropped != nil {
		c.state.stale.Store(dropped)
	}

	c.state.lastErr.Store(nil)
	c.state.pending.Store(nil)

	c.logger.Info("connecting to server", slog.String("url", c.cfg.Connection.String()))

	op, err := c.transport.AsyncConnect(c.cfg.Connection, c.tlsConfig, c)
	if err != nil {
		cause := rootCause(err)
		c.state.lastErr.Store(fmt.Errorf("%w: %w", ErrConnectDispatch, cause))
		c.logger.Error("connect dispatch failed", "error", cause)
		c.guard.Release()
		return
	}

	c.state.pending.Store(op)
}

func (c *Client) OnOpen(s Session) {
	c.logger.Info("websocket connected",
		"success", s.IsOpen(),
		"accepted_protocol", s.Subprotocol(),
		"session", s.ID(),
	)

	s.SetMessageHandlers(
		func(payload string) { c.state.inbound.Push(TextMessage(payload)) },
		func(payload []byte) { c.state.inbound.Push(BinaryMessage(payload)) },
	)

	c.state.session.Store(s)
	c.state.lastErr.Store(nil)

	c.guard.Release()
}

func (c *Client) OnClose(s Session, reason CloseReason) {
	c.logger.Info("websocket closed",
		"status_code", int(reason.Code),
		"reason", reason.Text,
		"session", sessionID(s),
	)

	// Закрытие старой сессии после жёсткого отключения и переподключения
	// не должно трогать состояние новой, даже если новая ещё не открыта.
	if s != nil {
		if current := c.state.session.Load(); current != nil && current != s {
			c.logger.Debug("ignoring close of stale session", "session", s.ID())
			return
		}

		if c.state.stale.CompareAndSwap(s, nil) {
			c.logger.Debug("ignoring close of stale session", "session", s.ID())
			return
		}

		c.state.dropped.CompareAndSwap(s, nil)
	}

	c.state.inbound.Clear()
	c.guard.Release()

	// Ошибка фиксируется до сброса сессии: опрашивающий не должен увидеть
	// разорванное соединение без ошибки.
	switch {
	case reason.Code.Abnormal():
		c.state.lastErr.Store(newCloseError(ErrAbnormalClose, reason))
	case !isDone(c.state.pending.Load()):
		c.state.lastErr.Store(newCloseError(ErrUnexpectedClose, reason))
	}

	c.state.session.Store(nil)
}

func (c *Client) OnError(s Session, cause error) {
	c.logger.Error("websocket error", "error", cause, "session", sessionID(s))

	c.guard.Release()
	c.state.lastErr.Store(fmt.Errorf("%w: %w", ErrTransport, cause))
}

// Disconnect при harsh=false просит штатное закрытие и ждёт OnClose,
// при harsh=true закрывает с PROTOCOL_ERROR и сразу забывает сессию.
func (c *Client) Disconnect(harsh bool) {
	s := c.state.session.Load()
	if s == nil {
		return
	}

	code := CloseNormalClosure
	if harsh {
		code = CloseProtocolError
		if c.state.session.CompareAndSwap(s, nil) {
			c.state.dropped.Store(s)
		}
	}

	if err := s.Close(code, dropReason); err != nil {
		c.logger.Error("failed to close session", "error", err, "harsh", harsh)
	}
}

// Dispose можно вызывать многократно и из любого состояния.
func (c *Client) Dispose() {
	c.guard.Release()

	if s := c.state.session.Swap(nil); s != nil {
		if err := s.Close(CloseNormalClosure, ""); err != nil {
			c.logger.Error("failed to close session on dispose", "error", err)
		}
	}

	c.state.reset()
}

func (c *Client) SendMessage(m Message) {
	s := c.state.session.Load()
	if s == nil || !s.IsOpen() {
		return
	}

	c.state.lastErr.Store(nil)
	c.state.pending.Store(nil)

	var (
		op  Operation
		err error
	)

	switch m.Kind() {
	case MessageText:
		op, err = s.SendText(m.Text())
	case MessageBinary:
		op, err = s.SendBinary(m.Bytes())
	default:
		err = fmt.Errorf("unknown message kind %v", m.Kind())
	}

	if err != nil {
		c.logger.Error("send dispatch failed", "error", err)
		dispatchErr := fmt.Errorf("%w: %w", ErrSendDispatch, err)
		c.state.lastErr.Store(dispatchErr)
		op = FailedOperation(dispatchErr)
	}

	c.state.pending.Store(op)
}

// Cancel прерывает последнюю операцию. Отменённое подключение не вызывает
// ни одного обработчика транспорта, поэтому подмену прокси снимает сам Cancel.
func (c *Client) Cancel() {
	op := c.state.pending.Load()
	if op == nil {
		return
	}

	op.Cancel()

	if c.state.session.Load() == nil {
		c.guard.Release()
	}
}

func (c *Client) IsConnected() bool {
	s := c.state.session.Load()
	return s != nil && s.IsOpen()
}

func (c *Client) IsFaulty() bool {
	return c.state.lastErr.Load() != nil
}

// IsAvailable сообщает, завершилась ли последняя операция успешно.
// Ошибка завершившейся операции переносится в LastError.
func (c *Client) IsAvailable() bool {
	op := c.state.pending.Load()
	if op == nil {
		return true
	}

	if !isDone(op) {
		return false
	}

	if err := op.Err(); err != nil {
		c.state.lastErr.Store(err)

		// Подключение завершилось неудачей без сессии.
		if c.state.session.Load() == nil {
			c.guard.Release()
		}

		return false
	}

	return true
}

func (c *Client) NextMessage() (Message, bool) {
	return c.state.inbound.Pop()
}

func (c *Client) PendingMessages() int {
	return c.state.inbound.Len()
}

func (c *Client) LastError() error {
	return c.state.lastErr.Load()
}

// Await опрашивает cond с интервалом interval, пока он не вернёт true или не
// истечёт ctx. Сам клиент этим не пользуется: это помощник для вызывающих,
// которым ожидание допустимо.
func (c *Client) Await(ctx context.Context, interval time.Duration, cond func(*Client) bool) error {
	if cond(c) {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if cond(c) {
				return nil
			}
		}
	}
}

func sessionID(s Session) string {
	if s == nil {
		return ""
	}

	return s.ID()
}
