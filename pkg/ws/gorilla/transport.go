// Package gorilla реализует ws.Transport поверх github.com/gorilla/websocket.
package gorilla

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/LLIEPJIOK/service-mesh/wsprobe/pkg/ws"
	"github.com/LLIEPJIOK/service-mesh/wsprobe/pkg/ws/proxy"
)

var ErrNilConfig = errors.New("gorilla: nil connection config")

type Options struct {
	// HandshakeTimeout 0 - без ограничения, таймауты задаёт вызывающий через Cancel.
	HandshakeTimeout time.Duration
	ReadBufferSize   int
	WriteBufferSize  int
	// ReadLimit 0 - без ограничения.
	ReadLimit int64
	// CloseGrace - сколько ждать ответного close кадра, прежде чем оборвать соединение.
	CloseGrace time.Duration
	Logger     *slog.Logger
}

func DefaultOptions() Options {
	return Options{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CloseGrace:      5 * time.Second,
		Logger:          slog.Default(),
	}
}

type Transport struct {
	opts Options
}

func New(opts Options) *Transport {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.CloseGrace <= 0 {
		opts.CloseGrace = DefaultOptions().CloseGrace
	}

	return &Transport{opts: opts}
}

func (t *Transport) dialer(cfg *ws.ConnectionConfig, tlsConfig *tls.Config) *websocket.Dialer {
	return &websocket.Dialer{
		Proxy:            proxy.ForRequest,
		TLSClientConfig:  tlsConfig,
		HandshakeTimeout: t.opts.HandshakeTimeout,
		ReadBufferSize:   t.opts.ReadBufferSize,
		WriteBufferSize:  t.opts.WriteBufferSize,
		Subprotocols:     cfg.Subprotocols(),
	}
}

func (t *Transport) AsyncConnect(cfg *ws.ConnectionConfig, tlsConfig *tls.Config, h ws.Handlers) (ws.Operation, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	dialer := t.dialer(cfg, tlsConfig)
	target := cfg.String()
	header := cfg.Header()
	op := ws.NewFuture()

	go func() {
		conn, resp, err := dialer.DialContext(op.Context(), target, header)
		if err != nil {
			if resp != nil {
				err = fmt.Errorf("dial failed: %w (HTTP %d)", err, resp.StatusCode)
			} else {
				err = fmt.Errorf("dial failed: %w", err)
			}

			if op.Complete(err) {
				h.OnError(nil, err)
			}

			return
		}

		// Отмена могла выиграть гонку у рукопожатия.
		if op.Context().Err() != nil {
			_ = conn.Close()
			return
		}

		if t.opts.ReadLimit > 0 {
			conn.SetReadLimit(t.opts.ReadLimit)
		}

		s := newSession(conn, t.opts)
		h.OnOpen(s)
		op.Complete(nil)

		go s.readLoop(h)
	}()

	return op, nil
}

var _ ws.Transport = (*Transport)(nil)
