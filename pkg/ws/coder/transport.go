// Package coder реализует ws.Transport поверх github.com/coder/websocket.
package coder

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	cws "github.com/coder/websocket"

	"github.com/LLIEPJIOK/service-mesh/wsprobe/pkg/ws"
	"github.com/LLIEPJIOK/service-mesh/wsprobe/pkg/ws/proxy"
)

var ErrNilConfig = errors.New("coder: nil connection config")

const defaultReadLimit = 32 << 20

type Options struct {
	// ReadLimit - максимальный размер входящего сообщения.
	ReadLimit int64
	Logger    *slog.Logger
}

func DefaultOptions() Options {
	return Options{
		ReadLimit: defaultReadLimit,
		Logger:    slog.Default(),
	}
}

type Transport struct {
	opts Options
}

func New(opts Options) *Transport {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.ReadLimit <= 0 {
		opts.ReadLimit = defaultReadLimit
	}

	return &Transport{opts: opts}
}

func httpClient(tlsConfig *tls.Config) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:           proxy.ForRequest,
			TLSClientConfig: tlsConfig,
		},
	}
}

func (t *Transport) AsyncConnect(cfg *ws.ConnectionConfig, tlsConfig *tls.Config, h ws.Handlers) (ws.Operation, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	target := cfg.String()
	dialOpts := &cws.DialOptions{
		HTTPClient:   httpClient(tlsConfig),
		HTTPHeader:   cfg.Header(),
		Subprotocols: cfg.Subprotocols(),
	}
	op := ws.NewFuture()

	go func() {
		conn, resp, err := cws.Dial(op.Context(), target, dialOpts)
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

		if op.Context().Err() != nil {
			_ = conn.CloseNow()
			return
		}

		conn.SetReadLimit(t.opts.ReadLimit)

		s := newSession(conn, t.opts.Logger)
		h.OnOpen(s)
		op.Complete(nil)

		go s.readLoop(h)
	}()

	return op, nil
}

var _ ws.Transport = (*Transport)(nil)

func closeStatus(err error) (ws.CloseReason, bool) {
	var ce cws.CloseError
	if errors.As(err, &ce) {
		return ws.CloseReason{Code: ws.CloseCode(ce.Code), Text: ce.Reason}, true
	}

	return ws.CloseReason{}, false
}
