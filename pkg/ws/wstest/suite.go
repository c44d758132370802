package wstest

import (
	"context"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LLIEPJIOK/service-mesh/wsprobe/pkg/logging"
	"github.com/LLIEPJIOK/service-mesh/wsprobe/pkg/ws"
)

// RunTransportSuite проверяет общий контракт ws.Transport против сценарного сервера.
func RunTransportSuite(t *testing.T, newTransport func() ws.Transport) {
	t.Run("EchoText", func(t *testing.T) { testEchoText(t, newTransport()) })
	t.Run("EchoBinary", func(t *testing.T) { testEchoBinary(t, newTransport()) })
	t.Run("SendOrder", func(t *testing.T) { testSendOrder(t, newTransport()) })
	t.Run("Burst", func(t *testing.T) { testBurst(t, newTransport()) })
	t.Run("Subprotocol", func(t *testing.T) { testSubprotocol(t, newTransport()) })
	t.Run("BasicAuth", func(t *testing.T) { testBasicAuth(t, newTransport()) })
	t.Run("Unauthorized", func(t *testing.T) { testUnauthorized(t, newTransport()) })
	t.Run("Refused", func(t *testing.T) { testRefused(t, newTransport()) })
	t.Run("CancelConnect", func(t *testing.T) { testCancelConnect(t, newTransport()) })
	t.Run("ServerClose", func(t *testing.T) { testServerClose(t, newTransport()) })
	t.Run("Drop", func(t *testing.T) { testDrop(t, newTransport()) })
	t.Run("LocalClose", func(t *testing.T) { testLocalClose(t, newTransport()) })
	t.Run("NilConfig", func(t *testing.T) { testNilConfig(t, newTransport()) })
}

func quietServer() ServerConfig {
	cfg := DefaultServerConfig()
	cfg.Logger = logging.Nop()
	return cfg
}

func connection(t *testing.T, p ws.ConnectionParams) *ws.ConnectionConfig {
	t.Helper()

	cfg, err := ws.NewConnectionConfig(p)
	require.NoError(t, err)

	return cfg
}

func dial(t *testing.T, tr ws.Transport, cfg *ws.ConnectionConfig) (*Recorder, ws.Session) {
	t.Helper()

	rec := NewRecorder()

	op, err := tr.AsyncConnect(cfg, nil, rec)
	require.NoError(t, err)
	require.NoError(t, WaitDone(t, op))

	s := rec.WaitOpen(t)
	require.True(t, s.IsOpen())
	require.NotEmpty(t, s.ID())

	t.Cleanup(func() { _ = s.Close(ws.CloseNormalClosure, "") })

	return rec, s
}

func testEchoText(t *testing.T, tr ws.Transport) {
	_, url := Start(t, quietServer())
	rec, s := dial(t, tr, connection(t, ws.ConnectionParams{ServerURI: url}))

	op, err := s.SendText("hello")
	require.NoError(t, err)
	require.NoError(t, WaitDone(t, op))

	m := rec.WaitMessage(t)
	assert.True(t, m.IsText())
	assert.Equal(t, "hello", m.Text())
}

func testEchoBinary(t *testing.T, tr ws.Transport) {
	_, url := Start(t, quietServer())
	rec, s := dial(t, tr, connection(t, ws.ConnectionParams{ServerURI: url}))

	op, err := s.SendBinary([]byte{0, 1, 2, 0xff})
	require.NoError(t, err)
	require.NoError(t, WaitDone(t, op))

	m := rec.WaitMessage(t)
	assert.True(t, m.IsBinary())
	assert.Equal(t, []byte{0, 1, 2, 0xff}, m.Bytes())
}

func testSendOrder(t *testing.T, tr ws.Transport) {
	server, url := Start(t, quietServer())
	rec, s := dial(t, tr, connection(t, ws.ConnectionParams{ServerURI: url}))

	const n = 50

	ops := make([]ws.Operation, 0, n)
	for i := range n {
		op, err := s.SendText("msg-" + strconv.Itoa(i))
		require.NoError(t, err)
		ops = append(ops, op)
	}

	for _, op := range ops {
		require.NoError(t, WaitDone(t, op))
	}

	for i := range n {
		assert.Equal(t, "msg-"+strconv.Itoa(i), rec.WaitMessage(t).Text())
	}

	assert.Len(t, server.Received(), n)
}

func testBurst(t *testing.T, tr ws.Transport) {
	_, url := Start(t, quietServer())
	rec, s := dial(t, tr, connection(t, ws.ConnectionParams{ServerURI: url}))

	_, err := s.SendText("burst 20")
	require.NoError(t, err)

	for i := range 20 {
		assert.Equal(t, "burst-"+strconv.Itoa(i), rec.WaitMessage(t).Text())
	}
}

func testSubprotocol(t *testing.T, tr ws.Transport) {
	cfg := quietServer()
	cfg.Subprotocols = []string{"v2.chat"}
	_, url := Start(t, cfg)

	rec, s := dial(t, tr, connection(t, ws.ConnectionParams{
		ServerURI:    url,
		Subprotocols: "v1.chat,v2.chat",
	}))

	assert.Equal(t, "v2.chat", s.Subprotocol())

	_, err := s.SendText("protocol")
	require.NoError(t, err)
	assert.Equal(t, "v2.chat", rec.WaitMessage(t).Text())
}

func testBasicAuth(t *testing.T, tr ws.Transport) {
	cfg := quietServer()
	cfg.Credentials = &ws.Credentials{Login: "probe", Password: "secret"}
	server, url := Start(t, cfg)

	dial(t, tr, connection(t, ws.ConnectionParams{
		ServerURI: url,
		Login:     "probe",
		Password:  "secret",
	}))

	assert.Eventually(t, func() bool { return server.Connections() == 1 }, waitTimeout, 10*time.Millisecond)
}

func testUnauthorized(t *testing.T, tr ws.Transport) {
	cfg := quietServer()
	cfg.Credentials = &ws.Credentials{Login: "probe", Password: "secret"}
	server, url := Start(t, cfg)

	rec := NewRecorder()

	op, err := tr.AsyncConnect(connection(t, ws.ConnectionParams{ServerURI: url}), nil, rec)
	require.NoError(t, err)

	opErr := WaitDone(t, op)
	require.Error(t, opErr)
	assert.Contains(t, opErr.Error(), "401")

	assert.Equal(t, opErr, rec.WaitError(t))
	assert.False(t, rec.Opened())
	assert.Zero(t, server.Connections())
}

func testRefused(t *testing.T, tr ws.Transport) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	rec := NewRecorder()

	op, err := tr.AsyncConnect(connection(t, ws.ConnectionParams{ServerURI: "ws://" + addr}), nil, rec)
	require.NoError(t, err)

	require.Error(t, WaitDone(t, op))
	require.Error(t, rec.WaitError(t))
	assert.False(t, rec.Opened())
}

// testCancelConnect: сервер принимает TCP, но не отвечает на рукопожатие.
func testCancelConnect(t *testing.T, tr ws.Transport) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	var (
		mu    sync.Mutex
		conns []net.Conn
	)

	t.Cleanup(func() {
		mu.Lock()
		defer mu.Unlock()

		for _, c := range conns {
			_ = c.Close()
		}
	})

	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}

			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()

	rec := NewRecorder()

	op, err := tr.AsyncConnect(connection(t, ws.ConnectionParams{ServerURI: "ws://" + l.Addr().String()}), nil, rec)
	require.NoError(t, err)

	op.Cancel()

	assert.ErrorIs(t, WaitDone(t, op), context.Canceled)
	assert.Never(t, rec.Opened, 200*time.Millisecond, 20*time.Millisecond)
	assert.Empty(t, rec.Errors(), "a cancelled connect is not a transport error")
}

func testServerClose(t *testing.T, tr ws.Transport) {
	_, url := Start(t, quietServer())
	rec, s := dial(t, tr, connection(t, ws.ConnectionParams{ServerURI: url}))

	_, err := s.SendText("close 4001 going away")
	require.NoError(t, err)

	reason := rec.WaitClose(t)
	assert.Equal(t, ws.CloseCode(4001), reason.Code)
	assert.Equal(t, "going away", reason.Text)
	assert.Empty(t, rec.Errors())

	assert.Eventually(t, func() bool { return !s.IsOpen() }, waitTimeout, 10*time.Millisecond)
}

func testDrop(t *testing.T, tr ws.Transport) {
	_, url := Start(t, quietServer())
	rec, s := dial(t, tr, connection(t, ws.ConnectionParams{ServerURI: url}))

	_, err := s.SendText("drop")
	require.NoError(t, err)

	require.Error(t, rec.WaitError(t))
	assert.Equal(t, ws.CloseAbnormalClosure, rec.WaitClose(t).Code)
}

func testLocalClose(t *testing.T, tr ws.Transport) {
	_, url := Start(t, quietServer())
	rec, s := dial(t, tr, connection(t, ws.ConnectionParams{ServerURI: url}))

	require.NoError(t, s.Close(ws.CloseProtocolError, "bye"))
	assert.False(t, s.IsOpen())

	_, err := s.SendText("late")
	assert.ErrorIs(t, err, ws.ErrConnectionClosed)

	assert.Equal(t, ws.CloseProtocolError, rec.WaitClose(t).Code)
	assert.Empty(t, rec.Errors())

	require.NoError(t, s.Close(ws.CloseNormalClosure, ""), "second close is a no-op")
}

func testNilConfig(t *testing.T, tr ws.Transport) {
	_, err := tr.AsyncConnect(nil, nil, NewRecorder())
	assert.Error(t, err)
}
