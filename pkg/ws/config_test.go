package ws_test

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LLIEPJIOK/service-mesh/wsprobe/pkg/ws"
)

func TestNormalizeURI(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"wss://example.test/socket", "wss://example.test/socket"},
		{"ws://example.test", "ws://example.test/"},
		{"  ws://example.test:8080/a?b=c  ", "ws://example.test:8080/a?b=c"},
		{"example.test:9090/ws", "ws://example.test:9090/ws"},
		{"http://example.test/ws", "ws://example.test/ws"},
		{"HTTPS://Example.TEST/ws", "wss://example.test/ws"},
		{"WSS://EXAMPLE.test", "wss://example.test/"},
		{"ws://[::1]:8080/", "ws://[::1]:8080/"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			u, err := ws.NormalizeURI(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, u.String())
		})
	}
}

func TestNormalizeURI_Invalid(t *testing.T) {
	for _, in := range []string{
		"",
		"   ",
		"ftp://example.test/",
		"ws://",
		"ws:///path",
		"ws://exa mple.test/",
		"ws://example.test/#frag",
		"ws://example.test/#",
		"://example.test",
	} {
		t.Run(in, func(t *testing.T) {
			_, err := ws.NormalizeURI(in)
			assert.ErrorIs(t, err, ws.ErrInvalidEndpoint)
		})
	}
}

func TestNewConnectionConfig(t *testing.T) {
	cfg, err := ws.NewConnectionConfig(ws.ConnectionParams{
		ServerURI:    "wss://example.test/socket",
		Subprotocols: " v2.chat, ,v1.chat,",
		Login:        "bob",
		Password:     "secret",
	})
	require.NoError(t, err)

	assert.Equal(t, "wss://example.test/socket", cfg.String())
	assert.True(t, cfg.HasSubprotocols())
	assert.Equal(t, []string{"v2.chat", "v1.chat"}, cfg.Subprotocols())

	creds, ok := cfg.Credentials()
	require.True(t, ok)
	assert.Equal(t, ws.Credentials{Login: "bob", Password: "secret"}, creds)

	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("bob:secret"))
	assert.Equal(t, want, cfg.Header().Get("Authorization"))

	_, ok = cfg.KeyStore()
	assert.False(t, ok)
}

func TestNewConnectionConfig_Minimal(t *testing.T) {
	cfg, err := ws.NewConnectionConfig(ws.ConnectionParams{ServerURI: "wss://example.test/socket"})
	require.NoError(t, err)

	assert.False(t, cfg.HasSubprotocols())
	assert.Empty(t, cfg.Subprotocols())
	assert.False(t, cfg.HasCredentials())
	assert.Empty(t, cfg.Header().Get("Authorization"))
}

func TestNewConnectionConfig_LoginWithoutPassword(t *testing.T) {
	cfg, err := ws.NewConnectionConfig(ws.ConnectionParams{ServerURI: "ws://h/", Login: "bob"})
	require.NoError(t, err)

	creds, ok := cfg.Credentials()
	require.True(t, ok)
	assert.Empty(t, creds.Password)

	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("bob:"))
	assert.Equal(t, want, cfg.Header().Get("Authorization"))
}

func TestNewConnectionConfig_InvalidEndpoint(t *testing.T) {
	_, err := ws.NewConnectionConfig(ws.ConnectionParams{ServerURI: "gopher://example.test"})
	assert.ErrorIs(t, err, ws.ErrInvalidEndpoint)
}

func TestConnectionConfig_Immutable(t *testing.T) {
	cfg, err := ws.NewConnectionConfig(ws.ConnectionParams{
		ServerURI:    "ws://example.test/a",
		Subprotocols: "x,y",
	})
	require.NoError(t, err)

	cfg.URL().Path = "/changed"
	cfg.Subprotocols()[0] = "changed"

	assert.Equal(t, "ws://example.test/a", cfg.String())
	assert.Equal(t, []string{"x", "y"}, cfg.Subprotocols())
}

func TestNewConnectionConfig_KeyStore(t *testing.T) {
	cfg, err := ws.NewConnectionConfig(ws.ConnectionParams{
		ServerURI:        "wss://example.test/",
		KeyStorePath:     "/etc/client.p12",
		KeyStorePassword: "changeit",
	})
	require.NoError(t, err)

	ks, ok := cfg.KeyStore()
	require.True(t, ok)
	assert.Equal(t, ws.KeyStore{Path: "/etc/client.p12", Password: "changeit", Type: ws.KeyStorePKCS12}, ks)
}

func TestParseKeyStoreType(t *testing.T) {
	assert.Equal(t, ws.KeyStorePKCS12, ws.ParseKeyStoreType(""))
	assert.Equal(t, ws.KeyStorePKCS12, ws.ParseKeyStoreType("p12"))
	assert.Equal(t, ws.KeyStorePKCS12, ws.ParseKeyStoreType("pfx"))
	assert.Equal(t, ws.KeyStorePEM, ws.ParseKeyStoreType(" pem "))
	assert.Equal(t, ws.KeyStoreType("JKS"), ws.ParseKeyStoreType("jks"))
}
