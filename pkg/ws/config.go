package ws

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ConnectionParams - параметры подключения в том виде, в каком их задаёт вызывающий слой.
type ConnectionParams struct {
	ServerURI        string
	Subprotocols     string // список через запятую
	Login            string
	Password         string
	KeyStorePath     string
	KeyStorePassword string
	KeyStoreType     string
}

type Credentials struct {
	Login    string
	Password string
}

// ConnectionConfig - неизменяемое описание конечной точки.
// Создаётся один раз на клиента через NewConnectionConfig.
type ConnectionConfig struct {
	uri          *url.URL
	subprotocols []string
	credentials  *Credentials
	keyStore     *KeyStore
}

func NewConnectionConfig(p ConnectionParams) (*ConnectionConfig, error) {
	u, err := NormalizeURI(p.ServerURI)
	if err != nil {
		return nil, err
	}

	cfg := &ConnectionConfig{
		uri:          u,
		subprotocols: splitSubprotocols(p.Subprotocols),
	}

	if p.Login != "" {
		cfg.credentials = &Credentials{Login: p.Login, Password: p.Password}
	}

	if p.KeyStorePath != "" {
		cfg.keyStore = &KeyStore{
			Path:     p.KeyStorePath,
			Password: p.KeyStorePassword,
			Type:     ParseKeyStoreType(p.KeyStoreType),
		}
	}

	return cfg, nil
}

// NormalizeURI приводит адрес сервера к виду ws[s]://host/path.
func NormalizeURI(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty uri", ErrInvalidEndpoint)
	}

	if !strings.Contains(raw, "://") {
		raw = "ws://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEndpoint, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "ws", "http":
		u.Scheme = "ws"
	case "wss", "https":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidEndpoint, u.Scheme)
	}

	if u.Host == "" || u.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host in %q", ErrInvalidEndpoint, raw)
	}

	if u.Fragment != "" || strings.HasSuffix(raw, "#") {
		return nil, fmt.Errorf("%w: fragment not allowed in %q", ErrInvalidEndpoint, raw)
	}

	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}

	return u, nil
}

func splitSubprotocols(list string) []string {
	var out []string

	for _, p := range strings.Split(list, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}

	return out
}

func (c *ConnectionConfig) URL() *url.URL {
	u := *c.uri
	return &u
}

func (c *ConnectionConfig) String() string {
	return c.uri.String()
}

func (c *ConnectionConfig) Subprotocols() []string {
	return append([]string(nil), c.subprotocols...)
}

func (c *ConnectionConfig) HasSubprotocols() bool {
	return len(c.subprotocols) > 0
}

func (c *ConnectionConfig) Credentials() (Credentials, bool) {
	if c.credentials == nil {
		return Credentials{}, false
	}

	return *c.credentials, true
}

func (c *ConnectionConfig) HasCredentials() bool {
	return c.credentials != nil
}

func (c *ConnectionConfig) KeyStore() (KeyStore, bool) {
	if c.keyStore == nil {
		return KeyStore{}, false
	}

	return *c.keyStore, true
}

// Header возвращает заголовки для HTTP upgrade запроса.
func (c *ConnectionConfig) Header() http.Header {
	h := http.Header{}

	if c.credentials != nil {
		token := base64.StdEncoding.EncodeToString(
			[]byte(c.credentials.Login + ":" + c.credentials.Password),
		)
		h.Set("Authorization", "Basic "+token)
	}

	return h
}
