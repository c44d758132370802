package ws_test

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LLIEPJIOK/service-mesh/wsprobe/pkg/logging"
	"github.com/LLIEPJIOK/service-mesh/wsprobe/pkg/settings"
	"github.com/LLIEPJIOK/service-mesh/wsprobe/pkg/ws"
	"github.com/LLIEPJIOK/service-mesh/wsprobe/pkg/ws/gorilla"
)

// writePEMKeyStore создаёт самоподписанный сертификат и пишет его вместе с ключом в один PEM файл.
func writePEMKeyStore(t *testing.T) string {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "wsprobe-client"},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: der}))
	require.NoError(t, pem.Encode(&buf, &pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}))

	path := filepath.Join(t.TempDir(), "client.pem")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	return path
}

func TestKeyStore_PEM(t *testing.T) {
	path := writePEMKeyStore(t)

	cfg, err := ws.KeyStore{Path: path, Type: ws.KeyStorePEM}.TLSConfig()
	require.NoError(t, err)
	require.Len(t, cfg.Certificates, 1)
}

func TestKeyStore_Errors(t *testing.T) {
	garbage := filepath.Join(t.TempDir(), "garbage.p12")
	require.NoError(t, os.WriteFile(garbage, []byte("not a keystore"), 0o600))

	_, err := ws.KeyStore{Path: filepath.Join(t.TempDir(), "missing.p12")}.TLSConfig()
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = ws.KeyStore{Path: garbage, Type: ws.KeyStorePKCS12}.TLSConfig()
	assert.Error(t, err)

	_, err = ws.KeyStore{Path: garbage, Type: ws.KeyStorePEM}.TLSConfig()
	assert.Error(t, err)

	_, err = ws.KeyStore{Path: garbage, Type: "JKS"}.TLSConfig()
	assert.ErrorIs(t, err, ws.ErrUnsupportedKeyStore)
}

func TestNewClient_InvalidKeyStoreOnlyWarns(t *testing.T) {
	conn, err := ws.NewConnectionConfig(ws.ConnectionParams{
		ServerURI:    "wss://example.test/",
		KeyStorePath: filepath.Join(t.TempDir(), "missing.p12"),
	})
	require.NoError(t, err)

	var logs bytes.Buffer
	cfg := ws.DefaultClientConfig(conn, gorilla.New(gorilla.DefaultOptions()))
	cfg.Logger = logging.New(logging.Config{Level: logging.LevelDebug, Output: &logs})

	client, err := ws.NewClient(cfg)
	require.NoError(t, err)
	require.NotNil(t, client)

	assert.Contains(t, logs.String(), "error validating keystore configuration")
}

func TestNewClient_KeyStoreFromSettings(t *testing.T) {
	path := writePEMKeyStore(t)

	conn, err := ws.NewConnectionConfig(ws.ConnectionParams{ServerURI: "wss://example.test/"})
	require.NoError(t, err)

	store := settings.New(map[string]string{
		ws.SettingKeyStore:     path,
		ws.SettingKeyStoreType: "PEM",
	}, settings.WithLookupEnv(func(string) (string, bool) { return "", false }))

	var logs bytes.Buffer
	cfg := ws.DefaultClientConfig(conn, gorilla.New(gorilla.DefaultOptions()))
	cfg.Settings = store
	cfg.Logger = logging.New(logging.Config{Level: logging.LevelDebug, Output: &logs})

	_, err = ws.NewClient(cfg)
	require.NoError(t, err)

	assert.NotContains(t, logs.String(), "error validating keystore configuration")
}
