package settings_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LLIEPJIOK/service-mesh/wsprobe/pkg/settings"
)

func noEnv(string) (string, bool) { return "", false }

func env(vars map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}
}

func TestParse_Flattens(t *testing.T) {
	values, err := settings.Parse([]byte(`
ssl:
  keystore: /etc/wsprobe/client.p12
  keystore.password: changeit
  verify: true
retries: 3
empty:
`))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"ssl.keystore":          "/etc/wsprobe/client.p12",
		"ssl.keystore.password": "changeit",
		"ssl.verify":            "true",
		"retries":               "3",
		"empty":                 "",
	}, values)
}

func TestParse_Invalid(t *testing.T) {
	_, err := settings.Parse([]byte("ssl: [unclosed"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ssl:\n  keystore: a.p12\n"), 0o600))

	store, err := settings.Load(path, settings.WithLookupEnv(noEnv))
	require.NoError(t, err)

	assert.Equal(t, "a.p12", store.String("ssl.keystore", ""))
	assert.Equal(t, []string{"ssl.keystore"}, store.Keys())
}

func TestLoad_MissingOrEmptyPath(t *testing.T) {
	store, err := settings.Load("", settings.WithLookupEnv(noEnv))
	require.NoError(t, err)
	assert.Empty(t, store.Keys())

	store, err = settings.Load(filepath.Join(t.TempDir(), "absent.yaml"), settings.WithLookupEnv(noEnv))
	require.NoError(t, err)
	assert.Empty(t, store.Keys())
}

func TestLoad_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ssl: [unclosed"), 0o600))

	_, err := settings.Load(path)
	assert.ErrorContains(t, err, "failed to parse settings")
}

func TestStore_String(t *testing.T) {
	store := settings.New(map[string]string{
		"ssl.keystore": "file.p12",
		"blank":        "",
	}, settings.WithLookupEnv(noEnv))

	assert.Equal(t, "file.p12", store.String("ssl.keystore", "fallback"))
	assert.Equal(t, "fallback", store.String("missing", "fallback"))
	assert.Equal(t, "fallback", store.String("blank", "fallback"))
	assert.True(t, store.Has("blank"))
	assert.False(t, store.Has("missing"))
}

func TestStore_EnvOverride(t *testing.T) {
	store := settings.New(
		map[string]string{"ssl.keystore": "file.p12"},
		settings.WithLookupEnv(env(map[string]string{
			"WSPROBE_SSL_KEYSTORE":          "env.p12",
			"WSPROBE_SSL_KEYSTORE_PASSWORD": "secret",
		})),
	)

	assert.Equal(t, "env.p12", store.String("ssl.keystore", ""))
	assert.Equal(t, "secret", store.String("ssl.keystore.password", ""))
	assert.Equal(t, []string{"ssl.keystore"}, store.Keys())
}

func TestStore_EnvName(t *testing.T) {
	assert.Equal(t, "WSPROBE_SSL_KEYSTORE_TYPE", settings.New(nil).EnvName("ssl.keystore.type"))
	assert.Equal(t, "PROBE_LOG_LEVEL", settings.New(nil, settings.WithEnvPrefix("PROBE")).EnvName("log-level"))
	assert.Equal(t, "SSL_KEYSTORE", settings.New(nil, settings.WithEnvPrefix("")).EnvName("ssl.keystore"))
}

func TestStore_RealEnvironment(t *testing.T) {
	t.Setenv("WSPROBE_SSL_KEYSTORE_TYPE", "PEM")

	assert.Equal(t, "PEM", settings.New(nil).String("ssl.keystore.type", "PKCS12"))
}

func TestStore_Bool(t *testing.T) {
	store := settings.New(map[string]string{
		"a": "true",
		"b": "0",
		"c": "maybe",
	}, settings.WithLookupEnv(noEnv))

	assert.True(t, store.Bool("a", false))
	assert.False(t, store.Bool("b", true))
	assert.True(t, store.Bool("c", true))
	assert.False(t, store.Bool("missing", false))
}

func TestNew_CopiesValues(t *testing.T) {
	values := map[string]string{"k": "v"}
	store := settings.New(values, settings.WithLookupEnv(noEnv))

	values["k"] = "changed"

	assert.Equal(t, "v", store.String("k", ""))
}
