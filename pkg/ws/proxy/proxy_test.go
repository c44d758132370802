package proxy_test

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LLIEPJIOK/service-mesh/wsprobe/pkg/ws/proxy"
)

func resetDefault(t *testing.T) {
	t.Helper()

	prev := proxy.Default()
	proxy.SetDefault(nil)
	t.Cleanup(func() { proxy.SetDefault(prev) })
}

func TestNoProxy(t *testing.T) {
	target, _ := url.Parse("https://example.test/socket")

	p, err := proxy.NoProxy()(target)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestGuard_InstallsNoProxyAndRestores(t *testing.T) {
	resetDefault(t)

	var g proxy.Guard
	g.Acquire()

	assert.True(t, g.Active())
	assert.NotNil(t, proxy.Default())

	g.Release()

	assert.False(t, g.Active())
	assert.Nil(t, proxy.Default())
}

func TestGuard_ReleaseIdempotent(t *testing.T) {
	resetDefault(t)

	var g proxy.Guard
	g.Release()
	g.Acquire()
	g.Release()

	fixed, _ := url.Parse("http://proxy.test:3128")
	proxy.SetDefault(func(*url.URL) (*url.URL, error) { return fixed, nil })

	g.Release()

	require.NotNil(t, proxy.Default(), "second release must not clobber a newer selector")
}

func TestGuard_KeepsConfiguredSelector(t *testing.T) {
	resetDefault(t)

	fixed, _ := url.Parse("http://proxy.test:3128")
	proxy.SetDefault(func(*url.URL) (*url.URL, error) { return fixed, nil })

	var g proxy.Guard
	g.Acquire()

	assert.False(t, g.Active())

	got, err := proxy.Default()(&url.URL{Scheme: "https", Host: "example.test"})
	require.NoError(t, err)
	assert.Equal(t, fixed, got)

	g.Release()
	assert.NotNil(t, proxy.Default())
}

func TestGuard_AcquireTwice(t *testing.T) {
	resetDefault(t)

	var g proxy.Guard
	g.Acquire()
	g.Acquire()
	g.Release()

	assert.Nil(t, proxy.Default())
}

func TestForRequest(t *testing.T) {
	resetDefault(t)

	fixed, _ := url.Parse("http://proxy.test:3128")
	proxy.SetDefault(func(*url.URL) (*url.URL, error) { return fixed, nil })

	req, err := http.NewRequest(http.MethodGet, "https://example.test/", nil)
	require.NoError(t, err)

	got, err := proxy.ForRequest(req)
	require.NoError(t, err)
	assert.Equal(t, fixed, got)

	proxy.SetDefault(proxy.NoProxy())

	got, err = proxy.ForRequest(req)
	require.NoError(t, err)
	assert.Nil(t, got)
}
