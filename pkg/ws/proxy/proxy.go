// Package proxy хранит процессный селектор прокси, через который транспорты
// выбирают прокси для рукопожатия, и Guard, временно подменяющий его на время
// одной попытки подключения.
//
// Селектор глобален для процесса: несколько клиентов, одновременно
// подключающихся в одном процессе, делят одно значение. Guard восстанавливает
// то значение, которое видел при Acquire, поэтому перекрывающиеся попытки
// разных клиентов могут вернуть чужое значение.
package proxy

import (
	"net/http"
	"net/url"
	"sync"

	"golang.org/x/net/http/httpproxy"
)

// Selector возвращает прокси для целевого адреса или nil для прямого соединения.
type Selector func(target *url.URL) (*url.URL, error)

var (
	defaultMu       sync.RWMutex
	defaultSelector Selector
)

// Default возвращает текущий процессный селектор или nil, если он не задан.
func Default() Selector {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultSelector
}

func SetDefault(s Selector) {
	defaultMu.Lock()
	defaultSelector = s
	defaultMu.Unlock()
}

// NoProxy - селектор, всегда выбирающий прямое соединение.
func NoProxy() Selector {
	return Selector((&httpproxy.Config{}).ProxyFunc())
}

// FromEnvironment читает HTTP_PROXY, HTTPS_PROXY и NO_PROXY.
func FromEnvironment() Selector {
	return Selector(httpproxy.FromEnvironment().ProxyFunc())
}

// ForRequest адаптирует процессный селектор к сигнатуре http.Transport.Proxy.
// Без заданного селектора используется окружение.
func ForRequest(r *http.Request) (*url.URL, error) {
	if s := Default(); s != nil {
		return s(r.URL)
	}

	return http.ProxyFromEnvironment(r)
}

// Guard ставит NoProxy, если процессный селектор не задан, и возвращает
// прежнее значение ровно один раз. Повторный Release ничего не делает.
type Guard struct {
	mu         sync.Mutex
	overridden bool
	prior      Selector
}

func (g *Guard) Acquire() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.overridden {
		return
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultSelector != nil {
		return
	}

	g.prior = defaultSelector
	g.overridden = true
	defaultSelector = NoProxy()
}

func (g *Guard) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.overridden {
		return
	}

	SetDefault(g.prior)
	g.overridden = false
	g.prior = nil
}

// Active сообщает, установлена ли подмена.
func (g *Guard) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.overridden
}
