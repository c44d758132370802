// Package settings - настройки хоста: значения из YAML файла, поверх которых
// действуют переменные окружения, и запасное значение, если ключ не задан.
//
// Ключи плоские, через точку: вложенный YAML
//
//	ssl:
//	  keystore: /etc/wsprobe/client.p12
//
// даёт ключ "ssl.keystore", который переопределяется переменной
// WSPROBE_SSL_KEYSTORE.
package settings

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const DefaultEnvPrefix = "WSPROBE"

// Store неизменяем после создания и безопасен для конкурентного чтения.
type Store struct {
	values    map[string]string
	envPrefix string
	lookupEnv func(string) (string, bool)
}

type Option func(*Store)

func WithEnvPrefix(prefix string) Option {
	return func(s *Store) { s.envPrefix = prefix }
}

// WithLookupEnv подменяет источник окружения (для тестов).
func WithLookupEnv(fn func(string) (string, bool)) Option {
	return func(s *Store) { s.lookupEnv = fn }
}

func New(values map[string]string, opts ...Option) *Store {
	s := &Store{
		values:    make(map[string]string, len(values)),
		envPrefix: DefaultEnvPrefix,
		lookupEnv: os.LookupEnv,
	}

	maps.Copy(s.values, values)

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Load читает YAML файл. Отсутствующий файл не ошибка: получаются пустые настройки.
func Load(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return New(nil, opts...), nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return New(nil, opts...), nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	values, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse settings %s: %w", path, err)
	}

	return New(values, opts...), nil
}

// Parse разворачивает YAML документ в плоские ключи.
func Parse(data []byte) (map[string]string, error) {
	var root map[string]any
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}

	values := make(map[string]string)
	flatten("", root, values)

	return values, nil
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}

		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case nil:
			out[key] = ""
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}

// EnvName - имя переменной окружения, переопределяющей ключ.
func (s *Store) EnvName(key string) string {
	name := strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
	if s.envPrefix == "" {
		return name
	}

	return s.envPrefix + "_" + name
}

func (s *Store) lookup(key string) (string, bool) {
	if v, ok := s.lookupEnv(s.EnvName(key)); ok {
		return v, true
	}

	v, ok := s.values[key]

	return v, ok
}

// String возвращает значение ключа или fallback, если ключ не задан или пуст.
func (s *Store) String(key, fallback string) string {
	if v, ok := s.lookup(key); ok && v != "" {
		return v
	}

	return fallback
}

func (s *Store) Bool(key string, fallback bool) bool {
	v, ok := s.lookup(key)
	if !ok {
		return fallback
	}

	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}

	return b
}

func (s *Store) Has(key string) bool {
	_, ok := s.lookup(key)
	return ok
}

// Keys возвращает отсортированные ключи из файла (без учёта окружения).
func (s *Store) Keys() []string {
	return slices.Sorted(maps.Keys(s.values))
}
