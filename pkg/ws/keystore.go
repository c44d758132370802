package ws

import (
	"crypto/tls"
	"encoding/pem"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/pkcs12"
)

type KeyStoreType string

const (
	KeyStorePKCS12 KeyStoreType = "PKCS12"
	KeyStorePEM    KeyStoreType = "PEM"

	DefaultKeyStoreType = KeyStorePKCS12
)

func ParseKeyStoreType(s string) KeyStoreType {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return DefaultKeyStoreType
	case "PKCS12", "P12", "PFX":
		return KeyStorePKCS12
	case "PEM":
		return KeyStorePEM
	default:
		return KeyStoreType(strings.ToUpper(strings.TrimSpace(s)))
	}
}

// KeyStore - клиентский сертификат и ключ для взаимного TLS.
type KeyStore struct {
	Path     string
	Password string
	Type     KeyStoreType
}

// TLSConfig загружает хранилище и собирает из него tls.Config.
func (k KeyStore) TLSConfig() (*tls.Config, error) {
	data, err := os.ReadFile(k.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keystore: %w", err)
	}

	var cert tls.Certificate

	switch k.Type {
	case KeyStorePKCS12, "":
		cert, err = certificateFromPKCS12(data, k.Password)
	case KeyStorePEM:
		cert, err = tls.X509KeyPair(data, data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKeyStore, k.Type)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load %s keystore %s: %w", k.Type, k.Path, err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

func certificateFromPKCS12(data []byte, password string) (tls.Certificate, error) {
	blocks, err := pkcs12.ToPEM(data, password)
	if err != nil {
		return tls.Certificate{}, err
	}

	var bundle []byte
	for _, b := range blocks {
		bundle = append(bundle, pem.EncodeToMemory(b)...)
	}

	return tls.X509KeyPair(bundle, bundle)
}
