package ws

import "crypto/tls"

// Transport - асинхронная WebSocket библиотека за интерфейсом возможностей.
// AsyncConnect не блокирует: рукопожатие и чтение выполняются в горутинах транспорта,
// результат приходит через Handlers и возвращённую Operation.
type Transport interface {
	AsyncConnect(cfg *ConnectionConfig, tlsConfig *tls.Config, h Handlers) (Operation, error)
}

// Session - одно живое соединение, созданное транспортом.
type Session interface {
	ID() string
	IsOpen() bool
	Subprotocol() string
	// SetMessageHandlers регистрирует обработчики входящих кадров.
	// Транспорт вызывает их последовательно, в порядке доставки.
	SetMessageHandlers(onText func(string), onBinary func([]byte))
	SendText(payload string) (Operation, error)
	SendBinary(payload []byte) (Operation, error)
	Close(code CloseCode, reason string) error
}

// Handlers вызываются из горутин транспорта, а не из горутины вызывающего.
type Handlers interface {
	OnOpen(s Session)
	OnClose(s Session, reason CloseReason)
	OnError(s Session, cause error)
}
