package ws

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidEndpoint     = errors.New("invalid endpoint")
	ErrConnectDispatch     = errors.New("connect dispatch failed")
	ErrSendDispatch        = errors.New("send dispatch failed")
	ErrAbnormalClose       = errors.New("websocket connection closed abnormally")
	ErrUnexpectedClose     = errors.New("websocket connection closed unexpectedly")
	ErrTransport           = errors.New("transport error")
	ErrConnectionClosed    = errors.New("connection closed")
	ErrNoTransport         = errors.New("transport is required")
	ErrNoConnection        = errors.New("connection config is required")
	ErrUnsupportedKeyStore = errors.New("unsupported keystore type")
)

// CloseError описывает закрытие сессии, признанное ошибкой.
// Classification - ErrAbnormalClose или ErrUnexpectedClose.
type CloseError struct {
	Reason         CloseReason
	Classification error
}

func newCloseError(classification error, reason CloseReason) *CloseError {
	return &CloseError{Reason: reason, Classification: classification}
}

func (e *CloseError) Error() string {
	msg := fmt.Sprintf("%v [%d] %s", e.Classification, int(e.Reason.Code), e.Reason.Code)
	if e.Reason.Text != "" {
		msg += fmt.Sprintf(" '%s'", e.Reason.Text)
	}

	return msg
}

func (e *CloseError) Unwrap() error {
	return e.Classification
}

// rootCause разворачивает цепочку до самой глубокой причины.
func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}

		err = next
	}
}
