package ws

import "fmt"

// CloseCode - код закрытия WebSocket по RFC 6455.
type CloseCode int

const (
	CloseNormalClosure      CloseCode = 1000
	CloseGoingAway          CloseCode = 1001
	CloseProtocolError      CloseCode = 1002
	CloseUnsupportedData    CloseCode = 1003
	CloseNoStatusReceived   CloseCode = 1005
	CloseAbnormalClosure    CloseCode = 1006
	CloseInvalidPayload     CloseCode = 1007
	ClosePolicyViolation    CloseCode = 1008
	CloseMessageTooBig      CloseCode = 1009
	CloseMandatoryExtension CloseCode = 1010
	CloseInternalError      CloseCode = 1011
	CloseServiceRestart     CloseCode = 1012
	CloseTryAgainLater      CloseCode = 1013
	CloseTLSHandshake       CloseCode = 1015
)

func (c CloseCode) String() string {
	switch c {
	case CloseNormalClosure:
		return "NORMAL_CLOSURE"
	case CloseGoingAway:
		return "GOING_AWAY"
	case CloseProtocolError:
		return "PROTOCOL_ERROR"
	case CloseUnsupportedData:
		return "CANNOT_ACCEPT"
	case CloseNoStatusReceived:
		return "NO_STATUS_CODE"
	case CloseAbnormalClosure:
		return "CLOSED_ABNORMALLY"
	case CloseInvalidPayload:
		return "NOT_CONSISTENT"
	case ClosePolicyViolation:
		return "VIOLATED_POLICY"
	case CloseMessageTooBig:
		return "TOO_BIG"
	case CloseMandatoryExtension:
		return "NO_EXTENSION"
	case CloseInternalError:
		return "UNEXPECTED_CONDITION"
	case CloseServiceRestart:
		return "SERVICE_RESTART"
	case CloseTryAgainLater:
		return "TRY_AGAIN_LATER"
	case CloseTLSHandshake:
		return "TLS_HANDSHAKE_FAILURE"
	default:
		return fmt.Sprintf("CODE_%d", int(c))
	}
}

// Abnormal сообщает, сигнализирует ли код об ошибке, а не о штатном завершении.
// Всё, что численно больше NORMAL_CLOSURE, считается аварийным.
func (c CloseCode) Abnormal() bool {
	return c > CloseNormalClosure
}

type CloseReason struct {
	Code CloseCode
	Text string
}

func (r CloseReason) String() string {
	if r.Text == "" {
		return fmt.Sprintf("%d %s", int(r.Code), r.Code)
	}

	return fmt.Sprintf("%d %s '%s'", int(r.Code), r.Code, r.Text)
}
