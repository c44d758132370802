package ws

import (
	"encoding/hex"
	"fmt"
)

type MessageKind int

const (
	MessageText MessageKind = iota + 1
	MessageBinary
)

func (k MessageKind) String() string {
	switch k {
	case MessageText:
		return "text"
	case MessageBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// Message - входящее или исходящее сообщение: либо текст, либо бинарные данные.
// Значение неизменяемо, бинарный payload копируется на входе и выходе.
type Message struct {
	kind MessageKind
	text string
	data []byte
}

func TextMessage(payload string) Message {
	return Message{kind: MessageText, text: payload}
}

func BinaryMessage(payload []byte) Message {
	return Message{kind: MessageBinary, data: append([]byte(nil), payload...)}
}

func (m Message) Kind() MessageKind {
	return m.kind
}

func (m Message) IsText() bool {
	return m.kind == MessageText
}

func (m Message) IsBinary() bool {
	return m.kind == MessageBinary
}

// Text возвращает payload текстового сообщения и пустую строку для бинарного.
func (m Message) Text() string {
	return m.text
}

// Bytes возвращает копию payload; для текста - его UTF-8 байты.
func (m Message) Bytes() []byte {
	if m.kind == MessageText {
		return []byte(m.text)
	}

	return append([]byte(nil), m.data...)
}

func (m Message) Len() int {
	if m.kind == MessageText {
		return len(m.text)
	}

	return len(m.data)
}

func (m Message) String() string {
	switch m.kind {
	case MessageText:
		return fmt.Sprintf("text(%q)", m.text)
	case MessageBinary:
		return fmt.Sprintf("binary(%s)", hex.EncodeToString(m.data))
	default:
		return "empty"
	}
}
