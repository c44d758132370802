package ws

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessage_Variants(t *testing.T) {
	text := TextMessage("ping")
	assert.True(t, text.IsText())
	assert.Equal(t, MessageText, text.Kind())
	assert.Equal(t, "ping", text.Text())
	assert.Equal(t, []byte("ping"), text.Bytes())
	assert.Equal(t, 4, text.Len())
	assert.Equal(t, `text("ping")`, text.String())

	payload := []byte{0xca, 0xfe}
	bin := BinaryMessage(payload)
	payload[0] = 0
	assert.True(t, bin.IsBinary())
	assert.Empty(t, bin.Text())
	assert.Equal(t, []byte{0xca, 0xfe}, bin.Bytes())
	assert.Equal(t, "binary(cafe)", bin.String())

	out := bin.Bytes()
	out[1] = 0
	assert.Equal(t, []byte{0xca, 0xfe}, bin.Bytes(), "Bytes must return a copy")

	assert.Equal(t, "empty", Message{}.String())
}

func TestCloseCode(t *testing.T) {
	assert.False(t, CloseNormalClosure.Abnormal())
	assert.True(t, CloseGoingAway.Abnormal())
	assert.True(t, CloseAbnormalClosure.Abnormal())
	assert.Equal(t, "NORMAL_CLOSURE", CloseNormalClosure.String())
	assert.Equal(t, "CODE_4001", CloseCode(4001).String())
	assert.Equal(t, "1002 PROTOCOL_ERROR 'drop connection test step'",
		CloseReason{Code: CloseProtocolError, Text: dropReason}.String())
}

func TestCloseError(t *testing.T) {
	err := newCloseError(ErrUnexpectedClose, CloseReason{Code: CloseNormalClosure, Text: "server restart"})

	assert.Equal(t,
		"websocket connection closed unexpectedly [1000] NORMAL_CLOSURE 'server restart'",
		err.Error())
	assert.ErrorIs(t, err, ErrUnexpectedClose)
	assert.NotErrorIs(t, err, ErrAbnormalClose)
}

func TestRootCause(t *testing.T) {
	root := errors.New("root")
	wrapped := errors.Join(root)

	assert.Equal(t, root, rootCause(&wrapError{&wrapError{root}}))
	assert.Equal(t, root, rootCause(root))
	assert.Equal(t, wrapped, rootCause(wrapped), "joined errors are not unwrapped")
}

type wrapError struct{ err error }

func (e *wrapError) Error() string { return "wrap: " + e.err.Error() }
func (e *wrapError) Unwrap() error { return e.err }
