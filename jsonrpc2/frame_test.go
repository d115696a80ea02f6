package jsonrpc2

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFrameClassification(t *testing.T) {
	tests := []struct {
		name string
		line string
		kind MessageKind
	}{
		{"request", `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`, KindRequest},
		{"request with params", `{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"list_dir"}}`, KindRequest},
		{"notification", `{"jsonrpc":"2.0","method":"notifications/initialized"}`, KindNotification},
		{"result", `{"jsonrpc":"2.0","id":1,"result":{"ok":true}}`, KindResponse},
		{"error", `{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"Method not found"}}`, KindResponse},
		{"empty object", `{}`, KindInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := DecodeFrame([]byte(tt.line))
			require.NoError(t, err)
			assert.Equal(t, tt.kind, msg.Kind())
		})
	}
}

func TestDecodeFrameMalformed(t *testing.T) {
	for _, line := range []string{
		`{"jsonrpc":"2.0","id":`,
		`[1,2,3]`,
		`"just a string"`,
		`42`,
	} {
		_, err := DecodeFrame([]byte(line))
		var framingErr *FramingError
		assert.ErrorAs(t, err, &framingErr, "line %q", line)
	}
}

func TestDecodeFrameNullResult(t *testing.T) {
	msg, err := DecodeFrame([]byte(`{"jsonrpc":"2.0","id":3,"result":null}`))
	require.NoError(t, err)
	// A null result is still a terminal frame for id 3.
	assert.Equal(t, KindResponse, msg.Kind())
	assert.Equal(t, "null", string(msg.Result))
}
