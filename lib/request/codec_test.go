package request

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestRequestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		req  *Request
	}{
		{"get", NewCommand(100, Get, []byte("key"))},
		{"set", NewCommand(5, Set, []byte("key"), []byte("value"))},
		{"no args", NewCommand(1, Ping)},
		{"empty arg", NewCommand(2, Echo, []byte{})},
		{"handle", NewHandleCommand(3, MGet, 1<<40)},
		{"zero callback", NewCommand(0, Get, []byte("k"))},
		{"batch", &Request{
			CallbackIdx: 9,
			Payload: &Batch{
				Atomic: true,
				Commands: []*Command{
					{Type: Set, Args: InlineArgs{[]byte("a"), []byte("1")}},
					{Type: Incr, Args: HandleArgs(77)},
				},
				RaiseOnError: true,
				TimeoutMs:    250,
			},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := MarshalRequest(tt.req)
			assert.Len(t, encoded, SizeRequest(tt.req))

			decoded, err := UnmarshalRequest(encoded)
			require.NoError(t, err)
			assert.Equal(t, tt.req, decoded)
		})
	}
}

func TestRequestWireFormat(t *testing.T) {
	// callback_idx=1, single_command{request_type=GET, args_vec_pointer=42}
	want := []byte{0x08, 0x01, 0x12, 0x04, 0x08, 0x04, 0x18, 0x2a}
	assert.Equal(t, want, MarshalRequest(NewHandleCommand(1, Get, 42)))
}

func TestUnmarshalAliasesBody(t *testing.T) {
	encoded := MarshalRequest(NewCommand(1, Get, []byte("key")))

	req, err := UnmarshalRequest(encoded)
	require.NoError(t, err)

	args := req.Payload.(*Command).Args.(InlineArgs)
	require.Len(t, args, 1)

	// the argument must point into the encoded body
	copy(encoded[len(encoded)-3:], "KEY")
	assert.Equal(t, []byte("KEY"), args[0])
}

func TestUnknownFieldsAreSkipped(t *testing.T) {
	var cmd []byte
	cmd = protowire.AppendTag(cmd, fieldCommandRequestType, protowire.VarintType)
	cmd = protowire.AppendVarint(cmd, uint64(Del))
	cmd = protowire.AppendTag(cmd, 15, protowire.Fixed32Type)
	cmd = protowire.AppendFixed32(cmd, 0xdeadbeef)
	cmd = protowire.AppendTag(cmd, fieldCommandArgsPointer, protowire.VarintType)
	cmd = protowire.AppendVarint(cmd, 8)

	var b []byte
	b = protowire.AppendTag(b, 20, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte("ignored"))
	b = protowire.AppendTag(b, fieldRequestCallbackIdx, protowire.VarintType)
	b = protowire.AppendVarint(b, 33)
	// callback_idx with the wrong wire type is skipped as well
	b = protowire.AppendTag(b, fieldRequestCallbackIdx, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte{0x01})
	b = protowire.AppendTag(b, fieldRequestSingleCommand, protowire.BytesType)
	b = protowire.AppendBytes(b, cmd)

	req, err := UnmarshalRequest(b)
	require.NoError(t, err)
	assert.Equal(t, NewHandleCommand(33, Del, 8), req)
}

func TestEmptyBodyDecodesToEmptyRequest(t *testing.T) {
	req, err := UnmarshalRequest(nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), req.CallbackIdx)
	assert.Nil(t, req.Payload)
	assert.Empty(t, req.Commands())
}

func TestMalformedRequest(t *testing.T) {
	encoded := MarshalRequest(NewCommand(1, Get, []byte("key")))

	inputs := map[string][]byte{
		"truncated nested message": encoded[:len(encoded)-1],
		"truncated varint":         {0x08, 0x80},
		"garbage":                  {0xff, 0xff, 0xff},
		"field number zero":        {0x00, 0x01},
	}

	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := UnmarshalRequest(in)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestResponseRoundTrip(t *testing.T) {
	responses := []*Response{
		NewOKResponse(1),
		NewOKResponse(0),
		NewValueResponse(2, []byte("PONG")),
		NewValueResponse(3, []byte("a"), []byte("b")),
		NewHandleResponse(4, 123456),
		NewErrorResponse(5, ErrorExecAbort, "transaction aborted"),
		NewErrorResponse(6, ErrorUnspecified, ""),
		NewClosingResponse(7, "connection closed"),
	}

	for _, resp := range responses {
		encoded := MarshalResponse(resp)
		assert.Len(t, encoded, SizeResponse(resp))

		decoded, err := UnmarshalResponse(encoded)
		require.NoError(t, err)
		assert.Equal(t, resp, decoded)
	}
}

func TestConstantResponseIsAlwaysEmitted(t *testing.T) {
	// constant_response=OK (0) must still be present on the wire
	assert.Equal(t, []byte{0x18, 0x00}, MarshalResponse(NewOKResponse(0)))
}

func TestMalformedResponse(t *testing.T) {
	encoded := MarshalResponse(NewValueResponse(1, []byte("value")))

	_, err := UnmarshalResponse(encoded[:len(encoded)-2])
	assert.ErrorIs(t, err, ErrMalformed)
}

func BenchmarkUnmarshalRequest(b *testing.B) {
	encoded := MarshalRequest(NewCommand(1, Set, []byte("key"), make([]byte, 256)))

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := UnmarshalRequest(encoded); err != nil {
			b.Fatal(err)
		}
	}
}
