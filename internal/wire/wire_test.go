package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeArgRoundTrip(t *testing.T) {
	data := []byte{0x00, 0xFF, 0x10, 0x20}
	encoded := EncodeArg(data)
	decoded, err := DecodeArg(encoded)
	require.NoError(t, err)
	assert.Equal(t, data, decoded)
}

func TestDecodeArgRejectsInvalidBase64(t *testing.T) {
	_, err := DecodeArg("not valid base64!!!")
	assert.Error(t, err)
}

func TestMarshalChunksSplitsEvenly(t *testing.T) {
	data := make([]byte, 10)
	for i := range data {
		data[i] = byte(i)
	}
	chunks := MarshalChunks(data, 4)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 4)
	assert.Len(t, chunks[1], 4)
	assert.Len(t, chunks[2], 2)

	var reassembled []byte
	for _, c := range chunks {
		reassembled = append(reassembled, c...)
	}
	assert.Equal(t, data, reassembled)
}

func TestMarshalChunksZeroMaxReturnsWholeInput(t *testing.T) {
	data := []byte{1, 2, 3}
	chunks := MarshalChunks(data, 0)
	require.Len(t, chunks, 1)
	assert.Equal(t, data, chunks[0])
}

func TestMarshalChunksEmptyInputYieldsOneEmptyChunk(t *testing.T) {
	chunks := MarshalChunks(nil, 4)
	require.Len(t, chunks, 1)
	assert.Empty(t, chunks[0])
}

func TestMarshalJSONEncodesRequest(t *testing.T) {
	req := Request{Method: MethodQuery, ClientID: "alice", Args: []string{"abc"}}
	b, err := MarshalJSON(req)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"method":"Query"`)
	assert.Contains(t, string(b), `"client_id":"alice"`)
}
