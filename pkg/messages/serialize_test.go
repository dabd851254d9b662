package messages

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeDeserializeFrame(t *testing.T) {
	data, err := SerializeFrame(FrameTypeClientHello, &ClientHello{UserID: "u1", Name: "Alice"})
	require.NoError(t, err)

	frame, err := DeserializeFrame(data)
	require.NoError(t, err)
	assert.Equal(t, FrameTypeClientHello, frame.Type)

	hello := &ClientHello{}
	require.NoError(t, json.Unmarshal(frame.Payload, hello))
	assert.Equal(t, "u1", hello.UserID)
	assert.Equal(t, "Alice", hello.Name)
}

func TestSerializeFrame_NilPayload(t *testing.T) {
	data, err := SerializeFrame(FrameTypeClientPing, nil)
	require.NoError(t, err)

	frame, err := DeserializeFrame(data)
	require.NoError(t, err)
	assert.Equal(t, FrameTypeClientPing, frame.Type)
	assert.Nil(t, frame.Payload)
}

func TestDeserializeFrame_Invalid(t *testing.T) {
	_, err := DeserializeFrame([]byte("{not json"))
	assert.Error(t, err)

	_, err = DeserializeFrame([]byte(`{"payload":{}}`))
	assert.Error(t, err, "a frame without a type is not routable")
}
