package messages

import (
	"encoding/json"
	"fmt"
)

// SerializeFrame builds a wire frame of the given type around the
// payload.
func SerializeFrame(frameType string, payload interface{}) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %v", frameType, err)
		}
		raw = b
	}

	b, err := json.Marshal(&Frame{
		Type:    frameType,
		Payload: raw,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal frame: %v", err)
	}

	return b, nil
}

// DeserializeFrame parses a wire frame. Callers decode Frame.Payload
// according to Frame.Type.
func DeserializeFrame(data []byte) (*Frame, error) {
	frame := &Frame{}
	if err := json.Unmarshal(data, frame); err != nil {
		return nil, fmt.Errorf("failed to unmarshal frame: %v", err)
	}
	if frame.Type == "" {
		return nil, fmt.Errorf("frame has no type")
	}
	return frame, nil
}
