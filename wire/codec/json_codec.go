package codec

import (
	"encoding/json"
)

// JSONCodec serializes with encoding/json. Human-readable and easy to debug
// at the cost of payload size and reflection overhead.
type JSONCodec struct{}

func (c *JSONCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (c *JSONCodec) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (c *JSONCodec) Type() CodecType {
	return CodecTypeJSON
}
