package codec

import (
	"encoding/binary"
	"errors"

	"discovery/wire/message"
)

// BinaryCodec lays the envelope out as three length-prefixed fields:
// ServiceMethod (2-byte length), Payload (4-byte length), Error (2-byte
// length). Smaller and faster than JSON, but only understands envelopes.
type BinaryCodec struct{}

func (c *BinaryCodec) Encode(v any) ([]byte, error) {
	env, ok := v.(*message.Envelope)
	if !ok {
		return nil, errors.New("BinaryCodec: v must be *Envelope")
	}

	total := 2 + len(env.ServiceMethod) + 4 + len(env.Payload) + 2 + len(env.Error)
	buf := make([]byte, total)

	offset := 0
	binary.BigEndian.PutUint16(buf[offset:offset+2], uint16(len(env.ServiceMethod)))
	offset += 2
	copy(buf[offset:offset+len(env.ServiceMethod)], []byte(env.ServiceMethod))
	offset += len(env.ServiceMethod)

	binary.BigEndian.PutUint32(buf[offset:offset+4], uint32(len(env.Payload)))
	offset += 4
	copy(buf[offset:offset+len(env.Payload)], env.Payload)
	offset += len(env.Payload)

	binary.BigEndian.PutUint16(buf[offset:offset+2], uint16(len(env.Error)))
	offset += 2
	copy(buf[offset:offset+len(env.Error)], []byte(env.Error))
	return buf, nil
}

func (c *BinaryCodec) Decode(data []byte, v any) error {
	env, ok := v.(*message.Envelope)
	if !ok {
		return errors.New("BinaryCodec: v must be *Envelope")
	}

	offset := 0

	strLen := binary.BigEndian.Uint16(data[offset : offset+2])
	offset += 2
	env.ServiceMethod = string(data[offset : offset+int(strLen)])
	offset += int(strLen)

	payloadLen := binary.BigEndian.Uint32(data[offset : offset+4])
	offset += 4
	env.Payload = make([]byte, payloadLen)
	copy(env.Payload, data[offset:offset+int(payloadLen)])
	offset += int(payloadLen)

	errLen := binary.BigEndian.Uint16(data[offset : offset+2])
	offset += 2
	env.Error = string(data[offset : offset+int(errLen)])

	return nil
}

func (c *BinaryCodec) Type() CodecType {
	return CodecTypeBinary
}
