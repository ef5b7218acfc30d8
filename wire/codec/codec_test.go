package codec

import (
	"testing"

	"discovery/wire/message"
)

func TestJSONCodec(t *testing.T) {
	jsonCodec := &JSONCodec{}

	originalEnv := &message.Envelope{
		ServiceMethod: "Discovery.GetServices",
		Payload:       []byte(`{"type":"storage"}`),
		Error:         "",
	}

	data, err := jsonCodec.Encode(originalEnv)
	if err != nil {
		t.Fatalf("JSONCodec Encode failed: %v", err)
	}

	var decodedEnv message.Envelope
	err = jsonCodec.Decode(data, &decodedEnv)
	if err != nil {
		t.Fatalf("JSONCodec Decode failed: %v", err)
	}

	if originalEnv.ServiceMethod != decodedEnv.ServiceMethod {
		t.Errorf("ServiceMethod mismatch: got %s, want %s", decodedEnv.ServiceMethod, originalEnv.ServiceMethod)
	}
	if string(originalEnv.Payload) != string(decodedEnv.Payload) {
		t.Errorf("Payload mismatch: got %s, want %s", string(decodedEnv.Payload), string(originalEnv.Payload))
	}
	if originalEnv.Error != decodedEnv.Error {
		t.Errorf("Error mismatch: got %s, want %s", decodedEnv.Error, originalEnv.Error)
	}
}

func TestBinaryCodec(t *testing.T) {
	binaryCodec := &BinaryCodec{}

	originalEnv := &message.Envelope{
		ServiceMethod: "Discovery.Put",
		Payload:       []byte(`{"nodeId":"n1"}`),
		Error:         "",
	}

	data, err := binaryCodec.Encode(originalEnv)
	if err != nil {
		t.Fatalf("BinaryCodec Encode failed: %v", err)
	}

	var decodedEnv message.Envelope
	err = binaryCodec.Decode(data, &decodedEnv)
	if err != nil {
		t.Fatalf("BinaryCodec Decode failed: %v", err)
	}

	if originalEnv.ServiceMethod != decodedEnv.ServiceMethod {
		t.Errorf("ServiceMethod mismatch: got %s, want %s", decodedEnv.ServiceMethod, originalEnv.ServiceMethod)
	}
	if string(originalEnv.Payload) != string(decodedEnv.Payload) {
		t.Errorf("Payload mismatch: got %s, want %s", string(decodedEnv.Payload), string(originalEnv.Payload))
	}
	if originalEnv.Error != decodedEnv.Error {
		t.Errorf("Error mismatch: got %s, want %s", decodedEnv.Error, originalEnv.Error)
	}
}

func TestBinaryCodecWithError(t *testing.T) {
	binaryCodec := &BinaryCodec{}

	originalEnv := &message.Envelope{
		ServiceMethod: "Discovery.Delete",
		Payload:       nil,
		Error:         "nodeId is null",
	}

	data, err := binaryCodec.Encode(originalEnv)
	if err != nil {
		t.Fatalf("BinaryCodec Encode failed: %v", err)
	}

	var decodedEnv message.Envelope
	if err := binaryCodec.Decode(data, &decodedEnv); err != nil {
		t.Fatalf("BinaryCodec Decode failed: %v", err)
	}

	if decodedEnv.Error != "nodeId is null" {
		t.Errorf("Error mismatch: got %q, want %q", decodedEnv.Error, "nodeId is null")
	}
}

func TestGetCodec(t *testing.T) {
	if GetCodec(CodecTypeJSON).Type() != CodecTypeJSON {
		t.Error("GetCodec(CodecTypeJSON) should return a JSON codec")
	}
	if GetCodec(CodecTypeBinary).Type() != CodecTypeBinary {
		t.Error("GetCodec(CodecTypeBinary) should return a binary codec")
	}
}
