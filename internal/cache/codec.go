package cache

import "encoding/json"

// Codec converts a cached value to and from its durable representation.
// Each call site supplies the codec for its value type.
type Codec[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(data []byte) (T, error)
}

// JSONCodec encodes values with encoding/json.
type JSONCodec[T any] struct{}

func (JSONCodec[T]) Encode(v T) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec[T]) Decode(data []byte) (T, error) {
	var v T
	err := json.Unmarshal(data, &v)
	return v, err
}

// CodecFunc adapts a pair of functions into a Codec.
type CodecFunc[T any] struct {
	EncodeFunc func(T) ([]byte, error)
	DecodeFunc func([]byte) (T, error)
}

func (c CodecFunc[T]) Encode(v T) ([]byte, error)     { return c.EncodeFunc(v) }
func (c CodecFunc[T]) Decode(data []byte) (T, error) { return c.DecodeFunc(data) }
