package utils

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/bytedance/sonic"
)

type JSONBufferPool struct {
	pool sync.Pool
}

func (p *JSONBufferPool) Get() *bytes.Buffer {
	if buf := p.pool.Get(); buf != nil {
		return buf.(*bytes.Buffer)
	}
	return bytes.NewBuffer(make([]byte, 0, 1024))
}

func (p *JSONBufferPool) Put(buf *bytes.Buffer) {
	buf.Reset()
	if buf.Cap() < 16*1024 {
		p.pool.Put(buf)
	}
}

var jsonPool = &JSONBufferPool{}

func MarshalToBuffer(data interface{}, buf *bytes.Buffer) error {
	buf.Reset()
	encoder := sonic.ConfigDefault.NewEncoder(buf)
	return encoder.Encode(data)
}

func Marshal(data interface{}) ([]byte, error) {
	buf := jsonPool.Get()
	defer jsonPool.Put(buf)

	if err := MarshalToBuffer(data, buf); err != nil {
		return nil, err
	}

	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}

func Unmarshal[T any](data []byte, target *T) error {
	return sonic.ConfigDefault.Unmarshal(data, target)
}

// Convert re-encodes an arbitrary value into target, e.g. a document map into a struct.
func Convert[T any](source interface{}, target *T) error {
	if source == nil {
		return fmt.Errorf("source is nil")
	}

	if typed, ok := source.(*T); ok {
		*target = *typed
		return nil
	}

	raw, err := sonic.ConfigDefault.Marshal(source)
	if err != nil {
		return err
	}

	return sonic.ConfigDefault.Unmarshal(raw, target)
}

// ConvertTo is Convert for targets only known at runtime; target must be a pointer.
func ConvertTo(source interface{}, target interface{}) error {
	raw, err := sonic.ConfigDefault.Marshal(source)
	if err != nil {
		return err
	}

	return sonic.ConfigDefault.Unmarshal(raw, target)
}

// DecodeJSON unmarshals data into a runtime target; an empty body is an error.
func DecodeJSON(data []byte, target interface{}) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("body is empty")
	}

	return sonic.ConfigDefault.Unmarshal(data, target)
}
