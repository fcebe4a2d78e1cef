package invoker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// Mapper decodes JSON documents into declared types and encodes results back to JSON.
type Mapper interface {
	Decode(data []byte, target reflect.Type) (reflect.Value, error)
	Encode(v any) ([]byte, error)
}

// JSONMapper is the default Mapper, backed by encoding/json. Numbers decoded into
// interface values are kept as json.Number.
type JSONMapper struct {
	// DisallowUnknownFields rejects object keys with no matching struct field.
	DisallowUnknownFields bool
}

// Decode unmarshals data into a new value of type target.
func (m JSONMapper) Decode(data []byte, target reflect.Type) (reflect.Value, error) {
	ptr := reflect.New(target)
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if m.DisallowUnknownFields {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(ptr.Interface()); err != nil {
		return reflect.Value{}, err
	}
	if dec.More() {
		return reflect.Value{}, fmt.Errorf("%s - trailing data after JSON value", logPrefix)
	}
	return ptr.Elem(), nil
}

// Encode marshals v.
func (JSONMapper) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}
