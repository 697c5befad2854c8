// Package props turns arbitrary event bodies into the property map that
// sinks consume.
//
// A body is encoded to JSON, decoded back into a generic Value and, when the
// result is an object, returned as Properties. Any other top-level value is
// wrapped under the root key:
//
//	props.Canonicalize(map[string]string{"value": "1"}) // {"value":"1"}
//	props.Canonicalize("hello")                        // {"body":"hello"}
package props

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
)

// DefaultRootKey wraps bodies that do not encode to a JSON object.
const DefaultRootKey = "body"

var rootKey atomic.Pointer[string]

// RootKey returns the process-wide wrapping key.
func RootKey() string {
	if k := rootKey.Load(); k != nil {
		return *k
	}
	return DefaultRootKey
}

// SetRootKey changes the process-wide wrapping key. An empty key restores
// DefaultRootKey.
func SetRootKey(k string) {
	if k == "" {
		rootKey.Store(nil)
		return
	}
	rootKey.Store(&k)
}

// Encoder serializes a body to JSON.
type Encoder func(any) ([]byte, error)

// EncoderProvider is implemented by bodies that need a custom encoder.
type EncoderProvider interface {
	Encoder() Encoder
}

// JSON is the default Encoder.
func JSON(v any) ([]byte, error) { return json.Marshal(v) }

// EncodeError reports a body that could not be canonicalized.
type EncodeError struct {
	Body any
	Err  error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("props: can't serialize %T: %v", e.Body, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// IsEncodeError reports whether err came from a failed canonicalization.
func IsEncodeError(err error) bool {
	var ee *EncodeError
	return errors.As(err, &ee)
}

// Canonicalize converts body using the process-wide root key. The encoder is
// taken from body when it implements EncoderProvider.
func Canonicalize(body any) (Properties, error) {
	return CanonicalizeWith(body, RootKey(), nil)
}

// CanonicalizeWith converts body using rootKey and enc. A nil enc selects the
// body's own encoder, if any, and falls back to JSON.
func CanonicalizeWith(body any, rootKey string, enc Encoder) (Properties, error) {
	if enc == nil {
		enc = encoderFor(body)
	}
	if rootKey == "" {
		rootKey = DefaultRootKey
	}
	data, err := enc(body)
	if err != nil {
		return nil, &EncodeError{Body: body, Err: err}
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, &EncodeError{Body: body, Err: fmt.Errorf("decode encoder output: %w", err)}
	}
	if dec.More() {
		return nil, &EncodeError{Body: body, Err: errors.New("encoder output has trailing data")}
	}
	v, err := FromInterface(raw)
	if err != nil {
		return nil, &EncodeError{Body: body, Err: err}
	}
	if obj, ok := v.AsObject(); ok {
		return obj, nil
	}
	return Properties{rootKey: v}, nil
}

func encoderFor(body any) Encoder {
	if p, ok := body.(EncoderProvider); ok {
		if enc := p.Encoder(); enc != nil {
			return enc
		}
	}
	return JSON
}
