package domain

import (
	"bytes"
	"encoding/json"
)

type presence uint8

const (
	absent presence = iota
	null
	set
)

// Optional distinguishes "no change requested" (zero value), an explicit
// clear (Null) and a concrete value (Some).
type Optional[T any] struct {
	state presence
	value T
}

func Some[T any](v T) Optional[T] { return Optional[T]{state: set, value: v} }

func Null[T any]() Optional[T] { return Optional[T]{state: null} }

func Absent[T any]() Optional[T] { return Optional[T]{} }

func (o Optional[T]) IsAbsent() bool { return o.state == absent }

func (o Optional[T]) IsNull() bool { return o.state == null }

// Get returns the value and true only when the option holds a value.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.state == set
}

// IsZero lets `omitzero` drop absent fields when marshalling.
func (o Optional[T]) IsZero() bool { return o.state == absent }

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if o.state != set {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

// UnmarshalJSON is only invoked for keys present in the document, so a
// missing key stays absent.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		o.state, o.value = null, zero
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.state, o.value = set, v
	return nil
}
