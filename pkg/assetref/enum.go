package assetref

import (
	"gopkg.in/yaml.v3"
)

// ByteCodable is implemented by closed enumerations stored as a single byte.
// FromByte reports false for undeclared discriminants; Fallback names the
// variant used in that case.
type ByteCodable[E any] interface {
	Byte() uint8
	FromByte(b uint8) (E, bool)
	Fallback() E
}

// Enum boxes an enumeration so it serializes as its discriminant.
type Enum[E ByteCodable[E]] struct {
	Value E
}

// NewEnum boxes v.
func NewEnum[E ByteCodable[E]](v E) Enum[E] {
	return Enum[E]{Value: v}
}

// EncodeEnum returns v's discriminant.
func EncodeEnum[E ByteCodable[E]](v E) uint8 {
	return v.Byte()
}

// DecodeEnum returns the variant for b, or the fallback variant when b is
// not declared. It never fails.
func DecodeEnum[E ByteCodable[E]](b uint8) E {
	var zero E
	if v, ok := zero.FromByte(b); ok {
		return v
	}
	return zero.Fallback()
}

func (e Enum[E]) MarshalYAML() (interface{}, error) {
	return EncodeEnum(e.Value), nil
}

// UnmarshalYAML requires an unsigned byte; unknown values map to the fallback.
func (e *Enum[E]) UnmarshalYAML(node *yaml.Node) error {
	var b uint8
	if err := node.Decode(&b); err != nil {
		return err
	}
	e.Value = DecodeEnum[E](b)
	return nil
}
