package assetref

import "gopkg.in/yaml.v3"

// Color is a linear RGBA color as stored in serialized documents.
type Color struct {
	R float32 `yaml:"r"`
	G float32 `yaml:"g"`
	B float32 `yaml:"b"`
	A float32 `yaml:"a"`
}

type plainColor Color

// MarshalYAML writes the color inline, e.g. {r: 1, g: 0.5, b: 0, a: 1}.
func (c Color) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{}
	if err := node.Encode(plainColor(c)); err != nil {
		return nil, err
	}
	node.Style = yaml.FlowStyle
	return node, nil
}
