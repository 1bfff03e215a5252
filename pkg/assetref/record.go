// Package assetref converts typed asset handles to and from the inline
// reference records ({fileID, guid, type}) used by serialized documents, and
// defines the single-byte encoding for closed enumerations.
package assetref

import (
	"strconv"

	"gopkg.in/yaml.v3"
)

// Record is the on-disk reference to another asset.
type Record struct {
	FileID uint32 `yaml:"fileID" json:"fileID"`
	GUID   string `yaml:"guid,omitempty" json:"guid,omitempty"`
	Type   uint8  `yaml:"type,omitempty" json:"type,omitempty"`
}

// IsNull reports whether r is the null reference {fileID: 0}.
func (r Record) IsNull() bool {
	return r.FileID == 0 && r.GUID == ""
}

// MarshalYAML emits the record in flow style, matching how the host format
// writes inline references. The null reference is written as {fileID: 0}.
func (r Record) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Style: yaml.FlowStyle}
	node.Content = append(node.Content, scalar("fileID"), uintScalar(uint64(r.FileID)))
	if !r.IsNull() {
		node.Content = append(node.Content,
			scalar("guid"), scalar(r.GUID),
			scalar("type"), uintScalar(uint64(r.Type)),
		)
	}
	return node, nil
}

type plainRecord Record

// UnmarshalYAML decodes a reference mapping; missing keys take their zero value.
func (r *Record) UnmarshalYAML(node *yaml.Node) error {
	var p plainRecord
	if err := node.Decode(&p); err != nil {
		return err
	}
	*r = Record(p)
	return nil
}

func scalar(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}

func uintScalar(value uint64) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatUint(value, 10)}
}
