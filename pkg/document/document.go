// Package document loads typed projections out of host documents and writes
// partial updates back without disturbing the header lines or any field the
// typed value does not declare.
//
// A host document is three opaque header lines followed by a YAML body whose
// top-level mapping holds a container key (MonoBehaviour by default). Typed
// values are read from and merged into the mapping under that key. Any YAML
// documents after the first are carried through untouched.
package document

import (
	"bytes"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/jingkaihe/unityscope/pkg/unityerr"
)

const (
	// DefaultContainerKey is the top-level key holding caller-defined fields.
	DefaultContainerKey = "MonoBehaviour"
	// HeaderLines is the number of leading lines passed through verbatim.
	HeaderLines = 3
)

// Document is a parsed host document.
type Document struct {
	Path   string
	Header string
	root   yaml.Node
	// later documents in the same file, written back byte for byte
	trailer string
}

// Parse splits off the header and parses the first YAML document. Documents
// that follow it are kept as raw text.
func Parse(path string, content []byte) (*Document, error) {
	text := string(content)
	lines := strings.SplitN(text, "\n", HeaderLines+1)
	if len(lines) < HeaderLines {
		return nil, unityerr.Parse(path, errors.Errorf("expected at least %d header lines, found %d", HeaderLines, len(lines)))
	}

	first, trailer := splitDocuments(text)
	doc := &Document{
		Path:    path,
		Header:  strings.Join(lines[:HeaderLines], "\n"),
		trailer: trailer,
	}
	if err := yaml.Unmarshal([]byte(first), &doc.root); err != nil {
		return nil, unityerr.Parse(path, err)
	}
	return doc, nil
}

func (d *Document) top() (*yaml.Node, error) {
	if d.root.Kind != yaml.DocumentNode || len(d.root.Content) == 0 {
		return nil, unityerr.SchemaMismatch(d.Path, "document has no body")
	}
	top := d.root.Content[0]
	if top.Kind != yaml.MappingNode {
		return nil, unityerr.SchemaMismatch(d.Path, "top level is not a mapping")
	}
	return top, nil
}

// Container returns the mapping stored under key.
func (d *Document) Container(key string) (*yaml.Node, error) {
	top, err := d.top()
	if err != nil {
		return nil, err
	}
	value := lookup(top, key)
	if value == nil {
		return nil, unityerr.SchemaMismatch(d.Path, "missing container key %q", key)
	}
	if value.Kind == yaml.AliasNode && value.Alias != nil {
		value = value.Alias
	}
	if value.Kind != yaml.MappingNode {
		return nil, unityerr.SchemaMismatch(d.Path, "container key %q is not a mapping", key)
	}
	return value, nil
}

// Merge upserts every key of fields into the container mapping under key.
// Existing keys keep their position; new keys are appended. Keys absent from
// fields are left untouched. It returns the number of keys written.
func (d *Document) Merge(key string, fields *yaml.Node) (int, error) {
	container, err := d.Container(key)
	if err != nil {
		return 0, err
	}
	if fields.Kind == yaml.DocumentNode && len(fields.Content) == 1 {
		fields = fields.Content[0]
	}
	if fields.Kind != yaml.MappingNode {
		return 0, unityerr.SchemaMismatch(d.Path, "value does not serialize to a mapping")
	}

	n := 0
	for i := 0; i+1 < len(fields.Content); i += 2 {
		upsert(container, fields.Content[i], fields.Content[i+1])
		n++
	}
	return n, nil
}

// Bytes renders the header, a newline, the re-serialized body and any
// following documents.
func (d *Document) Bytes() ([]byte, error) {
	top, err := d.top()
	if err != nil {
		return nil, err
	}

	body := *top
	if headerStartsDocument(d.Header) {
		// the document start line in the header already carries the root tag and anchor
		body.Tag = ""
		body.Anchor = ""
	}
	if headerHasComments(d.Header) {
		body.HeadComment = ""
		if len(body.Content) > 0 {
			first := *body.Content[0]
			first.HeadComment = ""
			body.Content = append([]*yaml.Node{&first}, body.Content[1:]...)
		}
	}

	var buf bytes.Buffer
	buf.WriteString(d.Header)
	buf.WriteString("\n")

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&body); err != nil {
		return nil, errors.Wrap(err, "failed to encode document body")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to encode document body")
	}
	buf.WriteString(d.trailer)
	return buf.Bytes(), nil
}

// splitDocuments cuts text at the document marker that ends the first YAML
// document. The two halves concatenate back to text. Later documents are not
// parsed: Unity files reuse tag handles whose %TAG directive only applies to
// the first document.
func splitDocuments(text string) (string, string) {
	offset := 0
	started := false
	for i, line := range strings.SplitAfter(text, "\n") {
		marker := isDocumentMarker(line, "---") || isDocumentMarker(line, "...")
		if marker && started && i >= HeaderLines {
			return text[:offset], text[offset:]
		}
		if marker || isContentLine(line) {
			started = true
		}
		offset += len(line)
	}
	return text, ""
}

func isDocumentMarker(line, marker string) bool {
	if !strings.HasPrefix(line, marker) {
		return false
	}
	rest := line[len(marker):]
	return rest == "" || rest[0] == ' ' || rest[0] == '\t' || rest[0] == '\n' || rest[0] == '\r'
}

func isContentLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed != "" && !strings.HasPrefix(trimmed, "#") && !strings.HasPrefix(trimmed, "%")
}

func lookup(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

func upsert(mapping, key, value *yaml.Node) {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key.Value {
			mapping.Content[i+1] = value
			return
		}
	}
	mapping.Content = append(mapping.Content, key, value)
}

func headerStartsDocument(header string) bool {
	for _, line := range strings.Split(header, "\n") {
		if strings.HasPrefix(line, "---") {
			return true
		}
	}
	return false
}

func headerHasComments(header string) bool {
	for _, line := range strings.Split(header, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			return true
		}
	}
	return false
}
