package assetref

import (
	"gopkg.in/yaml.v3"

	"github.com/jingkaihe/unityscope/pkg/assetindex"
	"github.com/jingkaihe/unityscope/pkg/unityerr"
)

// Handle is a typed reference to an asset of one kind. It holds only the GUID.
type Handle interface {
	Kind() Kind
	GUID() string
}

// HandlePtr is satisfied by pointers to the handle types in this package and
// lets Decode construct the handle kind implied by its type argument.
type HandlePtr[T any] interface {
	*T
	Handle
	setGUID(guid string)
}

type ref struct {
	guid string
}

func (r ref) GUID() string { return r.guid }

// IsZero reports whether the handle is the null reference.
func (r ref) IsZero() bool { return r.guid == "" }

func (r *ref) setGUID(guid string) { r.guid = guid }

func (r *ref) unmarshal(node *yaml.Node) error {
	var rec Record
	if err := node.Decode(&rec); err != nil {
		return err
	}
	r.guid = rec.GUID
	return nil
}

// Texture references a generic texture.
type Texture struct{ ref }

// Texture2D references a 2D texture.
type Texture2D struct{ ref }

// Material references a material.
type Material struct{ ref }

// Sprite references a sprite.
type Sprite struct{ ref }

func NewTexture(guid string) Texture     { return Texture{ref{guid}} }
func NewTexture2D(guid string) Texture2D { return Texture2D{ref{guid}} }
func NewMaterial(guid string) Material   { return Material{ref{guid}} }
func NewSprite(guid string) Sprite       { return Sprite{ref{guid}} }

func (Texture) Kind() Kind   { return KindTexture }
func (Texture2D) Kind() Kind { return KindTexture2D }
func (Material) Kind() Kind  { return KindMaterial }
func (Sprite) Kind() Kind    { return KindSprite }

func (h Texture) MarshalYAML() (interface{}, error)   { return Encode(h).MarshalYAML() }
func (h Texture2D) MarshalYAML() (interface{}, error) { return Encode(h).MarshalYAML() }
func (h Material) MarshalYAML() (interface{}, error)  { return Encode(h).MarshalYAML() }
func (h Sprite) MarshalYAML() (interface{}, error)    { return Encode(h).MarshalYAML() }

func (h *Texture) UnmarshalYAML(node *yaml.Node) error   { return h.unmarshal(node) }
func (h *Texture2D) UnmarshalYAML(node *yaml.Node) error { return h.unmarshal(node) }
func (h *Material) UnmarshalYAML(node *yaml.Node) error  { return h.unmarshal(node) }
func (h *Sprite) UnmarshalYAML(node *yaml.Node) error    { return h.unmarshal(node) }

// Encode returns the reference record for h. It performs no I/O and cannot fail.
func Encode(h Handle) Record {
	return h.Kind().Record(h.GUID())
}

// Decode builds a T from r.GUID. The record's fileID and type are not
// checked against T's kind.
func Decode[T any, P HandlePtr[T]](r Record) T {
	var h T
	P(&h).setGUID(r.GUID)
	return h
}

// DecodeStrict is Decode but fails with a reference mismatch when a non-null
// record carries constants other than T's kind.
func DecodeStrict[T any, P HandlePtr[T]](r Record) (T, error) {
	var h T
	kind := P(&h).Kind()
	if !r.IsNull() && !kind.Matches(r) {
		return h, unityerr.ReferenceMismatch(kind.Name,
			"record has fileID %d type %d, want fileID %d type %d", r.FileID, r.Type, kind.FileID, kind.Type)
	}
	P(&h).setGUID(r.GUID)
	return h, nil
}

// Resolver turns a GUID into a content file path.
type Resolver interface {
	ResolveByGUID(guid string) (string, error)
}

// Index is the lookup surface of an asset index used to build handles.
type Index interface {
	Resolver
	Contains(guid string) bool
	LookupByNameSubstring(fragment string) (assetindex.Entry, error)
}

// Path resolves h to the path of the asset it references.
func Path(r Resolver, h Handle) (string, error) {
	if h.GUID() == "" {
		return "", unityerr.GUIDNotFound("")
	}
	return r.ResolveByGUID(h.GUID())
}

// Find returns a T for guid if the index knows it.
func Find[T any, P HandlePtr[T]](idx Index, guid string) (T, error) {
	if !idx.Contains(guid) {
		var zero T
		return zero, unityerr.GUIDNotFound(guid)
	}
	return Decode[T, P](Record{GUID: guid}), nil
}

// FindByName returns a T for the first indexed asset whose filename contains fragment.
func FindByName[T any, P HandlePtr[T]](idx Index, fragment string) (T, error) {
	entry, err := idx.LookupByNameSubstring(fragment)
	if err != nil {
		var zero T
		return zero, err
	}
	return Decode[T, P](Record{GUID: entry.GUID}), nil
}
