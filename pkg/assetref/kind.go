package assetref

import (
	"sort"
	"strings"
)

// Kind holds the constants a reference record carries for one asset kind.
// FileID and Type are fixed per kind, never chosen per reference.
type Kind struct {
	Name   string
	FileID uint32
	Type   uint8
}

var (
	KindTexture   = Kind{Name: "Texture", FileID: 2700000, Type: 3}
	KindTexture2D = Kind{Name: "Texture2D", FileID: 2800000, Type: 3}
	KindMaterial  = Kind{Name: "Material", FileID: 2100000, Type: 2}
	KindSprite    = Kind{Name: "Sprite", FileID: 21300000, Type: 3}
)

var kinds = map[string]Kind{}

func registerKind(k Kind) {
	kinds[strings.ToLower(k.Name)] = k
}

func init() {
	for _, k := range []Kind{KindTexture, KindTexture2D, KindMaterial, KindSprite} {
		registerKind(k)
	}
}

// KindByName looks a kind up case-insensitively.
func KindByName(name string) (Kind, bool) {
	k, ok := kinds[strings.ToLower(name)]
	return k, ok
}

// Kinds returns every registered kind ordered by name.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Record returns the reference to guid using this kind's constants.
func (k Kind) Record(guid string) Record {
	if guid == "" {
		return Record{}
	}
	return Record{FileID: k.FileID, GUID: guid, Type: k.Type}
}

// Matches reports whether r carries this kind's constants.
func (k Kind) Matches(r Record) bool {
	return r.FileID == k.FileID && r.Type == k.Type
}
