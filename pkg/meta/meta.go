// Package meta reads and writes the sidecar metadata files that sit next to
// every asset and carry its format version and stable GUID.
package meta

import (
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/jingkaihe/unityscope/pkg/unityerr"
)

const (
	// Suffix is appended to an asset's filename to name its sidecar.
	Suffix = ".meta"
	// SupportedFormatVersion is the only fileFormatVersion accepted.
	SupportedFormatVersion = 2
)

// Sidecar is the subset of a metadata file the index consumes.
type Sidecar struct {
	FileFormatVersion int    `yaml:"fileFormatVersion"`
	GUID              string `yaml:"guid"`
}

type rawSidecar struct {
	FileFormatVersion *int    `yaml:"fileFormatVersion"`
	GUID              *string `yaml:"guid"`
}

// Parse decodes sidecar content read from path. Both fields are required.
func Parse(path string, content []byte) (Sidecar, error) {
	var raw rawSidecar
	if err := yaml.Unmarshal(content, &raw); err != nil {
		return Sidecar{}, unityerr.Parse(path, err)
	}
	if raw.FileFormatVersion == nil {
		return Sidecar{}, unityerr.Parse(path, errors.New("missing fileFormatVersion"))
	}
	if *raw.FileFormatVersion != SupportedFormatVersion {
		return Sidecar{}, unityerr.UnsupportedFormatVersion(path, *raw.FileFormatVersion)
	}
	if raw.GUID == nil || *raw.GUID == "" {
		return Sidecar{}, unityerr.Parse(path, errors.New("missing guid"))
	}
	return Sidecar{FileFormatVersion: *raw.FileFormatVersion, GUID: *raw.GUID}, nil
}

// Read loads and parses the sidecar at path.
func Read(path string) (Sidecar, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Sidecar{}, unityerr.IO(path, err)
	}
	return Parse(path, content)
}

// Write creates or replaces the sidecar at path.
func Write(path string, s Sidecar) error {
	if s.FileFormatVersion == 0 {
		s.FileFormatVersion = SupportedFormatVersion
	}
	content, err := yaml.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "failed to encode sidecar")
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return unityerr.IO(path, err)
	}
	return nil
}

// Ensure creates the sidecar for assetPath with a fresh GUID unless one exists.
// It returns the sidecar on disk and whether it was created.
func Ensure(assetPath string) (Sidecar, bool, error) {
	if _, err := os.Stat(assetPath); err != nil {
		return Sidecar{}, false, unityerr.IO(assetPath, err)
	}

	sidecarPath := SidecarPath(assetPath)
	if _, err := os.Stat(sidecarPath); err == nil {
		s, err := Read(sidecarPath)
		return s, false, err
	} else if !os.IsNotExist(err) {
		return Sidecar{}, false, unityerr.IO(sidecarPath, err)
	}

	s := Sidecar{FileFormatVersion: SupportedFormatVersion, GUID: NewGUID()}
	if err := Write(sidecarPath, s); err != nil {
		return Sidecar{}, false, err
	}
	return s, true, nil
}

// NewGUID returns a random 32 character lowercase hex identifier.
func NewGUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// SidecarPath returns the sidecar path for an asset.
func SidecarPath(assetPath string) string {
	return assetPath + Suffix
}

// AssetPath strips exactly one sidecar suffix, yielding the content file path.
func AssetPath(sidecarPath string) string {
	return strings.TrimSuffix(sidecarPath, Suffix)
}

// IsSidecar reports whether name carries the sidecar suffix.
func IsSidecar(name string) bool {
	return strings.HasSuffix(name, Suffix) && len(name) > len(Suffix)
}
