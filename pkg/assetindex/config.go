package assetindex

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"

	"github.com/jingkaihe/unityscope/pkg/meta"
)

// ErrorPolicy decides what a scan does with a sidecar it cannot index.
type ErrorPolicy string

// DuplicatePolicy decides what a scan does with a GUID declared twice.
type DuplicatePolicy string

const (
	// ErrorPolicyAbort fails the whole build on the first bad sidecar.
	ErrorPolicyAbort ErrorPolicy = "abort"
	// ErrorPolicyCollect skips bad sidecars and reports them together with the index.
	ErrorPolicyCollect ErrorPolicy = "collect"

	// DuplicateLastWins keeps the sidecar visited last in lexical walk order.
	DuplicateLastWins DuplicatePolicy = "last_wins"
	// DuplicateError treats a repeated GUID as a sidecar failure.
	DuplicateError DuplicatePolicy = "error"
)

// DefaultExtensions is the allow-list used when none is configured.
var DefaultExtensions = []string{"png", "jpg", "hdr", "asset", "mat"}

// ScanConfig controls which sidecars a Build visits and how failures are handled.
type ScanConfig struct {
	// Extensions lists the asset extensions whose sidecars are indexed.
	// Matching is case-insensitive and a leading dot is ignored.
	Extensions []string
	// Exclude holds doublestar patterns matched against slash-separated
	// paths relative to the root, e.g. "Library/**".
	Exclude     []string
	OnError     ErrorPolicy
	OnDuplicate DuplicatePolicy
}

// DefaultScanConfig returns the reference behavior: default extensions,
// abort on the first failure, last duplicate wins.
func DefaultScanConfig() ScanConfig {
	return ScanConfig{
		Extensions:  append([]string(nil), DefaultExtensions...),
		OnError:     ErrorPolicyAbort,
		OnDuplicate: DuplicateLastWins,
	}
}

// Validate checks policies and patterns.
func (c ScanConfig) Validate() error {
	if len(c.Extensions) == 0 {
		return errors.New("at least one extension must be allowed")
	}
	switch c.OnError {
	case "", ErrorPolicyAbort, ErrorPolicyCollect:
	default:
		return errors.Errorf("invalid error policy: %s, must be one of: abort, collect", c.OnError)
	}
	switch c.OnDuplicate {
	case "", DuplicateLastWins, DuplicateError:
	default:
		return errors.Errorf("invalid duplicate policy: %s, must be one of: last_wins, error", c.OnDuplicate)
	}
	for _, pattern := range c.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return errors.Errorf("invalid exclude pattern: %s", pattern)
		}
	}
	return nil
}

func (c ScanConfig) allowed() map[string]struct{} {
	allowed := make(map[string]struct{}, len(c.Extensions))
	for _, ext := range c.Extensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			allowed[ext] = struct{}{}
		}
	}
	return allowed
}

func (c ScanConfig) excluded(rel string) bool {
	for _, pattern := range c.Exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// assetExtension returns the lowercase extension of the asset a sidecar
// describes: "tex.png.meta" yields "png".
func assetExtension(sidecarName string) string {
	ext := filepath.Ext(strings.TrimSuffix(sidecarName, meta.Suffix))
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
