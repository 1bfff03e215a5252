// Package assetindex scans a project tree once and maps every asset GUID to
// the sidecar that declared it. An Index is immutable after Build returns and
// may be shared between goroutines without locking.
package assetindex

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jingkaihe/unityscope/pkg/logger"
	"github.com/jingkaihe/unityscope/pkg/meta"
	"github.com/jingkaihe/unityscope/pkg/unityerr"
)

// Entry is one indexed asset.
type Entry struct {
	GUID        string `json:"guid"`
	SidecarPath string `json:"sidecarPath"`
}

// AssetPath is the content file the sidecar describes.
func (e Entry) AssetPath() string {
	return meta.AssetPath(e.SidecarPath)
}

// Index maps GUIDs to sidecar paths.
type Index struct {
	root       string
	guidToPath map[string]string
	// sorted by SidecarPath, used for deterministic name lookups
	entries []Entry
}

// Build walks root and indexes every sidecar whose asset extension is allowed.
//
// With ErrorPolicyAbort the first unreadable, malformed or unsupported sidecar
// fails the build and no index is returned. With ErrorPolicyCollect the index
// of all valid sidecars is returned along with a *multierror.Error listing the
// skipped ones.
func Build(ctx context.Context, root string, cfg ScanConfig) (*Index, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid scan configuration")
	}

	ctx = logger.WithComponent(ctx, "assetindex")
	log := logger.G(ctx).WithField("root", root)
	start := time.Now()

	info, err := os.Stat(root)
	if err != nil {
		return nil, unityerr.IO(root, err)
	}
	if !info.IsDir() {
		return nil, unityerr.IO(root, errors.New("not a directory"))
	}

	s := &scanner{
		cfg:        cfg,
		allowed:    cfg.allowed(),
		guidToPath: make(map[string]string),
		log:        log,
	}

	err = doublestar.GlobWalk(os.DirFS(root), "**/*"+meta.Suffix, func(rel string, d fs.DirEntry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, ok := s.allowed[assetExtension(d.Name())]; !ok {
			return nil
		}
		if cfg.excluded(rel) {
			return nil
		}
		return s.visit(filepath.Join(root, filepath.FromSlash(rel)))
	}, doublestar.WithFilesOnly(), doublestar.WithFailOnIOErrors())
	if err != nil {
		if unityerr.KindOf(err) == unityerr.KindUnknown && !errors.Is(err, ctx.Err()) {
			err = unityerr.IO(root, err)
		}
		log.WithError(err).Debug("asset scan aborted")
		return nil, err
	}

	idx := newIndex(root, s.guidToPath)
	log.WithFields(logrus.Fields{
		"entries": idx.Len(),
		"skipped": len(s.skipped.WrappedErrors()),
		"elapsed": time.Since(start).String(),
	}).Info("asset index built")

	return idx, s.skipped.ErrorOrNil()
}

type scanner struct {
	cfg        ScanConfig
	allowed    map[string]struct{}
	guidToPath map[string]string
	skipped    *multierror.Error
	log        *logrus.Entry
}

func (s *scanner) visit(path string) error {
	err := s.add(path)
	if err == nil {
		return nil
	}
	if s.cfg.OnError != ErrorPolicyCollect {
		return err
	}
	s.log.WithError(err).Warn("skipping sidecar")
	s.skipped = multierror.Append(s.skipped, err)
	return nil
}

func (s *scanner) add(path string) error {
	sidecar, err := meta.Read(path)
	if err != nil {
		return err
	}

	if previous, exists := s.guidToPath[sidecar.GUID]; exists {
		if s.cfg.OnDuplicate == DuplicateError {
			return unityerr.DuplicateGUID(sidecar.GUID, previous, path)
		}
		s.log.WithFields(logrus.Fields{
			"guid":     sidecar.GUID,
			"previous": previous,
			"path":     path,
		}).Warn("duplicate guid, keeping the later sidecar")
	}

	s.guidToPath[sidecar.GUID] = path
	s.log.WithFields(logrus.Fields{"guid": sidecar.GUID, "path": path}).Debug("indexed sidecar")
	return nil
}

// FromEntries builds an Index from a previously captured GUID to sidecar
// path mapping, for example a snapshot loaded from the index cache.
func FromEntries(root string, guidToPath map[string]string) *Index {
	return newIndex(root, guidToPath)
}

func newIndex(root string, guidToPath map[string]string) *Index {
	idx := &Index{
		root:       root,
		guidToPath: make(map[string]string, len(guidToPath)),
		entries:    make([]Entry, 0, len(guidToPath)),
	}
	for guid, path := range guidToPath {
		idx.guidToPath[guid] = path
		idx.entries = append(idx.entries, Entry{GUID: guid, SidecarPath: path})
	}
	sort.Slice(idx.entries, func(i, j int) bool {
		return idx.entries[i].SidecarPath < idx.entries[j].SidecarPath
	})
	return idx
}

// Root returns the scanned directory.
func (i *Index) Root() string { return i.root }

// Len returns the number of indexed GUIDs.
func (i *Index) Len() int { return len(i.guidToPath) }

// Contains reports whether guid is indexed.
func (i *Index) Contains(guid string) bool {
	_, ok := i.guidToPath[guid]
	return ok
}

// Entries returns a copy of all entries ordered by sidecar path.
func (i *Index) Entries() []Entry {
	return append([]Entry(nil), i.entries...)
}

// SidecarPath returns the raw scanned path for guid.
func (i *Index) SidecarPath(guid string) (string, error) {
	path, ok := i.guidToPath[guid]
	if !ok {
		return "", unityerr.GUIDNotFound(guid)
	}
	return path, nil
}

// ResolveByGUID returns the path of the content file for guid, which is the
// sidecar path with exactly one sidecar suffix removed.
func (i *Index) ResolveByGUID(guid string) (string, error) {
	path, err := i.SidecarPath(guid)
	if err != nil {
		return "", err
	}
	return meta.AssetPath(path), nil
}

// LookupByNameSubstring returns the first entry, in lexicographic sidecar
// path order, whose asset filename contains fragment. The fragment is matched
// against the content file's base name, so the sidecar suffix is not part of
// it: "Hero.png" matches Hero.png.meta but ".png.meta" matches nothing.
func (i *Index) LookupByNameSubstring(fragment string) (Entry, error) {
	for _, e := range i.entries {
		if strings.Contains(filepath.Base(e.AssetPath()), fragment) {
			return e, nil
		}
	}
	return Entry{}, unityerr.NameNotFound(fragment)
}

// ResolveByNameSubstring returns the content path of the entry found by
// LookupByNameSubstring.
func (i *Index) ResolveByNameSubstring(fragment string) (string, error) {
	e, err := i.LookupByNameSubstring(fragment)
	if err != nil {
		return "", err
	}
	return e.AssetPath(), nil
}
