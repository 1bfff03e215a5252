package document

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/aymanbagabas/go-udiff"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/jingkaihe/unityscope/pkg/logger"
	"github.com/jingkaihe/unityscope/pkg/unityerr"
)

// Store loads and saves typed values. The zero value is not usable; use NewStore.
type Store struct {
	containerKey string
	atomicWrite  bool
}

// Option configures a Store.
type Option func(*Store)

// WithContainerKey sets the top-level key typed values live under.
func WithContainerKey(key string) Option {
	return func(s *Store) {
		s.containerKey = key
	}
}

// WithAtomicWrite selects between temp-file-and-rename (the default) and
// rewriting the target in place.
func WithAtomicWrite(enabled bool) Option {
	return func(s *Store) {
		s.atomicWrite = enabled
	}
}

// NewStore returns a Store using DefaultContainerKey and atomic writes.
func NewStore(opts ...Option) *Store {
	s := &Store{
		containerKey: DefaultContainerKey,
		atomicWrite:  true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ContainerKey returns the configured container key.
func (s *Store) ContainerKey() string { return s.containerKey }

// LoadTyped reads the container mapping at path into a new T.
func LoadTyped[T any](ctx context.Context, path string, opts ...Option) (T, error) {
	var v T
	err := NewStore(opts...).Load(ctx, path, &v)
	return v, err
}

// SaveTyped merges value into the existing document at path.
func SaveTyped[T any](ctx context.Context, value T, path string, opts ...Option) error {
	return NewStore(opts...).Save(ctx, path, value)
}

// Load decodes the container mapping of the document at path into out, which
// must be a pointer. Every struct field without omitempty must be present in
// the mapping and decode without a type error.
func (s *Store) Load(ctx context.Context, path string, out interface{}) error {
	doc, err := readDocument(path)
	if err != nil {
		return err
	}
	container, err := doc.Container(s.containerKey)
	if err != nil {
		return err
	}

	if err := checkRequired(path, container, reflect.TypeOf(out)); err != nil {
		return err
	}
	if err := container.Decode(out); err != nil {
		return unityerr.WrapSchemaMismatch(path, err)
	}

	logger.G(ctx).WithFields(logrus.Fields{
		"path":         path,
		"containerKey": s.containerKey,
	}).Debug("loaded document")
	return nil
}

// Container returns the raw container mapping of the document at path.
func (s *Store) Container(path string) (*yaml.Node, error) {
	doc, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	return doc.Container(s.containerKey)
}

// Save merges value into the document at path, which must already exist.
// Keys of the container mapping that value does not produce are preserved,
// as are the header lines.
func (s *Store) Save(ctx context.Context, path string, value interface{}) error {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	info, err := os.Stat(path)
	if err != nil {
		return unityerr.IO(path, err)
	}

	unlock, err := lockDocument(ctx, path)
	if err != nil {
		return err
	}
	defer unlock()
	doc, err := readDocument(path)
	if err != nil {
		return err
	}

	rendered, n, err := s.render(doc, value)
	if err != nil {
		return err
	}

	if s.atomicWrite {
		err = writeAtomic(path, rendered, info.Mode().Perm())
	} else {
		err = writeInPlace(path, rendered, info.Mode().Perm())
	}
	if err != nil {
		return err
	}

	logger.G(ctx).WithFields(logrus.Fields{
		"path":         path,
		"containerKey": s.containerKey,
		"keys":         n,
		"atomic":       s.atomicWrite,
	}).Debug("saved document")
	return nil
}

// Diff returns the unified diff Save would apply to path, or an empty string
// when the document would not change.
func (s *Store) Diff(path string, value interface{}) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", unityerr.IO(path, err)
	}
	doc, err := Parse(path, content)
	if err != nil {
		return "", err
	}
	rendered, _, err := s.render(doc, value)
	if err != nil {
		return "", err
	}
	return udiff.Unified(path, path, string(content), string(rendered)), nil
}

func (s *Store) render(doc *Document, value interface{}) ([]byte, int, error) {
	var fields yaml.Node
	if err := fields.Encode(value); err != nil {
		return nil, 0, unityerr.WrapSchemaMismatch(doc.Path, errors.Wrap(err, "failed to serialize value"))
	}
	n, err := doc.Merge(s.containerKey, &fields)
	if err != nil {
		return nil, 0, err
	}
	rendered, err := doc.Bytes()
	if err != nil {
		return nil, 0, err
	}
	return rendered, n, nil
}

func readDocument(path string) (*Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, unityerr.IO(path, err)
	}
	return Parse(path, content)
}

func writeInPlace(path string, data []byte, mode fs.FileMode) error {
	if err := os.WriteFile(path, data, mode); err != nil {
		return unityerr.IO(path, err)
	}
	return nil
}

func writeAtomic(path string, data []byte, mode fs.FileMode) error {
	dir := filepath.Dir(path)
	tempFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return unityerr.IO(path, errors.Wrap(err, "failed to create temporary file"))
	}
	tempPath := tempFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return unityerr.IO(path, errors.Wrap(err, "failed to write temporary file"))
	}
	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return unityerr.IO(path, errors.Wrap(err, "failed to sync temporary file"))
	}
	if err := tempFile.Close(); err != nil {
		return unityerr.IO(path, errors.Wrap(err, "failed to close temporary file"))
	}
	if err := os.Chmod(tempPath, mode); err != nil {
		return unityerr.IO(path, errors.Wrap(err, "failed to set file permissions"))
	}
	if err := os.Rename(tempPath, path); err != nil {
		return unityerr.IO(path, errors.Wrap(err, "failed to replace document"))
	}

	success = true
	return nil
}

// checkRequired verifies that every key a struct type declares is present in
// the mapping. Non-struct targets such as maps have no required keys.
func checkRequired(path string, mapping *yaml.Node, t reflect.Type) error {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}

	present := make(map[string]bool, len(mapping.Content)/2)
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		present[mapping.Content[i].Value] = true
	}

	for _, key := range requiredKeys(t) {
		if !present[key] {
			return unityerr.SchemaMismatch(path, "missing field %q", key)
		}
	}
	return nil
}

func requiredKeys(t reflect.Type) []string {
	var keys []string
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" && !field.Anonymous {
			continue
		}

		tag := field.Tag.Get("yaml")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		if hasOption(opts, "inline") {
			ft := field.Type
			for ft.Kind() == reflect.Ptr {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				keys = append(keys, requiredKeys(ft)...)
			}
			continue
		}
		if field.PkgPath != "" || hasOption(opts, "omitempty") {
			continue
		}
		if name == "" {
			name = strings.ToLower(field.Name)
		}
		keys = append(keys, name)
	}
	return keys
}

func hasOption(opts, want string) bool {
	for _, opt := range strings.Split(opts, ",") {
		if opt == want {
			return true
		}
	}
	return false
}
