package unityerr

import (
	"os"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Kind
	}{
		{name: "io", err: IO("a.meta", os.ErrNotExist), expected: KindIO},
		{name: "wrapped", err: errors.Wrap(GUIDNotFound("abc"), "resolve"), expected: KindGUIDNotFound},
		{name: "plain", err: errors.New("boom"), expected: KindUnknown},
		{name: "nil", err: nil, expected: KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, KindOf(tt.err))
		})
	}
}

func TestIs(t *testing.T) {
	err := UnsupportedFormatVersion("tex.png.meta", 3)
	assert.True(t, Is(err, KindUnsupportedFormatVersion))
	assert.False(t, Is(err, KindParse))
	assert.False(t, Is(nil, KindUnknown))
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "unsupported format version 3 (tex.png.meta)", UnsupportedFormatVersion("tex.png.meta", 3).Error())
	assert.Equal(t, `guid not found "abc"`, GUIDNotFound("abc").Error())
	assert.Equal(t, `name not found "hero"`, NameNotFound("hero").Error())
	assert.Equal(t, "schema mismatch: missing key \"b\" (doc.asset)", SchemaMismatch("doc.asset", "missing key %q", "b").Error())
	assert.Contains(t, DuplicateGUID("abc", "a.meta", "b.meta").Error(), "already declared by a.meta")
}

func TestUnwrap(t *testing.T) {
	err := IO("tex.png.meta", os.ErrPermission)

	assert.ErrorIs(t, err, os.ErrPermission)
	assert.Equal(t, err, errors.Cause(errors.Wrap(err, "scan")))

	var target *Error
	require.True(t, errors.As(errors.Wrap(err, "scan"), &target))
	assert.Equal(t, "tex.png.meta", target.Path)
}
