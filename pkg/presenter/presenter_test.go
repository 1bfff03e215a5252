package presenter

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	presenter := New()
	assert.NotNil(t, presenter)
	assert.Equal(t, os.Stdout, presenter.output)
	assert.Equal(t, os.Stderr, presenter.errorOutput)
	assert.False(t, presenter.quiet)
}

func TestDetectColorMode(t *testing.T) {
	tests := []struct {
		name     string
		noColor  string
		envColor string
		expected ColorMode
	}{
		{"NO_COLOR set", "1", "", ColorNever},
		{"NO_COLOR wins", "1", "always", ColorNever},
		{"UNITYSCOPE_COLOR always", "", "always", ColorAlways},
		{"UNITYSCOPE_COLOR force", "", "force", ColorAlways},
		{"UNITYSCOPE_COLOR never", "", "never", ColorNever},
		{"UNITYSCOPE_COLOR off", "", "off", ColorNever},
		{"UNITYSCOPE_COLOR auto", "", "auto", ColorAuto},
		{"default", "", "", ColorAuto},
		{"invalid", "", "rainbow", ColorAuto},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("NO_COLOR", tt.noColor)
			t.Setenv("UNITYSCOPE_COLOR", tt.envColor)
			assert.Equal(t, tt.expected, detectColorMode())
		})
	}
}

func TestError(t *testing.T) {
	var errorOutput bytes.Buffer
	presenter := NewWithOptions(nil, &errorOutput, ColorNever)
	presenter.SetQuiet(true)

	presenter.Error(errors.New("guid not found"), "resolve")
	assert.Equal(t, "[ERROR] resolve: guid not found\n", errorOutput.String())

	errorOutput.Reset()
	presenter.Error(errors.New("guid not found"), "")
	assert.Equal(t, "[ERROR] guid not found\n", errorOutput.String())

	errorOutput.Reset()
	presenter.Error(nil, "context")
	assert.Empty(t, errorOutput.String())
}

func TestMessagesRespectQuietMode(t *testing.T) {
	var output, errorOutput bytes.Buffer
	presenter := NewWithOptions(&output, &errorOutput, ColorNever)

	presenter.Success("indexed 3 assets")
	presenter.Info("root: Assets")
	presenter.Warning("duplicate guid")
	presenter.Section("Assets")
	presenter.Separator()

	assert.Contains(t, output.String(), "✓ indexed 3 assets\n")
	assert.Contains(t, output.String(), "root: Assets\n")
	assert.Contains(t, output.String(), "Assets\n------\n")
	assert.Equal(t, "⚠ duplicate guid\n", errorOutput.String())

	output.Reset()
	errorOutput.Reset()
	presenter.SetQuiet(true)
	assert.True(t, presenter.IsQuiet())

	presenter.Success("indexed 3 assets")
	presenter.Info("root: Assets")
	presenter.Warning("duplicate guid")
	presenter.Section("Assets")
	presenter.Separator()

	assert.Empty(t, output.String())
	assert.Empty(t, errorOutput.String())
}

func TestTable(t *testing.T) {
	var output bytes.Buffer
	presenter := NewWithOptions(&output, nil, ColorNever)

	rows := [][]string{
		{"abc123", "Textures/Hero.png"},
		{"d4", "Hero.mat"},
	}
	presenter.Table([]string{"GUID", "ASSET"}, rows)
	assert.Equal(t, "GUID    ASSET\nabc123  Textures/Hero.png\nd4      Hero.mat\n", output.String())

	output.Reset()
	presenter.SetQuiet(true)
	presenter.Table([]string{"GUID", "ASSET"}, rows)
	assert.Equal(t, "abc123  Textures/Hero.png\nd4      Hero.mat\n", output.String())
}

func TestDiff(t *testing.T) {
	var output bytes.Buffer
	presenter := NewWithOptions(&output, nil, ColorNever)

	diff := "--- a.asset\n+++ a.asset\n@@ -1,2 +1,2 @@\n a: 1\n-b: 2\n+b: 3\n"
	presenter.Diff(diff)
	assert.Equal(t, diff, output.String())
}

func TestData(t *testing.T) {
	var output bytes.Buffer
	presenter := NewWithOptions(&output, nil, ColorNever)
	presenter.SetQuiet(true)

	presenter.Data("a: 1")
	presenter.Data("b: 2\n")
	assert.Equal(t, "a: 1\nb: 2\n", output.String())
}

func TestDefaultPresenter(t *testing.T) {
	var output bytes.Buffer
	previous := defaultPresenter
	t.Cleanup(func() { SetDefault(previous) })

	SetDefault(NewWithOptions(&output, &output, ColorNever))
	Info("hello")
	Data("payload")
	SetQuiet(true)
	assert.True(t, IsQuiet())
	Info("hidden")

	assert.Equal(t, "hello\npayload\n", output.String())
}
