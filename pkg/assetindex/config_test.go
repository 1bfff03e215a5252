package assetindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ScanConfig)
		wantErr string
	}{
		{name: "defaults", mutate: func(*ScanConfig) {}},
		{name: "empty policies", mutate: func(c *ScanConfig) { c.OnError = ""; c.OnDuplicate = "" }},
		{name: "no extensions", mutate: func(c *ScanConfig) { c.Extensions = nil }, wantErr: "at least one extension"},
		{name: "bad error policy", mutate: func(c *ScanConfig) { c.OnError = "skip" }, wantErr: "invalid error policy"},
		{name: "bad duplicate policy", mutate: func(c *ScanConfig) { c.OnDuplicate = "first" }, wantErr: "invalid duplicate policy"},
		{name: "bad exclude", mutate: func(c *ScanConfig) { c.Exclude = []string{"Library/[a"} }, wantErr: "invalid exclude pattern"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultScanConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestAssetExtension(t *testing.T) {
	assert.Equal(t, "png", assetExtension("tex.png.meta"))
	assert.Equal(t, "png", assetExtension("tex.PNG.meta"))
	assert.Equal(t, "gz", assetExtension("archive.tar.gz.meta"))
	assert.Equal(t, "", assetExtension("Folder.meta"))
}

func TestAllowedNormalizesExtensions(t *testing.T) {
	cfg := ScanConfig{Extensions: []string{".PNG", " jpg ", ""}}
	allowed := cfg.allowed()

	assert.Len(t, allowed, 2)
	assert.Contains(t, allowed, "png")
	assert.Contains(t, allowed, "jpg")
}
