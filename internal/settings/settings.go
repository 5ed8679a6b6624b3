// Package settings loads project configuration from
// .harnessdoc/settings.yaml.
//
// The settings file carries per-project defaults that would otherwise be
// repeated as flags on every invocation: where images live, which sheet
// template to use, and how missing images are handled. Flags always win
// over settings.
package settings

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Settings holds project configuration from .harnessdoc/settings.yaml.
type Settings struct {
	// Images configures image resolution.
	Images Images `yaml:"images"`
	// Template is the sheet template path, relative to the project root.
	// Empty selects the built-in A4 sheet.
	Template string `yaml:"template"`
	// Output is the directory builds write into. Empty means "build"
	// next to the document.
	Output string `yaml:"output"`
	// Strict promotes validation warnings to errors for every run.
	Strict bool `yaml:"strict"`
	// Tools overrides the external tool names.
	Tools Tools `yaml:"tools"`
}

// Images configures the image resolution tiers.
type Images struct {
	// Dir is the local override directory probed before the cache.
	Dir string `yaml:"dir"`
	// CacheDir is where fetched images and their manifest live.
	// Empty means ".harnessdoc/images".
	CacheDir string `yaml:"cache_dir"`
	// Missing is one of "allow", "placeholder", "require".
	Missing string `yaml:"missing"`
	// Offline disables vendor lookups for every run, so network fetches
	// only happen when explicitly configured otherwise.
	Offline bool `yaml:"offline"`
	// RatePerSecond bounds outbound vendor requests.
	RatePerSecond float64 `yaml:"rate_per_second"`
}

// Tools names the external programs the build shells out to.
type Tools struct {
	Layout  string `yaml:"layout"`
	Convert string `yaml:"convert"`
}

// Load reads .harnessdoc/settings.yaml relative to root.
// Returns nil (not an error) if the file does not exist.
func Load(root string) (*Settings, error) {
	path := filepath.Join(root, ".harnessdoc", "settings.yaml")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", path, err)
	}
	return &s, nil
}

// CacheDir returns the image cache directory, resolved against root.
// Safe to call on a nil *Settings receiver.
func (s *Settings) CacheDir(root string) string {
	if s != nil && s.Images.CacheDir != "" {
		return filepath.Join(root, s.Images.CacheDir)
	}
	return filepath.Join(root, ".harnessdoc", "images")
}

// ImageDir returns the local override directory, or "" when unset.
// Safe to call on a nil *Settings receiver.
func (s *Settings) ImageDir(root string) string {
	if s == nil || s.Images.Dir == "" {
		return ""
	}
	return filepath.Join(root, s.Images.Dir)
}

// TemplatePath returns the sheet template path, or "" for the built-in.
// Safe to call on a nil *Settings receiver.
func (s *Settings) TemplatePath(root string) string {
	if s == nil || s.Template == "" {
		return ""
	}
	return filepath.Join(root, s.Template)
}

// OutputDir returns the build output directory, resolved against root.
// Safe to call on a nil *Settings receiver.
func (s *Settings) OutputDir(root string) string {
	if s != nil && s.Output != "" {
		return filepath.Join(root, s.Output)
	}
	return filepath.Join(root, "build")
}

// IsStrict reports whether strict validation is configured.
// Safe to call on a nil *Settings receiver.
func (s *Settings) IsStrict() bool { return s != nil && s.Strict }

// IsOffline reports whether vendor lookups are disabled by configuration.
// Safe to call on a nil *Settings receiver.
func (s *Settings) IsOffline() bool { return s != nil && s.Images.Offline }
