// SPDX-License-Identifier: MPL-2.0

package config

import "context"

// LoadOptions defines explicit configuration loading inputs.
type LoadOptions struct {
	// ConfigFilePath forces loading from a specific config file when set.
	ConfigFilePath string
	// ConfigDirPath overrides the per-user config directory lookup when set.
	ConfigDirPath string
	// WorkDir anchors relative paths and the ./gamekeeper.cue lookup.
	// Empty means the process working directory.
	WorkDir string
	// Overrides are applied last, keyed by dotted config key
	// (e.g. "minecraft.mem_max"). Command-line arguments land here.
	Overrides map[string]any
}

// Provider loads configuration from explicit options.
type Provider interface {
	Load(ctx context.Context, opts LoadOptions) (*Config, error)
}

// Loaded is a loaded config with the file it came from.
type Loaded struct {
	Config *Config
	// Path is the config file that was merged, or empty when only defaults
	// and environment applied.
	Path string
}

type fileProvider struct{}

// NewProvider creates a configuration provider.
func NewProvider() Provider {
	return &fileProvider{}
}

// Load reads configuration from the requested sources.
func (p *fileProvider) Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	cfg, _, err := loadWithOptions(ctx, opts)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWithSource is like Provider.Load but also reports the config file used.
func LoadWithSource(ctx context.Context, opts LoadOptions) (Loaded, error) {
	cfg, path, err := loadWithOptions(ctx, opts)
	if err != nil {
		return Loaded{}, err
	}
	return Loaded{Config: cfg, Path: path}, nil
}
