package main

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the converter settings loadable from a YAML file. Flags
// override file values.
type Config struct {
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`

	// ImageDir is the texture output directory, relative to the output
	// file, and the path prefix written into image references.
	ImageDir string `yaml:"image_dir"`
	// TextureFormat is "png" or "tga".
	TextureFormat string `yaml:"texture_format"`
	// TextureOverrides is a directory of replacement texture images.
	TextureOverrides string `yaml:"texture_overrides"`
	// SkipTextures disables writing texture image files.
	SkipTextures bool `yaml:"skip_textures"`

	// Unlit marks all glTF materials with KHR_materials_unlit.
	Unlit bool `yaml:"unlit"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel:      "info",
		ImageDir:      "images",
		TextureFormat: "png",
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
