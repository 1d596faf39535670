// Package config reads generation requests from TOML or YAML files.
//
//	import_root = "example.com/app/winrt"
//	output = "gen"
//	roots = ["Windows.Foundation.Uri"]
//	sources = ["Windows.Foundation.winmd"]
//	dependencies = ["Windows.winmd"]
//	validation = "lazy"
//	workers = 4
//
// Relative paths are resolved against the directory of the file.
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	bindgen "github.com/wippyai/winrt-bindgen"
	"github.com/wippyai/winrt-bindgen/errors"
	"github.com/wippyai/winrt-bindgen/graph"
)

// Format is the encoding of a request file
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// FormatOf picks the format from a file extension; anything that is not
// YAML is read as TOML
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatTOML
}

// Config is a request file
type Config struct {
	ImportRoot   string   `toml:"import_root" yaml:"import_root"`
	Output       string   `toml:"output" yaml:"output"`
	Validation   string   `toml:"validation" yaml:"validation"`
	Roots        []string `toml:"roots" yaml:"roots"`
	Sources      []string `toml:"sources" yaml:"sources"`
	Dependencies []string `toml:"dependencies" yaml:"dependencies"`
	Workers      int      `toml:"workers" yaml:"workers"`

	// Dir is the directory relative paths are resolved against
	Dir string `toml:"-" yaml:"-"`
}

// Load reads and validates the request file at path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.PhaseConfig, errors.KindNotFound).
			Source(path).
			Cause(err).
			Detail("cannot read request file").
			Build()
	}
	cfg, err := Parse(data, FormatOf(path))
	if err != nil {
		if e, ok := err.(*errors.Error); ok {
			e.Source = path
		}
		return nil, err
	}
	cfg.Dir = filepath.Dir(path)
	return cfg, nil
}

// Parse decodes and validates a request. Unknown keys are refused.
func Parse(data []byte, format Format) (*Config, error) {
	var cfg Config
	switch format {
	case FormatTOML:
		meta, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "invalid TOML")
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				Detail("unknown keys: %s", strings.Join(keys, ", ")).
				Build()
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "invalid YAML")
		}
	default:
		return nil, errors.Unsupported(errors.PhaseConfig, "request format "+string(format))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields a request cannot do without
func (c *Config) Validate() error {
	switch {
	case len(c.Roots) == 0:
		return errors.InvalidInput(errors.PhaseConfig, "no roots")
	case len(c.Sources) == 0:
		return errors.InvalidInput(errors.PhaseConfig, "no sources")
	case c.Workers < 0:
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Value(c.Workers).
			Detail("negative worker count").
			Build()
	}
	if _, err := graph.ParseValidationMode(c.Validation); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "validation")
	}
	return nil
}

// Path resolves p against the file's directory
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) || c.Dir == "" {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// OutputDir is the resolved output directory, "." relative to the file by
// default
func (c *Config) OutputDir() string {
	if c.Output == "" {
		return c.Path(".")
	}
	return c.Path(c.Output)
}

// Request converts the file into an engine request. Unset options keep
// their defaults.
func (c *Config) Request() (bindgen.Request, error) {
	mode, err := graph.ParseValidationMode(c.Validation)
	if err != nil {
		return bindgen.Request{}, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "validation")
	}
	req := bindgen.Request{
		Roots:   append([]string(nil), c.Roots...),
		Options: bindgen.DefaultOptions(),
	}
	for _, p := range c.Sources {
		req.SourcePaths = append(req.SourcePaths, c.Path(p))
	}
	for _, p := range c.Dependencies {
		req.DependencyPaths = append(req.DependencyPaths, c.Path(p))
	}
	if c.ImportRoot != "" {
		req.ImportRoot = c.ImportRoot
	}
	if c.Workers > 0 {
		req.Workers = c.Workers
	}
	req.Validation = mode
	return req, nil
}
