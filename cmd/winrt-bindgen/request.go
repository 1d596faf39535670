package main

import (
	"github.com/spf13/cobra"

	bindgen "github.com/wippyai/winrt-bindgen"
	"github.com/wippyai/winrt-bindgen/config"
	"github.com/wippyai/winrt-bindgen/graph"
)

// requestFlags registers the flags every command reads a request from
func requestFlags(c *cobra.Command) {
	f := c.Flags()
	f.StringP("config", "c", "", "request file (TOML or YAML)")
	f.StringSlice("root", nil, "type to generate as Namespace.Name (repeatable)")
	f.StringSlice("source", nil, "metadata file whose types are generated (repeatable)")
	f.StringSlice("dependency", nil, "metadata file that only contributes referenced types (repeatable)")
	f.String("import-root", "", "import path of the output directory")
	f.String("validation", "", "dependency validation (lazy|eager)")
	f.Int("workers", 0, "max parallel workers (0=auto)")
}

// buildRequest reads the request file when one is given and applies the
// flags on top of it. It also returns the output directory.
func buildRequest(c *cobra.Command) (bindgen.Request, string, error) {
	f := c.Flags()
	req := bindgen.Request{Options: bindgen.DefaultOptions()}
	output := "."

	path, err := f.GetString("config")
	if err != nil {
		return req, "", err
	}
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return req, "", err
		}
		if req, err = cfg.Request(); err != nil {
			return req, "", err
		}
		output = cfg.OutputDir()
	}

	if f.Changed("root") {
		req.Roots, _ = f.GetStringSlice("root")
	}
	if f.Changed("source") {
		req.SourcePaths, _ = f.GetStringSlice("source")
	}
	if f.Changed("dependency") {
		req.DependencyPaths, _ = f.GetStringSlice("dependency")
	}
	if f.Changed("import-root") {
		req.ImportRoot, _ = f.GetString("import-root")
	}
	if f.Changed("workers") {
		req.Workers, _ = f.GetInt("workers")
	}
	if f.Changed("validation") {
		v, _ := f.GetString("validation")
		if req.Validation, err = graph.ParseValidationMode(v); err != nil {
			return req, "", err
		}
	}
	if f.Lookup("output") != nil && f.Changed("output") {
		output, _ = f.GetString("output")
	}
	return req, output, nil
}
