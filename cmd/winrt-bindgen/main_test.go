package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/winrt-bindgen/errors"
	"github.com/wippyai/winrt-bindgen/graph"
	"github.com/wippyai/winrt-bindgen/metadata"
	"github.com/wippyai/winrt-bindgen/metadata/mdbuild"
)

func init() {
	color.NoColor = true
}

func iid(n int) uuid.UUID {
	return uuid.MustParse(fmt.Sprintf("00000000-0000-0000-0000-%012x", n))
}

func writeSource(t *testing.T, dir string, b *mdbuild.Builder) string {
	t.Helper()
	blob, err := b.Build()
	require.NoError(t, err)
	path := filepath.Join(dir, b.Name()+".winmd")
	require.NoError(t, os.WriteFile(path, blob, 0o644))
	return path
}

func demo() *mdbuild.Builder {
	b := mdbuild.New("Demo")
	b.Struct("Demo", "Baz").Field("Value", mdbuild.Int32)
	b.Interface("Demo", "IFoo", iid(2)).
		Method("First", mdbuild.ValueRef("Demo.Baz")).
		Method("Second", mdbuild.Void, mdbuild.In("bar", mdbuild.ValueRef("Demo.Baz")))
	b.Class("Demo", "Foo").ImplementsDefault(mdbuild.Ref("Demo.IFoo")).Activatable("")
	b.Interface("Demo", "IBroken", iid(3)).Method("Use", mdbuild.Void, mdbuild.In("x", mdbuild.Ref("Missing.Thing")))
	return b
}

// execute runs a fresh command built like the registered one
func execute(t *testing.T, flags func(*cobra.Command), run func(*cobra.Command, []string) error, args ...string) (string, string, error) {
	t.Helper()
	c := &cobra.Command{Use: "test", RunE: run, SilenceUsage: true, SilenceErrors: true}
	flags(c)
	var out, errOut bytes.Buffer
	c.SetOut(&out)
	c.SetErr(&errOut)
	c.SetArgs(args)
	err := c.Execute()
	return out.String(), errOut.String(), err
}

func TestGenerateCommand(t *testing.T) {
	src := writeSource(t, t.TempDir(), demo())
	out := t.TempDir()

	stdout, _, err := execute(t, generateFlags, runGenerate,
		"--root", "Demo.Foo", "--source", src, "--import-root", "example.com/gen", "-o", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "generated")
	assert.FileExists(t, filepath.Join(out, "demo", "demo.go"))
	assert.FileExists(t, filepath.Join(out, "bindgen.manifest"))

	stdout, _, err = execute(t, generateFlags, runGenerate,
		"--root", "Demo.Foo", "--source", src, "--import-root", "example.com/gen", "-o", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "0 written, 1 unchanged")
}

func TestGenerateRejected(t *testing.T) {
	src := writeSource(t, t.TempDir(), demo())
	out := t.TempDir()

	_, stderr, err := execute(t, generateFlags, runGenerate,
		"--root", "Demo.IBroken", "--source", src, "-o", out)
	require.ErrorIs(t, err, errRejected)
	assert.Contains(t, stderr, "rejected Demo.IBroken")
	assert.Contains(t, stderr, "unresolved_reference Missing.Thing")
	assert.NoFileExists(t, filepath.Join(out, "demo", "demo.go"))
	assert.FileExists(t, filepath.Join(out, "bindgen.manifest"))
}

func TestGenerateDryRun(t *testing.T) {
	src := writeSource(t, t.TempDir(), demo())
	out := filepath.Join(t.TempDir(), "gen")

	stdout, _, err := execute(t, generateFlags, runGenerate,
		"--root", "Demo.Foo", "--source", src, "-o", out, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, stdout, "would write demo/demo.go")
	assert.NoDirExists(t, out)
}

func TestValidateCommand(t *testing.T) {
	src := writeSource(t, t.TempDir(), demo())

	stdout, _, err := execute(t, validateFlags, runValidate, "--root", "Demo.Foo", "--source", src)
	require.NoError(t, err)
	assert.Contains(t, stdout, "ok 1 root(s)")

	stdout, _, err = execute(t, validateFlags, runValidate,
		"--root", "Demo.Foo", "--root", "Demo.IBroken", "--source", src)
	require.ErrorIs(t, err, errRejected)
	assert.Contains(t, stdout, "rejected Demo.IBroken")
	assert.NotContains(t, stdout, "rejected Demo.Foo")
}

func TestInspectCommand(t *testing.T) {
	src := writeSource(t, t.TempDir(), demo())

	stdout, _, err := execute(t, inspectFlags, runInspect, "--root", "Demo.Foo", "--source", src)
	require.NoError(t, err)
	assert.Contains(t, stdout, "* Demo.Foo class emitted -> winrt/demo.Foo")
	assert.Contains(t, stdout, "  Demo.IFoo interface emitted")
}

func TestConfigWithFlagOverrides(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, demo())
	cfgPath := filepath.Join(dir, "bindgen.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
import_root = "example.com/app"
output = "gen"
roots = ["Demo.IBroken"]
sources = ["Demo.winmd"]
`), 0o644))

	c := &cobra.Command{Use: "test"}
	generateFlags(c)
	require.NoError(t, c.ParseFlags([]string{"-c", cfgPath, "--root", "Demo.Foo", "--validation", "eager", "--workers", "2"}))
	req, output, err := buildRequest(c)
	require.NoError(t, err)
	assert.Equal(t, []string{"Demo.Foo"}, req.Roots)
	assert.Equal(t, []string{filepath.Join(dir, "Demo.winmd")}, req.SourcePaths)
	assert.Equal(t, "example.com/app", req.ImportRoot)
	assert.Equal(t, graph.ValidateEager, req.Validation)
	assert.Equal(t, 2, req.Workers)
	assert.Equal(t, filepath.Join(dir, "gen"), output)

	c = &cobra.Command{Use: "test"}
	generateFlags(c)
	require.NoError(t, c.ParseFlags([]string{"--validation", "strict"}))
	_, _, err = buildRequest(c)
	assert.Error(t, err)
}

func TestPrintReport(t *testing.T) {
	rep := errors.NewRejectionReport()
	missing := errors.Unresolved("Missing.Thing", []string{"App.IBroken", "Use"})
	rep.Add("App.IBroken", missing)
	rep.AddDependency(errors.Ambiguous("Dep.Twice", []string{"a.winmd", "b.winmd"}))

	var buf bytes.Buffer
	printReport(&buf, rep)
	want := "rejected App.IBroken\n" +
		"  unresolved_reference Missing.Thing: no metadata source defines this type (via App.IBroken -> Use)\n" +
		"warning ambiguous_reference Dep.Twice: defined differently by more than one source [a.winmd, b.winmd]\n"
	assert.Equal(t, want, buf.String())
}

func TestSetColor(t *testing.T) {
	defer func() { color.NoColor = true }()

	require.NoError(t, setColor("auto", false))
	assert.True(t, color.NoColor)
	require.NoError(t, setColor("auto", true))
	assert.False(t, color.NoColor)
	require.NoError(t, setColor("off", true))
	assert.True(t, color.NoColor)
	require.NoError(t, setColor("on", false))
	assert.False(t, color.NoColor)
	assert.Error(t, setColor("sometimes", true))
}

func TestNewLogger(t *testing.T) {
	log, err := newLogger("debug", true)
	require.NoError(t, err)
	assert.NotNil(t, log)

	_, err = newLogger("loud", false)
	assert.Error(t, err)
}

func TestInspectModel(t *testing.T) {
	src, err := demo().Load()
	require.NoError(t, err)
	g, err := graph.Resolve(t.Context(), graph.Request{Roots: []string{"Demo.Foo"}, Sources: []*metadata.Source{src}})
	require.NoError(t, err)
	nodes := describeGraph(g, nil)
	require.Len(t, nodes, 3)

	m := newInspectModel([]string{"Demo.Foo"}, nodes)
	press := func(keys ...tea.KeyMsg) {
		for _, k := range keys {
			m.Update(k)
		}
	}
	runes := func(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

	assert.Contains(t, m.View(), "3 of 3 nodes")
	press(tea.KeyMsg{Type: tea.KeyDown}, tea.KeyMsg{Type: tea.KeyDown}, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 2, m.selected)

	press(runes("/"), runes("i"), runes("f"))
	assert.Equal(t, stateFilter, m.state)
	assert.Contains(t, m.View(), "1 of 3 nodes")

	press(tea.KeyMsg{Type: tea.KeyEnter}, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, stateDetail, m.state)
	view := m.View()
	assert.Contains(t, view, "Demo.IFoo")
	assert.Contains(t, view, "First() Demo.Baz")
	assert.Contains(t, view, "Demo.Baz")

	press(tea.KeyMsg{Type: tea.KeyEsc}, runes("/"), tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, stateBrowse, m.state)
	assert.Len(t, m.visible, 3)
}
