package main

import (
	stderrors "errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	bindgen "github.com/wippyai/winrt-bindgen"
	"github.com/wippyai/winrt-bindgen/errors"
	"github.com/wippyai/winrt-bindgen/graph"
	"github.com/wippyai/winrt-bindgen/metadata"
	"github.com/wippyai/winrt-bindgen/synth"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [flags]",
	Short: "Show the resolved type graph",
	Long: `Resolve the requested roots and list every node of the type graph with its
state, members and vtable slots. Rejected graphs are shown too.`,
	Args: cobra.NoArgs,
	RunE: runInspect,
}

func init() {
	inspectFlags(inspectCmd)
}

func inspectFlags(c *cobra.Command) {
	requestFlags(c)
	c.Flags().BoolP("interactive", "i", false, "browse the graph in a terminal UI")
}

// nodeInfo is the printable summary of one graph node
type nodeInfo struct {
	key      string
	kind     string
	state    string
	iid      string
	pkg      string
	members  []string
	edges    []string
	errs     []string
	root     bool
	exported bool
	rejected bool
}

func runInspect(cmd *cobra.Command, _ []string) error {
	req, _, err := buildRequest(cmd)
	if err != nil {
		return err
	}
	interactive, err := cmd.Flags().GetBool("interactive")
	if err != nil {
		return err
	}

	res, err := bindgen.Generate(cmd.Context(), req)
	var rep *errors.RejectionReport
	if err != nil && !stderrors.As(err, &rep) {
		return err
	}
	nodes := describeGraph(res.Graph, res.Bindings)
	if interactive {
		return runInteractive(req.Roots, nodes)
	}
	printNodes(cmd.OutOrStdout(), nodes)
	if rep != nil {
		fmt.Fprintln(cmd.OutOrStdout())
		printReport(cmd.OutOrStdout(), rep)
		return errRejected
	}
	return nil
}

// describeGraph summarizes every node, taking slot numbers and packages
// from the bindings when the graph was synthesized
func describeGraph(g *graph.Graph, bindings []synth.Binding) []nodeInfo {
	bound := make(map[graph.Key]*synth.Binding, len(bindings))
	for i := range bindings {
		bound[bindings[i].Key] = &bindings[i]
	}
	roots := make(map[graph.Key]bool)
	for _, r := range g.Roots() {
		roots[r.Key] = true
	}

	nodes := g.Nodes()
	out := make([]nodeInfo, 0, len(nodes))
	for _, n := range nodes {
		info := nodeInfo{
			key:      n.Key.String(),
			kind:     n.Kind().String(),
			state:    n.State().String(),
			root:     roots[n.Key],
			exported: n.Exported,
			rejected: n.Rejected(),
		}
		switch {
		case n.Instance != nil:
			info.iid = n.Instance.IID.String()
		case n.Def.HasGUID && n.Def.GUID != uuid.Nil:
			info.iid = n.Def.GUID.String()
		}
		for _, k := range n.Edges() {
			info.edges = append(info.edges, k.String())
		}
		for _, e := range n.Errors() {
			info.errs = append(info.errs, describe(e))
		}
		if e := n.Err(); e != nil && len(info.errs) == 0 {
			info.errs = append(info.errs, describe(e))
		}

		b := bound[n.Key]
		if b != nil {
			info.pkg = b.Package + "." + b.Name
		}
		switch {
		case b != nil && len(b.Slots) > 0:
			for _, s := range b.Slots {
				info.members = append(info.members, strconv.Itoa(s.Index)+" "+s.Name+signature(s.Method))
			}
		case n.Kind() == metadata.KindStruct || n.Kind() == metadata.KindEnum:
			for _, f := range n.Def.Fields {
				switch {
				case f.Constant != nil:
					info.members = append(info.members, f.Name+" = "+strconv.FormatInt(f.Constant.Int64(), 10))
				case n.Kind() == metadata.KindStruct:
					info.members = append(info.members, f.Name+" "+f.Type.String())
				}
			}
		default:
			for _, m := range n.Methods() {
				info.members = append(info.members, m.ProjectedName()+signature(m))
			}
		}
		out = append(out, info)
	}
	return out
}

func signature(m *metadata.Method) string {
	params := make([]string, len(m.Params))
	for i, p := range m.Params {
		s := p.Name + " " + p.Type.String()
		if p.Out() {
			s = "out " + s
		}
		params[i] = s
	}
	sig := "(" + strings.Join(params, ", ") + ")"
	if m.Return != nil {
		sig += " " + m.Return.Type.String()
	}
	return sig
}

func printNodes(w io.Writer, nodes []nodeInfo) {
	for _, n := range nodes {
		mark := "  "
		if n.root {
			mark = "* "
		}
		state := okColor.Sprint(n.state)
		if n.rejected {
			state = errorColor.Sprint(n.state)
		}
		fmt.Fprintf(w, "%s%s %s %s", mark, rootColor.Sprint(n.key), kindColor.Sprint(n.kind), state)
		if n.pkg != "" {
			fmt.Fprintf(w, " -> %s", n.pkg)
		}
		fmt.Fprintln(w)
		for _, e := range n.errs {
			fmt.Fprintf(w, "    %s %s\n", errorColor.Sprint("!"), e)
		}
	}
}
