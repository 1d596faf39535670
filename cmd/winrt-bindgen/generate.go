package main

import (
	stderrors "errors"
	"fmt"

	"github.com/spf13/cobra"

	bindgen "github.com/wippyai/winrt-bindgen"
	"github.com/wippyai/winrt-bindgen/errors"
)

var generateCmd = &cobra.Command{
	Use:   "generate [flags]",
	Short: "Generate bindings for the requested roots",
	Long: `Resolve the requested roots across the metadata sources and write one Go
package per namespace below the output directory, together with a manifest
of the run. Nothing but the manifest is written when a root is rejected.`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func init() {
	generateFlags(generateCmd)
}

func generateFlags(c *cobra.Command) {
	requestFlags(c)
	c.Flags().StringP("output", "o", "", "output directory (default: the request file's output or .)")
	c.Flags().Bool("dry-run", false, "generate without writing anything")
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	req, output, err := buildRequest(cmd)
	if err != nil {
		return err
	}
	dryRun, err := cmd.Flags().GetBool("dry-run")
	if err != nil {
		return err
	}

	res, err := bindgen.Generate(cmd.Context(), req)
	var rep *errors.RejectionReport
	if stderrors.As(err, &rep) {
		printReport(cmd.ErrOrStderr(), rep)
		if !dryRun {
			if _, werr := res.Write(output); werr != nil {
				return werr
			}
		}
		return errRejected
	}
	if err != nil {
		return err
	}
	if warnings := res.Graph.Report(); len(warnings.Dependencies()) > 0 {
		printReport(cmd.ErrOrStderr(), warnings)
	}

	out := cmd.OutOrStdout()
	if dryRun {
		for _, f := range res.Files {
			fmt.Fprintf(out, "%s %s\n", okColor.Sprint("would write"), f.Path)
		}
		return nil
	}
	stats, err := res.Write(output)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s %d bindings in %d packages to %s (%d written, %d unchanged, %d removed)\n",
		okColor.Sprint("generated"), len(res.Bindings), len(res.Files), output,
		len(stats.Written), len(stats.Unchanged), len(stats.Removed))
	return nil
}
