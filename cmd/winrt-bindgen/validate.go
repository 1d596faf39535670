package main

import (
	"fmt"

	"github.com/spf13/cobra"

	bindgen "github.com/wippyai/winrt-bindgen"
)

var validateCmd = &cobra.Command{
	Use:   "validate [flags]",
	Short: "Check that every requested root can be generated",
	Long: `Run generation without writing anything and print the rejection report.
The exit code is 1 when any root is rejected.`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	validateFlags(validateCmd)
}

func validateFlags(c *cobra.Command) {
	requestFlags(c)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	req, _, err := buildRequest(cmd)
	if err != nil {
		return err
	}
	rep, err := bindgen.Validate(cmd.Context(), req)
	if err != nil {
		return err
	}
	printReport(cmd.OutOrStdout(), rep)
	if !rep.Empty() {
		return errRejected
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %d root(s)\n", okColor.Sprint("ok"), len(req.Roots))
	return nil
}
