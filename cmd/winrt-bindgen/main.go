package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	bindgen "github.com/wippyai/winrt-bindgen"
)

var rootCmd = &cobra.Command{
	Use:   "winrt-bindgen",
	Short: "Generate Go bindings for Windows Runtime APIs",
	Long: `winrt-bindgen reads Windows Runtime metadata (.winmd) and generates Go
packages that call the described types through their native vtables.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// errRejected is returned by commands that already printed a rejection
// report; it only sets the exit code
var errRejected = stderrors.New("roots rejected")

func main() {
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(inspectCmd)

	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().Bool("json-log", false, "write logs as JSON")
	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	_ = bindgen.Logger().Sync()
	if err != nil {
		if !stderrors.Is(err, errRejected) {
			fmt.Fprintln(os.Stderr, errorColor.Sprint("error: ")+err.Error())
		}
		os.Exit(1)
	}
}

// setup configures logging and colours before any command runs
func setup(cmd *cobra.Command, _ []string) error {
	flags := cmd.Root().PersistentFlags()
	level, err := flags.GetString("log-level")
	if err != nil {
		return err
	}
	jsonLog, err := flags.GetBool("json-log")
	if err != nil {
		return err
	}
	mode, err := flags.GetString("color")
	if err != nil {
		return err
	}

	log, err := newLogger(level, jsonLog)
	if err != nil {
		return err
	}
	bindgen.SetLogger(log)
	return setColor(mode, isTerminal(os.Stdout))
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
