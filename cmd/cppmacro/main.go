// Command cppmacro is a standalone C preprocessor CLI: it runs macro
// expansion, conditional compilation, and #include processing over a
// source file and writes the result to stdout, matching traditional
// cpp -E behavior.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/coredump-go/cppmacro/pkg/preproc"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

var (
	includePaths  []string
	systemPaths   []string
	defineFlags   []string
	undefineFlags []string
	useExternalPP bool
	noLineMarkers bool
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cppmacro [file]",
		Short: "cppmacro expands C preprocessor directives in a source file",
		Long: `cppmacro is a standalone implementation of the C preprocessor's
macro-expansion stage: #define/#undef, #if/#ifdef/#elif conditional
compilation, #include resolution, and the # and ## operators. It writes
the expanded translation unit to stdout, the same contract as cpp -E.`,
		Version:       version,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return doPreprocess(args[0], out, errOut)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.Flags().StringArrayVarP(&includePaths, "include", "I", nil, "Add directory to include search path")
	rootCmd.Flags().StringArrayVar(&systemPaths, "isystem", nil, "Add directory to system include search path")
	rootCmd.Flags().StringArrayVarP(&defineFlags, "define", "D", nil, "Define macro (NAME or NAME=VALUE)")
	rootCmd.Flags().StringArrayVarP(&undefineFlags, "undefine", "U", nil, "Undefine macro")
	rootCmd.Flags().BoolVar(&useExternalPP, "external-cpp", false, "Use the system C preprocessor (cc -E) instead of the internal engine")
	rootCmd.Flags().BoolVar(&noLineMarkers, "no-line-markers", false, "Suppress # line markers in the output")

	return rootCmd
}

// buildPreprocessorOptions turns the bound flag values into a
// preproc.Options, splitting each -D NAME=VALUE flag on its first '='.
func buildPreprocessorOptions() *preproc.Options {
	opts := &preproc.Options{
		IncludePaths: includePaths,
		SystemPaths:  systemPaths,
		Defines:      make(map[string]string),
		Undefines:    undefineFlags,
		UseExternal:  useExternalPP,
		LineMarkers:  !noLineMarkers,
	}

	for _, d := range defineFlags {
		if idx := strings.Index(d, "="); idx >= 0 {
			opts.Defines[d[:idx]] = d[idx+1:]
		} else {
			opts.Defines[d] = ""
		}
	}

	return opts
}

// doPreprocess expands filename's macros and writes the result to out.
func doPreprocess(filename string, out, errOut io.Writer) error {
	opts := buildPreprocessorOptions()

	content, err := preproc.Preprocess(filename, opts)
	if err != nil {
		fmt.Fprintf(errOut, "cppmacro: %v\n", err)
		return err
	}

	fmt.Fprint(out, content)
	return nil
}
