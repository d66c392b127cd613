// Command tabpipe runs the ingest, transform and train stages of the
// tabular pipeline.
//
//	tabpipe ingest    <raw.csv>     <params.yaml> <output_dir>
//	tabpipe transform <cleaned.csv> <params.yaml> <output_dir>
//	tabpipe train     <input_dir>   <params.yaml> <output_dir>
//	tabpipe all       <raw.csv>     <params.yaml> <output_dir>
package main

import (
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
