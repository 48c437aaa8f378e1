// beliefshift scores belief updates and calibrates the scoring functions
// against human relevance ratings.
//
// Usage:
//
//	beliefshift calibrate --training=<file> [--input=<file> --output=<file>] [--mode=separate|joint|both]
//	beliefshift grid --training=<file> [--scale=linear:2.01:5:12 ...]
//	beliefshift apply --input=<file> --output=<file> [--run=<id>]
//	beliefshift summarize --input=<file> [--group-by=StimID,...] [--rank]
//	beliefshift families
//	beliefshift runs [show <id>]
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
