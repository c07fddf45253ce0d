// Command crossword validates crossword puzzles and exports them to the
// .puz and ipuz interchange formats, from the command line or over HTTP.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
