// Command csv2xlsx converts delimited text files to Excel workbooks.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
