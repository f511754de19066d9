// Command stateinspect reads the finalized chain state of a stopped node.
package main

import (
	"os"

	"github.com/niklaslong/zebra/cmd/stateinspect/stateinspect"
)

func main() {
	if err := stateinspect.Start(os.Args, os.Stdout); err != nil {
		os.Exit(1)
	}
}
