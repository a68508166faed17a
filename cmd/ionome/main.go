// ionome - chromatogram baseline removal and peak deconvolution
package main

import (
	"fmt"
	"os"

	"github.com/RyanBlaney/ionome/cmd/ionome/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
